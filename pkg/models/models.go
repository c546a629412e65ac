// Package models defines the tenant-scoped entities that flow through the
// orchestrator, the bus workers, and the node handlers.
package models

import "time"

// RunStatus is the lifecycle state of a Run. Exactly one terminal
// transition (completed or failed) is ever written per run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the top-level unit of orchestration: one campaign push through
// the pipeline, from brief to drafted outreach.
type Run struct {
	ID           string
	TenantID     string
	TraceID      string
	CampaignID   string
	Status       RunStatus
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage string
	ResultJSON   map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PolarityIntent is a campaign's stance toward the topic it is prospecting
// influencers about.
type PolarityIntent string

const (
	PolarityIntentAllies    PolarityIntent = "allies"
	PolarityIntentCritics   PolarityIntent = "critics"
	PolarityIntentWatchlist PolarityIntent = "watchlist"
)

// CommercialMode describes how the campaign intends to compensate influencers.
type CommercialMode string

const (
	CommercialModeEarned  CommercialMode = "earned"
	CommercialModePaid    CommercialMode = "paid"
	CommercialModeHybrid  CommercialMode = "hybrid"
	CommercialModeUnknown CommercialMode = "unknown"
)

// Brief carries the slot-filled campaign intent the orchestrator was
// started with.
type Brief struct {
	PolarityIntent   PolarityIntent `json:"polarity_intent"`
	CommercialMode   CommercialMode `json:"commercial_mode"`
	PlatformVector   []string       `json:"platform_vector,omitempty"`
	Geography        string         `json:"geography,omitempty"`
	ThirdRailTerms   []string       `json:"third_rail_terms,omitempty"`
	QueryEmbeddingID string         `json:"query_embedding_id,omitempty"`
	FreeTextBrief    string         `json:"free_text_brief,omitempty"`
	PolarityDesired  float64        `json:"polarity_desired,omitempty"`
	DesiredCount     int            `json:"desired_count,omitempty"`
	RiskProfile      string         `json:"risk_profile,omitempty"`
}

// Campaign links a Run to its brief.
type Campaign struct {
	ID        string
	TenantID  string
	TraceID   string
	RunID     string
	BriefJSON Brief
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EmbeddingKind distinguishes the three embedding provenances.
type EmbeddingKind string

const (
	EmbeddingKindCampaign EmbeddingKind = "campaign"
	EmbeddingKindBio      EmbeddingKind = "bio"
	EmbeddingKindRecent   EmbeddingKind = "recent"
)

// Embedding is an immutable vector row. Once inserted it is never mutated.
type Embedding struct {
	ID        string
	TenantID  string
	Kind      EmbeddingKind
	Model     string
	Dims      int
	Norm      float64
	Vector    []float32
	CreatedAt time.Time
}

// Influencer is a candidate outreach target.
type Influencer struct {
	ID                 string
	TenantID           string
	CanonicalName      string
	PrimaryURL         *string
	Platform           *string
	Geography          *string
	FollowerCount      *int64
	PolarityScore      *float64
	BioEmbeddingID     *string
	RecentEmbeddingID  *string
	BioText            *string
	LastScrapedAt      *time.Time
	LastPulseCheckedAt *time.Time
	DoNotContact       bool
	CoolingOffUntil    *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Reservation holds exclusive claim on an influencer for a campaign while
// the pipeline decides whether to proceed. Active iff ReservedUntil > now.
type Reservation struct {
	ID            string
	TenantID      string
	InfluencerID  string
	ReservedUntil time.Time
	Reason        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Active reports whether the reservation still holds at the given instant.
func (r Reservation) Active(now time.Time) bool {
	return r.ReservedUntil.After(now)
}

// Receipt records that stage C contacted/processed an influencer for a campaign.
type Receipt struct {
	ID           string
	TenantID     string
	CampaignID   string
	InfluencerID string
	DetailJSON   map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TargetCard is the idempotent per-(campaign, influencer) summary row
// produced by stage D.
type TargetCard struct {
	ID           string
	TenantID     string
	CampaignID   string
	InfluencerID string
	DetailJSON   map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ContactMethod is a resolved outreach channel produced by stage E.
type ContactMethod struct {
	ID           string
	TenantID     string
	CampaignID   string
	InfluencerID string
	Channel      string
	Address      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Draft is the outreach message body produced by stage F.
type Draft struct {
	ID           string
	TenantID     string
	CampaignID   string
	InfluencerID string
	Body         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NodeName identifies one stage of the orchestration graph.
type NodeName string

const (
	NodeA NodeName = "A"
	NodeB NodeName = "B"
	NodeC NodeName = "C"
	NodeD NodeName = "D"
	NodeE NodeName = "E"
	NodeF NodeName = "F"
	NodeG NodeName = "G"
)

// CacheStatus describes how stage B's embedding cache lookup resolved.
type CacheStatus string

const (
	CacheStatusHit        CacheStatus = "cache_hit"
	CacheStatusPartialHit CacheStatus = "partial_hit"
	CacheStatusMiss       CacheStatus = "cache_miss"
)

// PulseStatus is the outcome of a pulse-check freshness gate.
type PulseStatus string

const (
	PulseStatusPass         PulseStatus = "pass"
	PulseStatusFail         PulseStatus = "fail"
	PulseStatusInconclusive PulseStatus = "inconclusive"
)
