package providers

import (
	"context"
	"time"
)

// RecentSummary is one piece of recent public content attributed to an
// influencer, used as the pulse checker's freshness signal.
type RecentSummary struct {
	Title    string
	URL      string
	Date     time.Time
	Summary  string
	Metadata map[string]any
}

// PulseProvider fetches recent content summaries for a candidate's primary
// URL. The pulse checker embeds and compares them against the campaign
// vector to decide whether the candidate is still topically aligned.
type PulseProvider interface {
	FetchRecentSummaries(ctx context.Context, url string, limit int) ([]RecentSummary, error)
}

// MockPulseProvider returns caller-configured summaries per URL, falling
// back to a default set, and counts calls per URL the way tests assert
// against.
type MockPulseProvider struct {
	defaultSummaries []RecentSummary
	urlSummaries     map[string][]RecentSummary
	callCounts       map[string]int
}

// NewMockPulseProvider builds a mock provider that returns defaultSummaries
// for any URL without a specific override. A nil defaultSummaries gets a
// built-in generic set, so the fetch path never comes back empty unless a
// caller configures it to.
func NewMockPulseProvider(defaultSummaries []RecentSummary) *MockPulseProvider {
	if defaultSummaries == nil {
		defaultSummaries = []RecentSummary{
			{Summary: "Shared a perspective on where the industry is heading this quarter."},
			{Summary: "Posted a breakdown of a recent product launch and what it signals."},
			{Summary: "Discussed audience questions from last week's thread."},
		}
	}
	return &MockPulseProvider{
		defaultSummaries: defaultSummaries,
		urlSummaries:     make(map[string][]RecentSummary),
		callCounts:       make(map[string]int),
	}
}

// SetSummariesForURL configures the summaries returned for a specific URL.
func (p *MockPulseProvider) SetSummariesForURL(url string, summaries []RecentSummary) {
	p.urlSummaries[url] = summaries
}

// CallCount reports the number of FetchRecentSummaries calls made for url,
// or the total across all URLs when url is empty.
func (p *MockPulseProvider) CallCount(url string) int {
	if url != "" {
		return p.callCounts[url]
	}
	total := 0
	for _, n := range p.callCounts {
		total += n
	}
	return total
}

// FetchRecentSummaries returns up to limit configured summaries for url.
func (p *MockPulseProvider) FetchRecentSummaries(_ context.Context, url string, limit int) ([]RecentSummary, error) {
	p.callCounts[url]++

	summaries, ok := p.urlSummaries[url]
	if !ok {
		summaries = p.defaultSummaries
	}

	if limit > 0 && limit < len(summaries) {
		summaries = summaries[:limit]
	}

	out := make([]RecentSummary, len(summaries))
	for i, s := range summaries {
		if s.Title == "" {
			s.Title = "Mock Post"
		}
		if s.URL == "" {
			s.URL = url
		}
		if s.Date.IsZero() {
			s.Date = time.Now().UTC()
		}
		if s.Summary == "" {
			s.Summary = "Mock summary for " + url
		}
		out[i] = s
	}
	return out, nil
}
