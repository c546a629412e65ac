package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/metismedia/metismedia/pkg/models"
)

// RunRepo is the repository for the runs table.
type RunRepo struct {
	db DBTX
}

// NewRunRepo builds a RunRepo over db (a *sql.DB or a *sql.Tx).
func NewRunRepo(db DBTX) *RunRepo {
	return &RunRepo{db: db}
}

// Create inserts a new run row in the given status.
func (r *RunRepo) Create(ctx context.Context, tenantID, traceID string, campaignID *string, status models.RunStatus) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, tenant_id, campaign_id, trace_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, id, tenantID, campaignID, traceID, status, now)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// UpdateStatus transitions a run's status, stamping started_at on
// "running" and completed_at on a terminal status. A terminal status only
// overwrites a non-terminal one: the first terminal writer wins and later
// attempts return false.
func (r *RunRepo) UpdateStatus(ctx context.Context, tenantID, runID string, status models.RunStatus, errMsg string, result map[string]any) (bool, error) {
	now := time.Now().UTC()

	var resultJSON []byte
	if result != nil {
		var err error
		resultJSON, err = json.Marshal(result)
		if err != nil {
			return false, fmt.Errorf("marshal result_json: %w", err)
		}
	}

	var errMsgArg any
	if errMsg != "" {
		errMsgArg = errMsg
	}

	query := `
		UPDATE runs
		SET status = $1, error_message = $2, result_json = $3, updated_at = $4`
	args := []any{status, errMsgArg, resultJSON, now}

	terminal := false
	switch status {
	case models.RunStatusRunning:
		query += `, started_at = $4`
	case models.RunStatusCompleted, models.RunStatusFailed:
		query += `, completed_at = $4`
		terminal = true
	}

	query += fmt.Sprintf(` WHERE tenant_id = $%d AND id = $%d`, len(args)+1, len(args)+2)
	args = append(args, tenantID, runID)

	// A run takes exactly one terminal transition; a second writer loses.
	if terminal {
		query += ` AND status IN ('pending', 'running')`
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update run status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// MarkFailed satisfies bus.RunFailer: it writes status=failed with no
// retry, the terminal action the worker takes on budget exhaustion.
func (r *RunRepo) MarkFailed(ctx context.Context, tenantID, runID, errMsg string) error {
	_, err := r.UpdateStatus(ctx, tenantID, runID, models.RunStatusFailed, errMsg, nil)
	return err
}

// LinkCampaign sets a run's campaign_id once the campaign row exists.
func (r *RunRepo) LinkCampaign(ctx context.Context, tenantID, runID, campaignID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE runs SET campaign_id = $1, updated_at = $2
		WHERE tenant_id = $3 AND id = $4
	`, campaignID, time.Now().UTC(), tenantID, runID)
	if err != nil {
		return false, fmt.Errorf("link campaign: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetByID loads a run scoped to tenantID, returning (nil, nil) if absent.
func (r *RunRepo) GetByID(ctx context.Context, tenantID, runID string) (*models.Run, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, campaign_id, trace_id, status,
		       started_at, completed_at, error_message, result_json,
		       created_at, updated_at
		FROM runs
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, runID)

	var run models.Run
	var campaignID sql.NullString
	var startedAt, completedAt sql.NullTime
	var errMsg sql.NullString
	var resultJSON []byte

	err := row.Scan(&run.ID, &run.TenantID, &campaignID, &run.TraceID, &run.Status,
		&startedAt, &completedAt, &errMsg, &resultJSON, &run.CreatedAt, &run.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if campaignID.Valid {
		run.CampaignID = campaignID.String
	}
	if startedAt.Valid {
		run.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		run.ErrorMessage = errMsg.String
	}
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &run.ResultJSON); err != nil {
			return nil, fmt.Errorf("unmarshal result_json: %w", err)
		}
	}

	return &run, nil
}
