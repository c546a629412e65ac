package stages

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/metismedia/metismedia/pkg/bus"
	"github.com/metismedia/metismedia/pkg/ledger"
	"github.com/metismedia/metismedia/pkg/models"
)

func newNodeGEnvelope(runID string, payload map[string]any) bus.Envelope {
	return bus.NewEnvelope(uuid.New(), models.NodeG, bus.EventNodeGInput, payload, "trace-1", runID,
		bus.IdempotencyKey("tenant-1", runID, "G", bus.EventNodeGInput, "step"))
}

func TestNodeGCompletesRunWithCountsAndLedgerSummary(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"target_cards", "drafts"}).AddRow(3, 3))
	mock.ExpectExec("UPDATE runs").WillReturnResult(sqlmock.NewResult(0, 1))

	h, _, _ := newTestHandlers(t, db)

	runID := "run-1"
	inMemory := ledger.NewInMemory()
	inMemory.Record(ledger.NewEntry("tenant-1", "trace-1", runID, "B", "embedding_provider", "embed", 0.001, 1, nil))

	env := newNodeGEnvelope(runID, map[string]any{"campaign_id": "camp-1"})
	err = h.NodeG(context.Background(), env, bus.Deps{Ledger: inMemory})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNodeGMissingCampaignIDFailsRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE runs").WillReturnResult(sqlmock.NewResult(0, 1))

	h, _, _ := newTestHandlers(t, db)

	env := newNodeGEnvelope("run-2", map[string]any{})
	err = h.NodeG(context.Background(), env, bus.Deps{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNodeGWithoutSummarizerLedgerUsesZeroSummary(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"target_cards", "drafts"}).AddRow(0, 0))
	mock.ExpectExec("UPDATE runs").WillReturnResult(sqlmock.NewResult(0, 1))

	h, _, _ := newTestHandlers(t, db)

	env := newNodeGEnvelope("run-3", map[string]any{"campaign_id": "camp-1"})
	err = h.NodeG(context.Background(), env, bus.Deps{Ledger: ledger.NewSlogSink(nil)})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
