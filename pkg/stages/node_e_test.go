package stages

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/metismedia/metismedia/pkg/bus"
	"github.com/metismedia/metismedia/pkg/models"
)

func newNodeEEnvelope(runID string, payload map[string]any) bus.Envelope {
	return bus.NewEnvelope(uuid.New(), models.NodeE, bus.EventNodeEInput, payload, "trace-1", runID,
		bus.IdempotencyKey("tenant-1", runID, "E", bus.EventNodeEInput, "step"))
}

func TestNodeEInsertsContactMethodAndPublishesNodeF(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO contact_methods").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "camp-1", "inf-1", "email", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	h, _, client := newTestHandlers(t, db)

	env := newNodeEEnvelope("run-1", map[string]any{
		"campaign_id":    "camp-1",
		"influencer_id":  "inf-1",
		"reservation_id": "res-1",
	})

	err = h.NodeE(context.Background(), env, bus.Deps{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	entries, err := client.XRange(context.Background(), bus.StreamMain, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, bus.EventNodeFInput, entries[0].Values["event_name"])
}

func TestNodeEDefaultsChannelToEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO contact_methods").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "camp-1", "inf-1", "email", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	h, _, _ := newTestHandlers(t, db)

	env := newNodeEEnvelope("run-2", map[string]any{
		"campaign_id":   "camp-1",
		"influencer_id": "inf-1",
	})

	err = h.NodeE(context.Background(), env, bus.Deps{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
