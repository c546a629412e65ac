package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/metismedia/metismedia/pkg/bus"
	"github.com/metismedia/metismedia/pkg/models"
)

func newTestPublisher(t *testing.T) (*bus.Publisher, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return bus.NewPublisher(client, bus.StreamMain, bus.StreamDLQ), client
}

func TestStartRunCreatesRowsAndPublishesBriefFinalized(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO runs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO campaigns").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE runs").WillReturnResult(sqlmock.NewResult(0, 1))

	pub, client := newTestPublisher(t)
	o := New(db, pub, 0, 0)

	runID, err := o.StartRun(context.Background(), uuid.New(), models.Brief{QueryEmbeddingID: "embed-1"})
	require.NoError(t, err)
	require.NotEmpty(t, runID)
	require.NoError(t, mock.ExpectationsWereMet())

	entries, err := client.XRange(context.Background(), bus.StreamMain, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, bus.EventBriefFinalized, entries[0].Values["event_name"])
}

func TestAwaitCompletionReturnsOnCompletedStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	resultJSON := []byte(`{"target_cards_count":2,"drafts_count":2,"total_cost_dollars":0.05,"cost_summary":{},"notes":["ok"]}`)
	mock.ExpectQuery("SELECT id, tenant_id").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "campaign_id", "trace_id", "status",
			"started_at", "completed_at", "error_message", "result_json",
			"created_at", "updated_at",
		}).AddRow("run-1", "tenant-1", "camp-1", "trace-1", string(models.RunStatusCompleted),
			now, now, nil, resultJSON, now, now))

	pub, _ := newTestPublisher(t)
	o := New(db, pub, 10*time.Millisecond, time.Second)

	result, err := o.AwaitCompletion(context.Background(), "tenant-1", "run-1")
	require.NoError(t, err)
	require.Equal(t, models.RunStatusCompleted, result.Status)
	require.Equal(t, 2, result.TargetCardsCount)
	require.Equal(t, 2, result.DraftsCount)
	require.Equal(t, []string{"ok"}, result.Notes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAwaitCompletionTimesOutOnUnfinishedRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	// The deadline is checked after each poll, so with a 1ms timeout and a
	// 5ms poll interval the run row is read once before the deadline and
	// once after it.
	for i := 0; i < 2; i++ {
		mock.ExpectQuery("SELECT id, tenant_id").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "tenant_id", "campaign_id", "trace_id", "status",
				"started_at", "completed_at", "error_message", "result_json",
				"created_at", "updated_at",
			}).AddRow("run-1", "tenant-1", "camp-1", "trace-1", string(models.RunStatusRunning),
				now, nil, nil, nil, now, now))
	}

	pub, _ := newTestPublisher(t)
	o := New(db, pub, 5*time.Millisecond, 1*time.Millisecond)

	result, err := o.AwaitCompletion(context.Background(), "tenant-1", "run-1")
	require.NoError(t, err)
	require.Equal(t, models.RunStatusFailed, result.Status)
	require.Equal(t, "await_completion timeout", result.ErrorMessage)
}
