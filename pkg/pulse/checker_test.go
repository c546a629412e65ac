package pulse

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metismedia/metismedia/pkg/models"
	"github.com/metismedia/metismedia/pkg/providers"
)

func noopRecord(_, _ string, _, _ float64) error { return nil }

func TestCheckNoPrimaryURLIsInconclusive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	c := NewChecker(db, providers.NewMockPulseProvider(nil), providers.NewMockEmbeddingProvider(8), 24*time.Hour, 0.85, 3)

	result, err := c.Check(context.Background(), "tenant-1", Candidate{InfluencerID: "inf-1"}, []float32{1, 0}, noopRecord)
	require.NoError(t, err)
	assert.Equal(t, models.PulseStatusInconclusive, result.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckUsesFreshCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT vector::text").
		WillReturnRows(sqlmock.NewRows([]string{"vector"}).AddRow("[1,0]"))

	c := NewChecker(db, providers.NewMockPulseProvider(nil), providers.NewMockEmbeddingProvider(8), 24*time.Hour, 0.85, 3)

	recentCheckedAt := time.Now().Add(-1 * time.Hour)
	embID := "embed-1"
	cand := Candidate{
		InfluencerID:       "inf-1",
		LastPulseCheckedAt: &recentCheckedAt,
		RecentEmbeddingID:  &embID,
	}

	result, err := c.Check(context.Background(), "tenant-1", cand, []float32{1, 0}, noopRecord)
	require.NoError(t, err)
	assert.Equal(t, models.PulseStatusPass, result.Status)
	assert.InDelta(t, 1.0, result.Similarity, 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckFetchesAndStoresOnCacheMiss(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO embeddings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE influencers").WillReturnResult(sqlmock.NewResult(0, 1))

	pulseProvider := providers.NewMockPulseProvider([]providers.RecentSummary{{Summary: "a post"}})
	embeddingProvider := providers.NewMockEmbeddingProvider(8)

	c := NewChecker(db, pulseProvider, embeddingProvider, 24*time.Hour, 0.0, 3)

	url := "https://x.example/bob"
	cand := Candidate{InfluencerID: "inf-1", PrimaryURL: &url}

	result, err := c.Check(context.Background(), "tenant-1", cand, []float32{0, 0, 0, 0, 0, 0, 0, 0}, noopRecord)
	require.NoError(t, err)
	assert.NotEmpty(t, result.RecentEmbeddingID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckBudgetExceededPropagates(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	pulseProvider := providers.NewMockPulseProvider([]providers.RecentSummary{{Summary: "a post"}})
	c := NewChecker(db, pulseProvider, providers.NewMockEmbeddingProvider(8), 24*time.Hour, 0.85, 3)

	url := "https://x.example/bob"
	cand := Candidate{InfluencerID: "inf-1", PrimaryURL: &url}

	sentinel := assertErr{}
	_, err = c.Check(context.Background(), "tenant-1", cand, []float32{1, 0}, func(string, string, float64, float64) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}

type assertErr struct{}

func (assertErr) Error() string { return "budget exceeded" }
