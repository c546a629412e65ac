package repo

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestTargetCardRepoUpsertReturnsID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO target_cards").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("tc-1"))

	repo := NewTargetCardRepo(db)
	id, err := repo.Upsert(context.Background(), "tenant-1", "camp-1", "inf-1", map[string]any{"similarity": 0.9})
	require.NoError(t, err)
	require.Equal(t, "tc-1", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTargetCardRepoCountForCampaign(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT count").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	repo := NewTargetCardRepo(db)
	count, err := repo.CountForCampaign(context.Background(), "tenant-1", "camp-1")
	require.NoError(t, err)
	require.Equal(t, 3, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
