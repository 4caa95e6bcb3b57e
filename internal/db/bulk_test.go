package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestCopyFromEmptyRows(t *testing.T) {
	mock := newMockPool(t)

	n, err := CopyFrom(context.Background(), mock, "parcels", []string{"apn"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectCopyFrom(pgx.Identifier{"parcels"}, []string{"apn", "address"}).WillReturnResult(2)

	n, err := CopyFrom(context.Background(), mock, "parcels", []string{"apn", "address"},
		[][]any{{"123-45", "100 Main St"}, {"123-46", "102 Main St"}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsertValidation(t *testing.T) {
	mock := newMockPool(t)
	ctx := context.Background()
	rows := [][]any{{"123-45", "100 Main St"}}

	_, err := BulkUpsert(ctx, mock, UpsertConfig{Table: "parcels", ConflictKeys: []string{"apn"}}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns")

	_, err = BulkUpsert(ctx, mock, UpsertConfig{Table: "parcels", Columns: []string{"apn"}}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys")

	n, err := BulkUpsert(ctx, mock, UpsertConfig{Table: "parcels", Columns: []string{"apn"}, ConflictKeys: []string{"apn"}}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBulkUpsert(t *testing.T) {
	mock := newMockPool(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE _tmp_upsert_parcels`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_parcels"}, []string{"apn", "address", "updated_at"}).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO parcels .* ON CONFLICT \(apn\) DO UPDATE SET address = EXCLUDED.address, updated_at = EXCLUDED.updated_at`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "parcels",
		Columns:      []string{"apn", "address", "updated_at"},
		ConflictKeys: []string{"apn"},
	}, [][]any{{"123-45", "100 Main St", nil}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsertMergeError(t *testing.T) {
	mock := newMockPool(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE _tmp_upsert_parcels`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_parcels"}, []string{"apn", "address"}).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO parcels`).
		WillReturnError(eris.New("deadlock detected"))
	mock.ExpectRollback()

	_, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "parcels",
		Columns:      []string{"apn", "address"},
		ConflictKeys: []string{"apn"},
	}, [][]any{{"123-45", "100 Main St"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merge into target")
	assert.NoError(t, mock.ExpectationsWereMet())
}
