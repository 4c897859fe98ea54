package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/foodstats/internal/plan"
	"github.com/tordrt/foodstats/internal/schema"
)

// mockBackend returns a backend over sqlmock whose store reports
// every dataset column.
func mockBackend(t *testing.T) (*Backend, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	client := newSQLiteClient(mockDB)
	expectInspect(mock, nil)

	b, err := NewBackend(context.Background(), client, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		mock.ExpectClose()
		assert.NoError(t, b.Close())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return b, mock
}

// expectInspect expects the column listing of every dataset table, leaving
// out the columns in skip.
func expectInspect(mock sqlmock.Sqlmock, skip map[string]bool) {
	for _, table := range schema.Dataset.Tables {
		rows := sqlmock.NewRows([]string{"name"})
		for _, col := range table.Columns {
			if !skip[table.Name+"."+col.Name] {
				rows.AddRow(col.Name)
			}
		}
		mock.ExpectQuery(SQLite.ColumnsQuery()).WithArgs(table.Name).WillReturnRows(rows)
	}
}

func TestInspectReportsMissingOptionalColumns(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer func() { _ = mockDB.Close() }()

	expectInspect(mock, map[string]bool{"receivers.Contact": true, "food_listings.Meal_Type": true})

	missing, err := Inspect(context.Background(), newSQLiteClient(mockDB))
	require.NoError(t, err)
	assert.Equal(t, map[plan.Column]bool{
		plan.Col(schema.Receivers, "Contact"):       true,
		plan.Col(schema.FoodListings, "Meal_Type"): true,
	}, missing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectMissingTable(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer func() { _ = mockDB.Close() }()

	mock.ExpectQuery(SQLite.ColumnsQuery()).WithArgs(schema.Providers).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	_, err = Inspect(context.Background(), newSQLiteClient(mockDB))
	assert.ErrorContains(t, err, "table providers not found")
}

func TestExecuteDriverError(t *testing.T) {
	b, mock := mockBackend(t)
	q, err := plan.QuestionByID(2)
	require.NoError(t, err)

	query, _, err := Compile(SQLite, q.Plan, sampleEnv)
	require.NoError(t, err)
	mock.ExpectQuery(query).WillReturnError(errors.New("disk I/O error"))

	_, err = b.Execute(context.Background(), q.Plan, sampleEnv)
	assert.ErrorIs(t, err, plan.ErrDataAccess)
	assert.ErrorContains(t, err, "disk I/O error")
}

func TestExecuteNormalizesDriverValues(t *testing.T) {
	b, mock := mockBackend(t)
	q, err := plan.QuestionByID(6)
	require.NoError(t, err)

	query, _, err := Compile(SQLite, q.Plan, sampleEnv)
	require.NoError(t, err)
	mock.ExpectQuery(query).WillReturnRows(
		sqlmock.NewRows([]string{"Provider_ID", "Name", "Avg_Quantity"}).
			AddRow(int64(1), []byte("Gray Inc"), int64(15)).
			AddRow(int64(2), "Apex", 5.5),
	)

	res, err := b.Execute(context.Background(), q.Plan, sampleEnv)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Avg_Quantity"}, res.Columns)
	assert.Equal(t, [][]any{{"Gray Inc", 15.0}, {"Apex", 5.5}}, res.Rows)
}

func TestAdhocRunsInReadOnlyScope(t *testing.T) {
	b, mock := mockBackend(t)
	const query = "SELECT Status FROM claims"

	mock.ExpectExec("PRAGMA query_only = ON").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"Status"}).AddRow([]byte("Completed")).AddRow(nil))
	mock.ExpectExec("PRAGMA query_only = OFF").WillReturnResult(sqlmock.NewResult(0, 0))

	res, err := b.Adhoc(context.Background(), query, sampleEnv)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"Completed"}, {nil}}, res.Rows)
}

func TestAdhocStatementError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{
			name:     "rejected by store",
			err:      sqlite3.Error{Code: sqlite3.ErrError},
			sentinel: plan.ErrSyntax,
		},
		{
			name:     "read-only violation",
			err:      sqlite3.Error{Code: sqlite3.ErrReadonly},
			sentinel: plan.ErrSyntax,
		},
		{
			name:     "store unavailable",
			err:      sqlite3.Error{Code: sqlite3.ErrBusy},
			sentinel: plan.ErrDataAccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, mock := mockBackend(t)
			const query = "SELECT Status FROM claims"

			mock.ExpectExec("PRAGMA query_only = ON").WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery(query).WillReturnError(tt.err)
			mock.ExpectExec("PRAGMA query_only = OFF").WillReturnResult(sqlmock.NewResult(0, 0))

			_, err := b.Adhoc(context.Background(), query, sampleEnv)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestAdhocPragmaFailure(t *testing.T) {
	b, mock := mockBackend(t)
	mock.ExpectExec("PRAGMA query_only = ON").WillReturnError(errors.New("locked"))

	_, err := b.Adhoc(context.Background(), "SELECT 1", sampleEnv)
	assert.ErrorIs(t, err, plan.ErrDataAccess)
}
