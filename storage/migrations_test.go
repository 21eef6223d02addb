package storage

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewSQLite_AppliesRuleMigrations(t *testing.T) {
	sqlite := setupTestDB(t)

	runner, err := NewMigrationRunner(sqlite.WriteDB, zap.NewNop().Sugar())
	require.NoError(t, err)
	applied, err := runner.Applied()
	require.NoError(t, err)

	require.Len(t, applied, len(ruleMigrations))
	for i, rec := range applied {
		assert.Equal(t, ruleMigrations[i].Version, rec.Version)
		assert.Equal(t, ruleMigrations[i].Name, rec.Name)
		assert.False(t, rec.AppliedAt.IsZero())
	}

	var n int
	require.NoError(t, sqlite.ReadDB.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_rules_severity'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestMigrationRunner_RunsPendingInOrderOnce(t *testing.T) {
	sqlite := setupTestDB(t)
	runner, err := NewMigrationRunner(sqlite.WriteDB, zap.NewNop().Sugar())
	require.NoError(t, err)

	var order []int
	step := func(v int) Migration {
		return Migration{Version: 100 + v, Name: "step", Up: func(tx *sql.Tx) error {
			order = append(order, 100+v)
			return nil
		}}
	}
	runner.Register(step(2), step(1))

	require.NoError(t, runner.Run())
	require.NoError(t, runner.Run())
	assert.Equal(t, []int{101, 102}, order)

	pending, err := runner.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMigrationRunner_FailureRollsBack(t *testing.T) {
	sqlite := setupTestDB(t)
	runner, err := NewMigrationRunner(sqlite.WriteDB, zap.NewNop().Sugar())
	require.NoError(t, err)

	runner.Register(Migration{Version: 200, Name: "broken", Up: func(tx *sql.Tx) error {
		if _, err := tx.Exec(`CREATE TABLE scratch (x INTEGER)`); err != nil {
			return err
		}
		return errors.New("boom")
	}})

	err = runner.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 200 (broken) failed: boom")

	var n int
	require.NoError(t, sqlite.WriteDB.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE name = 'scratch'`).Scan(&n))
	assert.Zero(t, n)

	pending, err := runner.Pending()
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestMigrationRunner_PanicBecomesError(t *testing.T) {
	sqlite := setupTestDB(t)
	runner, err := NewMigrationRunner(sqlite.WriteDB, zap.NewNop().Sugar())
	require.NoError(t, err)

	runner.Register(Migration{Version: 300, Name: "panics", Up: func(tx *sql.Tx) error {
		panic("bad migration")
	}})
	assert.ErrorContains(t, runner.Run(), "migration panicked: bad migration")
}

func TestCreateIndexIfNotExists_RejectsBadIdentifiers(t *testing.T) {
	sqlite := setupTestDB(t)

	tests := []struct {
		name, index, table, columns string
	}{
		{"index", "idx; DROP TABLE rules", "rules", "name"},
		{"table", "idx_x", "rules--", "name"},
		{"column", "idx_x", "rules", "name, 1bad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sqlite.WithTransaction(func(tx *sql.Tx) error {
				return createIndexIfNotExists(tx, tt.index, tt.table, tt.columns)
			})
			assert.ErrorContains(t, err, "invalid SQL identifier")
		})
	}
}
