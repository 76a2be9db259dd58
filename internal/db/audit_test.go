package db

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartgreenhouse/internal/models"
	"smartgreenhouse/internal/rules"
)

type execCall struct {
	sql  string
	args []any
}

type fakeExecer struct {
	calls []execCall
	err   error
}

func (f *fakeExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func TestDB_RuleChanged(t *testing.T) {
	ex := &fakeExecer{}
	d := &DB{pool: ex}
	rule := models.NewTimeRule(3, "Lights", 6, 9, "07:00")
	rule.ID = 21

	require.NoError(t, d.RuleChanged(context.Background(), rules.Change{Op: rules.OpUpdated, Rule: rule}))
	require.Len(t, ex.calls, 1)
	assert.Equal(t, insertAudit, ex.calls[0].sql)
	assert.Equal(t, 21, ex.calls[0].args[0])
	assert.Equal(t, 3, ex.calls[0].args[1])
	assert.Equal(t, "updated", ex.calls[0].args[2])

	var stored map[string]any
	require.NoError(t, json.Unmarshal(ex.calls[0].args[3].(json.RawMessage), &stored))
	assert.Equal(t, "07:00", stored["time_spec"])
}

func TestDB_RuleChangedDeleteHasNoState(t *testing.T) {
	ex := &fakeExecer{}
	d := &DB{pool: ex}

	require.NoError(t, d.RuleChanged(context.Background(), rules.Change{Op: rules.OpDeleted, Rule: models.Rule{ID: 4, GreenhouseID: 1}}))
	assert.Nil(t, ex.calls[0].args[3])
}

func TestDB_RuleChangedError(t *testing.T) {
	d := &DB{pool: &fakeExecer{err: errors.New("connection reset")}}
	err := d.RuleChanged(context.Background(), rules.Change{Op: rules.OpCreated, Rule: models.NewTimeRule(1, "x", 0, 2, "08:00")})
	assert.ErrorContains(t, err, "connection reset")
}

func TestDB_EnsureSchema(t *testing.T) {
	ex := &fakeExecer{}
	d := &DB{pool: ex}
	require.NoError(t, d.EnsureSchema(context.Background()))
	assert.Contains(t, ex.calls[0].sql, "CREATE TABLE IF NOT EXISTS rule_audit")
	d.Close()
}
