package db

import (
	"context"
	"encoding/json"
	"fmt"

	"smartgreenhouse/internal/rules"
)

const createAuditTable = `CREATE TABLE IF NOT EXISTS rule_audit (
	id          BIGSERIAL PRIMARY KEY,
	rule_id     INTEGER NOT NULL,
	gh_id       INTEGER NOT NULL,
	op          TEXT NOT NULL,
	rule        JSONB,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const insertAudit = "INSERT INTO rule_audit (rule_id, gh_id, op, rule, recorded_at) VALUES ($1, $2, $3, $4, NOW())"

// EnsureSchema creates the audit table when missing
func (d *DB) EnsureSchema(ctx context.Context) error {
	_, err := d.pool.Exec(ctx, createAuditTable)
	return err
}

// RuleChanged logs a committed rule mutation to the audit table
func (d *DB) RuleChanged(ctx context.Context, change rules.Change) error {
	var state json.RawMessage
	if change.Op != rules.OpDeleted {
		raw, err := json.Marshal(change.Rule)
		if err != nil {
			return err
		}
		state = raw
	}
	if _, err := d.pool.Exec(ctx, insertAudit, change.Rule.ID, change.Rule.GreenhouseID, string(change.Op), state); err != nil {
		return fmt.Errorf("audit %s rule %d: %w", change.Op, change.Rule.ID, err)
	}
	return nil
}
