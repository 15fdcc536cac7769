package repository

import (
	"context"
	"database/sql"
	"encoding/json"
)

// AuditRepo appends rows to the write-only audit log. Records are never
// read back by the application; the table exists for operators.
type AuditRepo struct{ DB *sql.DB }

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{DB: db} }

// Record inserts one audit row. Details may be nil; any marshal failure
// degrades to a null details column rather than dropping the record.
func (r *AuditRepo) Record(ctx context.Context, action string, actorID *uint64, targetType string, targetID *uint64, details any) error {
	var raw []byte
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			raw = b
		}
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO audits
		(action, actor_id, target_type, target_id, details) VALUES (?,?,?,?,?)`,
		action, actorID, targetType, targetID, raw)
	return err
}
