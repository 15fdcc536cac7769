package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/adnanhaider/course-review-portal/internal/queue"
	"github.com/adnanhaider/course-review-portal/internal/repository"
)

// Auditor fans one audit record out to the database table and the
// audit.recorded queue. Both writes are best-effort; a broken broker or
// table must never fail the request that produced the record.
type Auditor struct {
	Repo *repository.AuditRepo
}

func NewAuditor(repo *repository.AuditRepo) *Auditor { return &Auditor{Repo: repo} }

func (a *Auditor) Record(ctx context.Context, action string, actorID *uint64, targetType string, targetID *uint64, details any) {
	if a == nil {
		return
	}
	if a.Repo != nil {
		if err := a.Repo.Record(ctx, action, actorID, targetType, targetID, details); err != nil {
			log.Printf("audit: record %s: %v", action, err)
		}
	}

	var raw json.RawMessage
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			raw = b
		}
	}
	ev := queue.AuditRecordedEvent{
		Action:     action,
		ActorID:    actorID,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    raw,
		RecordedAt: time.Now().UTC().Format(time.RFC3339),
	}
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = queue.PublishAuditRecorded(pubCtx, ev)
	}()
}
