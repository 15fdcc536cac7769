package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"time"

	"github.com/adnanhaider/course-review-portal/internal/model"
)

var (
	ErrTermName  = errors.New("term name must match fa|sp plus a two-digit year, e.g. fa24")
	ErrTermDates = errors.New("term start and end dates must be set")
)

var termNamePattern = regexp.MustCompile(`^(fa|sp)(\d{2})$`)

// ValidTermName reports whether a name follows the fa{YY}/sp{YY} shape.
func ValidTermName(name string) bool { return termNamePattern.MatchString(name) }

// NextTermName derives the succeeding term: fall rolls into the spring
// of the next year, spring into the fall of the same year.
func NextTermName(name string) (string, bool) {
	m := termNamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	yy, _ := strconv.Atoi(m[2])
	if m[1] == "fa" {
		return fmt.Sprintf("sp%02d", yy+1), true
	}
	return fmt.Sprintf("fa%02d", yy), true
}

type termStore interface {
	GetByID(ctx context.Context, id uint64) (model.Term, error)
	GetByName(ctx context.Context, name string) (model.Term, error)
	GetActive(ctx context.Context) (model.Term, error)
	Create(ctx context.Context, name string, start, end *time.Time, active bool) (model.Term, error)
	SetDates(ctx context.Context, id uint64, start, end *time.Time) error
	DeactivateAll(ctx context.Context) error
	Activate(ctx context.Context, id uint64) error
}

type promotionOfferingStore interface {
	IDsByTerm(ctx context.Context, termID uint64) ([]uint64, error)
}

type promotionRatingStore interface {
	ListForOffering(ctx context.Context, offeringID uint64) ([]model.Rating, error)
}

type summaryStore interface {
	Upsert(ctx context.Context, s model.RatingSummary) error
}

// AuditSink records an audit trail entry. Failures are the sink's
// problem; lifecycle operations never fail because of auditing.
type AuditSink interface {
	Record(ctx context.Context, action string, actorID *uint64, targetType string, targetID *uint64, details any)
}

// TermService orchestrates term creation, activation and promotion.
// Promotion is the only writer of rating summaries.
type TermService struct {
	Terms     termStore
	Offerings promotionOfferingStore
	Ratings   promotionRatingStore
	Summaries summaryStore
	Audit     AuditSink
}

// PromotionOutcome reports what a promotion produced.
type PromotionOutcome struct {
	Activated  model.Term `json:"activated"`
	Next       model.Term `json:"next"`
	Summarized int        `json:"summarized"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
}

// CreateTerm inserts a term. A term created active displaces any other
// active term first, preserving the at-most-one-active invariant.
func (s *TermService) CreateTerm(ctx context.Context, actorID *uint64, name string, start, end *time.Time, active bool) (model.Term, error) {
	if !ValidTermName(name) {
		return model.Term{}, ErrTermName
	}
	if active {
		if err := s.Terms.DeactivateAll(ctx); err != nil {
			return model.Term{}, err
		}
	}
	term, err := s.Terms.Create(ctx, name, start, end, active)
	if err != nil {
		return model.Term{}, err
	}
	s.audit(ctx, "term.create", actorID, term.ID, map[string]any{"name": term.Name, "active": active})
	return term, nil
}

// ActivateTerm makes one dated term the single active term.
func (s *TermService) ActivateTerm(ctx context.Context, actorID *uint64, id uint64) (model.Term, error) {
	term, err := s.Terms.GetByID(ctx, id)
	if err != nil {
		return model.Term{}, err
	}
	if !term.Dated() {
		return model.Term{}, ErrTermDates
	}
	if err := s.Terms.DeactivateAll(ctx); err != nil {
		return model.Term{}, err
	}
	if err := s.Terms.Activate(ctx, id); err != nil {
		return model.Term{}, err
	}
	term.IsActive = true
	s.audit(ctx, "term.activate", actorID, term.ID, map[string]any{"name": term.Name})
	return term, nil
}

// PromoteTerm runs the composite end-of-term workflow: it activates the
// target term, guarantees its successor exists, and freezes the outgoing
// term's ratings into stored summaries. Re-running a promotion is safe;
// the successor lookup and summary upserts are idempotent.
func (s *TermService) PromoteTerm(ctx context.Context, actorID *uint64, id uint64, start, end, nextStart, nextEnd *time.Time) (PromotionOutcome, error) {
	// Capture the outgoing term before any state changes.
	var outgoing *model.Term
	if cur, err := s.Terms.GetActive(ctx); err == nil {
		outgoing = &cur
	} else if !errors.Is(err, sql.ErrNoRows) {
		return PromotionOutcome{}, err
	}

	target, err := s.Terms.GetByID(ctx, id)
	if err != nil {
		return PromotionOutcome{}, err
	}
	if start != nil || end != nil {
		if err := s.Terms.SetDates(ctx, id, start, end); err != nil {
			return PromotionOutcome{}, err
		}
		if target, err = s.Terms.GetByID(ctx, id); err != nil {
			return PromotionOutcome{}, err
		}
	}
	if !target.Dated() {
		return PromotionOutcome{}, ErrTermDates
	}

	if err := s.Terms.DeactivateAll(ctx); err != nil {
		return PromotionOutcome{}, err
	}
	if err := s.Terms.Activate(ctx, id); err != nil {
		return PromotionOutcome{}, err
	}
	target.IsActive = true

	nextName, ok := NextTermName(target.Name)
	if !ok {
		return PromotionOutcome{}, ErrTermName
	}
	next, err := s.Terms.GetByName(ctx, nextName)
	if errors.Is(err, sql.ErrNoRows) {
		next, err = s.Terms.Create(ctx, nextName, nextStart, nextEnd, false)
	}
	if err != nil {
		return PromotionOutcome{}, err
	}

	out := PromotionOutcome{Activated: target, Next: next}
	if outgoing != nil {
		s.summarizeTerm(ctx, *outgoing, &out)
	}

	s.audit(ctx, "term.promote", actorID, target.ID, map[string]any{
		"activated":  target.Name,
		"next":       next.Name,
		"summarized": out.Summarized,
		"skipped":    out.Skipped,
		"failed":     out.Failed,
	})
	return out, nil
}

// summarizeTerm freezes every rated offering of the outgoing term. One
// offering failing must not abort the rest, so errors are counted and
// logged instead of returned.
func (s *TermService) summarizeTerm(ctx context.Context, outgoing model.Term, out *PromotionOutcome) {
	ids, err := s.Offerings.IDsByTerm(ctx, outgoing.ID)
	if err != nil {
		log.Printf("promote: list offerings for term %s: %v", outgoing.Name, err)
		out.Failed++
		return
	}
	for _, offeringID := range ids {
		ratings, err := s.Ratings.ListForOffering(ctx, offeringID)
		if err != nil {
			log.Printf("promote: load ratings for offering %d: %v", offeringID, err)
			out.Failed++
			continue
		}
		if len(ratings) == 0 {
			out.Skipped++
			continue
		}

		var sumOverall, sumMarks float64
		var comments []string
		for _, r := range ratings {
			sumOverall += float64(r.OverallRating)
			sumMarks += r.ObtainedMarks
			if r.Comment != nil && *r.Comment != "" {
				comments = append(comments, *r.Comment)
			}
		}
		avgOverall := sumOverall / float64(len(ratings))
		avgMarks := sumMarks / float64(len(ratings))

		res := Summarize(comments, avgOverall, avgMarks)
		err = s.Summaries.Upsert(ctx, model.RatingSummary{
			OfferingID: offeringID,
			TermID:     outgoing.ID,
			Summary:    res.Summary,
			AvgOverall: res.AvgOverall,
			AvgMarks:   res.AvgMarks,
			Count:      res.Count,
		})
		if err != nil {
			log.Printf("promote: store summary for offering %d: %v", offeringID, err)
			out.Failed++
			continue
		}
		out.Summarized++
	}
}

func (s *TermService) audit(ctx context.Context, action string, actorID *uint64, termID uint64, details any) {
	if s.Audit != nil {
		s.Audit.Record(ctx, action, actorID, "Term", &termID, details)
	}
}
