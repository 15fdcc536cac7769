package model

import "time"

// Rating is a student's anonymous review of an offering. One rating per
// (student, offering), enforced by a unique index. Ratings stay editable
// by their owner only while the offering's term is active; promotion
// closes them permanently.
type Rating struct {
	ID            uint64    `json:"id"`
	StudentID     uint64    `json:"student_id"`
	OfferingID    uint64    `json:"offering_id"`
	OverallRating int       `json:"overall_rating"`
	ObtainedMarks float64   `json:"obtained_marks"`
	Comment       *string   `json:"comment"`
	Anonymized    bool      `json:"anonymized"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RatingSummary is the frozen digest of all ratings for one offering in
// one now-inactive term. Rows are produced exclusively by term promotion
// (upsert on (offering_id, term_id)) and are never recomputed on read.
type RatingSummary struct {
	ID         uint64    `json:"id"`
	OfferingID uint64    `json:"offering_id"`
	TermID     uint64    `json:"term_id"`
	Summary    string    `json:"summary"`
	AvgOverall float64   `json:"avg_overall"`
	AvgMarks   float64   `json:"avg_marks"`
	Count      int       `json:"count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
