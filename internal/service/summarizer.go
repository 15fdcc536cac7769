// Package service holds the domain workflows that sit between handlers
// and repositories: term lifecycle, rating eligibility, comment
// summarization and audit fan-out.
package service

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// SummaryResult is the digest produced for one offering's comments.
type SummaryResult struct {
	Summary    string
	AvgOverall float64
	AvgMarks   float64
	Count      int
}

var wordPattern = regexp.MustCompile(`\b[a-z]{3,}\b`)

// stopwords are dropped from keyword candidates. Domain filler words
// like "course" and "teacher" appear in nearly every comment and carry
// no signal.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "have": true, "has": true, "was": true, "were": true,
	"been": true, "are": true, "but": true, "not": true, "you": true,
	"your": true, "from": true, "they": true, "their": true, "them": true,
	"what": true, "when": true, "where": true, "who": true, "which": true,
	"there": true, "about": true, "also": true, "very": true, "can": true,
	"just": true, "our": true, "will": true, "would": true, "could": true,
	"should": true, "each": true, "course": true, "teacher": true,
	"class": true, "lecture": true,
}

var positiveWords = []string{
	"good", "great", "useful", "helpful", "clear", "excellent", "easy",
	"enjoy", "liked", "awesome", "well", "friendly",
}

var negativeWords = []string{
	"bad", "poor", "difficult", "confusing", "late", "slow", "hard",
	"problem", "boring", "fail", "unsatisfactory", "issue", "issues",
	"unresponsive",
}

var spaceRun = regexp.MustCompile(`\s+`)

// Summarize builds a short descriptive paragraph from free-text comments
// plus precomputed averages. It never panics: any internal failure
// degrades to a numbered plain list of the first comments.
func Summarize(comments []string, avgOverall, avgMarks float64) (res SummaryResult) {
	if len(comments) == 0 {
		return SummaryResult{Summary: "No comments available.", AvgOverall: avgOverall, AvgMarks: avgMarks}
	}
	defer func() {
		if r := recover(); r != nil {
			res = fallbackSummary(comments, avgOverall, avgMarks)
		}
	}()

	lc := strings.ToLower(strings.Join(comments, " "))

	// Frequency-ranked keywords; ties keep first-occurrence order.
	freq := map[string]int{}
	var order []string
	for _, w := range wordPattern.FindAllString(lc, -1) {
		if stopwords[w] {
			continue
		}
		if freq[w] == 0 {
			order = append(order, w)
		}
		freq[w]++
	}
	sort.SliceStable(order, func(i, j int) bool { return freq[order[i]] > freq[order[j]] })
	keywords := order
	if len(keywords) > 6 {
		keywords = keywords[:6]
	}

	posCount, negCount := 0, 0
	for _, c := range comments {
		lcC := strings.ToLower(c)
		if containsAny(lcC, positiveWords) {
			posCount++
		}
		if containsAny(lcC, negativeWords) {
			negCount++
		}
	}

	var examples []string
	for _, c := range comments {
		if len(examples) == 2 {
			break
		}
		examples = append(examples, clampComment(strings.TrimSpace(spaceRun.ReplaceAllString(c, " "))))
	}

	total := len(comments)
	var sentences []string
	sentences = append(sentences, fmt.Sprintf(
		"Summary (based on %d comment(s)): average overall %.2f, average marks %.2f.",
		total, avgOverall, avgMarks))
	if len(keywords) > 0 {
		theme := keywords
		if len(theme) > 3 {
			theme = theme[:3]
		}
		sentences = append(sentences, fmt.Sprintf("Common topics mentioned include: %s.", strings.Join(theme, ", ")))
	}
	if posCount > 0 || negCount > 0 {
		posPct := roundPct(posCount, total)
		negPct := roundPct(negCount, total)
		sentences = append(sentences, fmt.Sprintf(
			"Approximately %d%% positive mentions and %d%% negative/concern mentions among comments.",
			posPct, negPct))
	}
	if len(examples) > 0 {
		quoted := make([]string, len(examples))
		for i, e := range examples {
			quoted[i] = `"` + e + `"`
		}
		sentences = append(sentences, "Representative comments: "+strings.Join(quoted, " — "))
	}

	return SummaryResult{
		Summary:    strings.Join(sentences, " "),
		AvgOverall: avgOverall,
		AvgMarks:   avgMarks,
		Count:      total,
	}
}

func fallbackSummary(comments []string, avgOverall, avgMarks float64) SummaryResult {
	n := len(comments)
	if n > 5 {
		n = 5
	}
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, clampComment(comments[i])))
	}
	return SummaryResult{
		Summary:    strings.Join(lines, "\n"),
		AvgOverall: avgOverall,
		AvgMarks:   avgMarks,
		Count:      len(comments),
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// clampComment truncates long comments at 200 characters with an
// ellipsis, counting runes so multibyte text is never split.
func clampComment(c string) string {
	runes := []rune(c)
	if len(runes) > 200 {
		return string(runes[:200]) + "..."
	}
	return c
}

// roundPct rounds half up the way the rest of the UI expects.
func roundPct(part, total int) int {
	if total == 0 {
		return 0
	}
	return int((float64(part)/float64(total))*100 + 0.5)
}
