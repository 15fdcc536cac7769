package service

import (
	"strings"
	"testing"
)

func TestSummarizeNoComments(t *testing.T) {
	res := Summarize(nil, 3.5, 70)
	if res.Summary != "No comments available." {
		t.Fatalf("summary = %q", res.Summary)
	}
	if res.Count != 0 {
		t.Fatalf("count = %d, want 0", res.Count)
	}
	if res.AvgOverall != 3.5 || res.AvgMarks != 70 {
		t.Fatalf("averages not carried through: %+v", res)
	}
}

func TestSummarizeBasic(t *testing.T) {
	comments := []string{
		"Great project work and great pace.",
		"Project work was great.",
	}
	res := Summarize(comments, 4.0, 80.0)

	if res.Count != 2 {
		t.Fatalf("count = %d, want 2", res.Count)
	}
	wantLead := "Summary (based on 2 comment(s)): average overall 4.00, average marks 80.00."
	if !strings.HasPrefix(res.Summary, wantLead) {
		t.Fatalf("summary lead = %q, want prefix %q", res.Summary, wantLead)
	}
	// "great" occurs three times and must outrank the rest.
	if !strings.Contains(res.Summary, "Common topics mentioned include: great, project, work.") {
		t.Fatalf("topics sentence missing or wrong: %q", res.Summary)
	}
	if !strings.Contains(res.Summary, "Approximately 100% positive mentions and 0% negative/concern mentions among comments.") {
		t.Fatalf("sentiment sentence missing or wrong: %q", res.Summary)
	}
	if !strings.Contains(res.Summary, `"Great project work and great pace." — "Project work was great."`) {
		t.Fatalf("representative comments missing or wrong: %q", res.Summary)
	}
}

func TestSummarizeStopwordsExcluded(t *testing.T) {
	res := Summarize([]string{"The course and the teacher and the class and the lecture."}, 3, 50)
	if strings.Contains(res.Summary, "Common topics") {
		t.Fatalf("only stopwords in input, topics sentence should be absent: %q", res.Summary)
	}
}

func TestSummarizeTruncatesLongComments(t *testing.T) {
	long := strings.Repeat("é", 250)
	res := Summarize([]string{long}, 2, 40)
	if got := strings.Count(res.Summary, "é"); got != 200 {
		t.Fatalf("clamped comment carries %d runes, want 200", got)
	}
	if !strings.Contains(res.Summary, `..."`) {
		t.Fatalf("missing ellipsis after clamp: %q", res.Summary)
	}
}

func TestSummarizeCollapsesWhitespace(t *testing.T) {
	res := Summarize([]string{"  good\n\tstuff   here  "}, 5, 90)
	if !strings.Contains(res.Summary, `"good stuff here"`) {
		t.Fatalf("whitespace not collapsed: %q", res.Summary)
	}
}

func TestSummarizeNeverPanics(t *testing.T) {
	inputs := [][]string{
		{""},
		{"\x00\x01\x02"},
		{strings.Repeat("词汇", 5000)},
		{"a", "b", "c", "d", "e", "f", "g"},
	}
	for _, comments := range inputs {
		res := Summarize(comments, 1, 0)
		if res.Summary == "" {
			t.Fatalf("empty summary for %q", comments)
		}
		if res.Count != len(comments) {
			t.Fatalf("count = %d, want %d", res.Count, len(comments))
		}
	}
}

func TestFallbackSummaryCapsAtFive(t *testing.T) {
	comments := []string{"one", "two", "three", "four", "five", "six", "seven"}
	res := fallbackSummary(comments, 3, 60)
	lines := strings.Split(res.Summary, "\n")
	if len(lines) != 5 {
		t.Fatalf("fallback has %d lines, want 5", len(lines))
	}
	if lines[0] != "1. one" || lines[4] != "5. five" {
		t.Fatalf("fallback lines wrong: %q", lines)
	}
	if res.Count != 7 {
		t.Fatalf("count = %d, want 7", res.Count)
	}
}

func TestRoundPct(t *testing.T) {
	cases := []struct {
		part, total, want int
	}{
		{0, 0, 0},
		{1, 2, 50},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
	}
	for _, c := range cases {
		if got := roundPct(c.part, c.total); got != c.want {
			t.Fatalf("roundPct(%d, %d) = %d, want %d", c.part, c.total, got, c.want)
		}
	}
}
