package forms

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// DeadlineCandidate is a date found in free text together with the words around it.
type DeadlineCandidate struct {
	Date    time.Time `json:"date"`
	Label   string    `json:"label"`
	Snippet string    `json:"snippet"`
}

var deadlineLabelHints = []string{
	"letter of intent", "loi", "deadline", "due", "closes", "closing date", "submission", "application period", "award date",
}

var dateSnippetRegexes = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{1,2}/\d{1,2}/20\d{2}\b`),
	regexp.MustCompile(`\b20\d{2}-\d{2}-\d{2}\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}\s+(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?\s+20\d{2}\b`),
	regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?\s+\d{1,2}(st|nd|rd|th)?,?\s+20\d{2}\b`),
}

var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"January 2 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
}

var ordinalSuffix = regexp.MustCompile(`(?i)(\d)(st|nd|rd|th)\b`)

// ParseDate reads one date written in a common US or ISO style. Slash dates are month-first.
// Date-only values resolve to the end of that day in UTC.
func ParseDate(text string) (time.Time, error) {
	s := strings.TrimSpace(text)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	s = ordinalSuffix.ReplaceAllString(s, "$1")
	s = strings.NewReplacer(",", " ", ".", " ").Replace(s)
	s = normalizeSpace(s)
	s = strings.Replace(s, "Sept ", "Sep ", 1)
	s = titleMonth(s)

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return endOfDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", text)
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
}

// titleMonth capitalises month words so "march 3 2026" matches the layouts.
func titleMonth(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) >= 3 && w[0] >= 'a' && w[0] <= 'z' {
			words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
		} else if len(w) >= 3 && w[0] >= 'A' && w[0] <= 'Z' {
			words[i] = w[:1] + strings.ToLower(w[1:])
		}
	}
	return strings.Join(words, " ")
}

// DeadlineCandidates finds every parseable date in text, soonest first, one entry per day.
func DeadlineCandidates(text string) []DeadlineCandidate {
	found := map[string]DeadlineCandidate{}
	for _, expr := range dateSnippetRegexes {
		for _, loc := range expr.FindAllStringIndex(text, -1) {
			parsed, err := ParseDate(text[loc[0]:loc[1]])
			if err != nil {
				continue
			}
			key := parsed.Format("2006-01-02")
			if _, ok := found[key]; ok {
				continue
			}

			start, end := loc[0]-80, loc[1]+80
			if start < 0 {
				start = 0
			}
			if end > len(text) {
				end = len(text)
			}
			snippet := normalizeSpace(text[start:end])
			label := "date"
			lower := strings.ToLower(snippet)
			for _, hint := range deadlineLabelHints {
				if strings.Contains(lower, hint) {
					label = hint
					break
				}
			}
			found[key] = DeadlineCandidate{Date: parsed, Label: label, Snippet: snippet}
		}
	}

	out := make([]DeadlineCandidate, 0, len(found))
	for _, c := range found {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
