// Package search ranks item records against free-text queries with a
// typo-tolerant match over the name and location fields.
package search

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Record is one searchable entry. Payload carries the caller's original
// value through Filter untouched.
type Record struct {
	ID       string
	Name     string
	Location string
	Payload  interface{}
}

type scored struct {
	record Record
	score  int
}

// Filter returns the records matching query, best match first.
//
// The empty query matches everything (identity, original order). A query
// containing only whitespace has no tokens and matches nothing. Otherwise
// every query token must find a field token within an edit-distance budget
// of 40% of the query token's length; records failing any token are
// excluded. Ties keep input order.
func Filter(records []Record, query string) []Record {
	if query == "" {
		out := make([]Record, len(records))
		copy(out, records)
		return out
	}

	queryTokens := strings.Fields(strings.ToLower(query))
	if len(queryTokens) == 0 {
		return []Record{}
	}

	matched := make([]scored, 0, len(records))
	for _, rec := range records {
		fieldTokens := tokenize(rec.Name, rec.Location)
		total, ok := scoreRecord(queryTokens, fieldTokens)
		if ok {
			matched = append(matched, scored{record: rec, score: total})
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].score < matched[j].score
	})

	out := make([]Record, len(matched))
	for i, m := range matched {
		out[i] = m.record
	}
	return out
}

// scoreRecord sums each query token's best edit distance against the field
// tokens. A token with no field token inside its budget fails the record.
func scoreRecord(queryTokens, fieldTokens []string) (int, bool) {
	total := 0
	for _, qt := range queryTokens {
		best, ok := bestDistance(qt, fieldTokens)
		if !ok {
			return 0, false
		}
		total += best
	}
	return total, true
}

// bestDistance finds the minimum edit distance from the query token to any
// field token, accepting only distances within 40% of the query token length.
// A field token that contains the query token outright is a perfect match.
func bestDistance(queryToken string, fieldTokens []string) (int, bool) {
	budget := int(0.4 * float64(len(queryToken)))
	best := -1
	for _, ft := range fieldTokens {
		if strings.Contains(ft, queryToken) {
			return 0, true
		}
		d := fuzzy.LevenshteinDistance(queryToken, ft)
		if d <= budget && (best == -1 || d < best) {
			best = d
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

func tokenize(fields ...string) []string {
	var tokens []string
	for _, f := range fields {
		tokens = append(tokens, strings.Fields(strings.ToLower(f))...)
	}
	return tokens
}
