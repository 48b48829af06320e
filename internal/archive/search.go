package archive

import "strings"

// minTokenLen is the shortest usable substring token; anything shorter would
// match nearly everything.
const minTokenLen = 3

// predicate is one compiled, independently evaluable unit of a search query.
type predicate struct {
	token       string
	negate      bool
	tagPresence bool
}

// matches evaluates the predicate against one record. Substring predicates
// look at the canonical file-time string and every tag; a negated predicate
// requires the token to be absent from all of them.
func (p predicate) matches(r *FileRecord) bool {
	if p.tagPresence {
		return r.Tagged() != p.negate
	}

	targets := append([]string{r.FileTime()}, r.Tags...)
	for _, target := range targets {
		if strings.Contains(target, p.token) {
			return !p.negate
		}
	}
	return p.negate
}

// Query is a compiled search string: a conjunction of predicates.
type Query struct {
	predicates []predicate
}

// CompileQuery tokenizes a whitespace-separated query string into predicates.
// "tagged" and "!tagged" (case-insensitive) compile to tag-presence
// predicates; every other token is a substring match, negated when prefixed
// with "!". A token shorter than three characters after stripping the
// negation prefix fails the whole query with a ValidationError, before any
// row is evaluated.
func CompileQuery(q string) (*Query, error) {
	var preds []predicate
	for _, tok := range strings.Fields(q) {
		if eq := strings.EqualFold(tok, "tagged"); eq || strings.EqualFold(tok, "!tagged") {
			preds = append(preds, predicate{tagPresence: true, negate: !eq})
			continue
		}

		negate := strings.HasPrefix(tok, "!")
		tok = strings.TrimPrefix(tok, "!")
		if len(tok) < minTokenLen {
			return nil, validationf("search token too short: %q", tok)
		}
		preds = append(preds, predicate{token: tok, negate: negate})
	}
	return &Query{predicates: preds}, nil
}

// Match reports whether every predicate matches the record. A query with no
// predicates matches everything.
func (q *Query) Match(r *FileRecord) bool {
	for _, p := range q.predicates {
		if !p.matches(r) {
			return false
		}
	}
	return true
}

// Filter returns the records matching the query, preserving order.
func (q *Query) Filter(records []*FileRecord) []*FileRecord {
	if len(q.predicates) == 0 {
		return records
	}
	var out []*FileRecord
	for _, r := range records {
		if q.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
