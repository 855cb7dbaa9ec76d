// Package tagquery parses and evaluates boolean tag selectors such as
// "amenity~theatre+name,shop". Clauses are separated by ',' and OR-ed;
// predicates inside a clause are separated by '+' and AND-ed. A predicate is
// either a bare key (presence) or key~value (exact value, split on the first
// '~').
package tagquery

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/osm"
)

const (
	clauseSep    = ","
	predicateSep = "+"
	valueSep     = "~"
)

var ErrMalformedQuery = errors.New("malformed tag query")

type MalformedQueryError struct {
	Query    string
	Fragment string
	Reason   string
}

func (e *MalformedQueryError) Error() string {
	return fmt.Sprintf("malformed tag query %q: %s in %q", e.Query, e.Reason, e.Fragment)
}

func (e *MalformedQueryError) Unwrap() error {
	return ErrMalformedQuery
}

type Predicate struct {
	Key      string
	Value    string
	HasValue bool
}

func Has(key string) Predicate {
	return Predicate{Key: key}
}

// Equals matches key~value. Neither key nor value may contain ',' or '+'
// if the query is to be serialized again.
func Equals(key, value string) Predicate {
	return Predicate{Key: key, Value: value, HasValue: true}
}

func (p Predicate) match(lookup func(string) (string, bool)) bool {
	v, ok := lookup(p.Key)
	if !ok {
		return false
	}
	return !p.HasValue || v == p.Value
}

func (p Predicate) String() string {
	if p.HasValue {
		return p.Key + valueSep + p.Value
	}
	return p.Key
}

// Clause is a conjunction of predicates. An empty clause matches anything.
type Clause []Predicate

func And(predicates ...Predicate) Clause {
	return Clause(predicates)
}

func (c Clause) match(lookup func(string) (string, bool)) bool {
	for _, p := range c {
		if !p.match(lookup) {
			return false
		}
	}
	return true
}

func (c Clause) String() string {
	parts := make([]string, len(c))
	for i, p := range c {
		parts[i] = p.String()
	}
	return strings.Join(parts, predicateSep)
}

// Query is a disjunction of clauses. The zero Query matches nothing; use
// All or Parse("") for a query that matches everything.
type Query struct {
	clauses []Clause
}

func All() Query {
	return Query{clauses: []Clause{{}}}
}

// Or combines clauses. Without clauses, or with an empty clause among them,
// the result matches everything.
func Or(clauses ...Clause) Query {
	if len(clauses) == 0 {
		return All()
	}
	for _, c := range clauses {
		if len(c) == 0 {
			return All()
		}
	}
	return Query{clauses: clauses}
}

func (q Query) Clauses() []Clause {
	return q.clauses
}

// MatchAll reports whether q accepts every tag set.
func (q Query) MatchAll() bool {
	for _, c := range q.clauses {
		if len(c) == 0 {
			return true
		}
	}
	return false
}

func (q Query) Match(tags osm.Tags) bool {
	return q.match(func(key string) (string, bool) {
		for _, t := range tags {
			if t.Key == key {
				return t.Value, true
			}
		}
		return "", false
	})
}

func (q Query) match(lookup func(string) (string, bool)) bool {
	for _, c := range q.clauses {
		if c.match(lookup) {
			return true
		}
	}
	return false
}

func (q Query) String() string {
	parts := make([]string, len(q.clauses))
	for i, c := range q.clauses {
		parts[i] = c.String()
	}
	return strings.Join(parts, clauseSep)
}

// Parse compiles a selector. The empty string matches every tag set.
func Parse(s string) (Query, error) {
	if s == "" {
		return All(), nil
	}

	var clauses []Clause
	for _, clauseStr := range strings.Split(s, clauseSep) {
		if clauseStr == "" {
			return Query{}, &MalformedQueryError{Query: s, Fragment: s, Reason: "empty clause"}
		}

		var clause Clause
		for _, predStr := range strings.Split(clauseStr, predicateSep) {
			if predStr == "" {
				return Query{}, &MalformedQueryError{Query: s, Fragment: clauseStr, Reason: "empty predicate"}
			}

			key, value, hasValue := strings.Cut(predStr, valueSep)
			if key == "" {
				return Query{}, &MalformedQueryError{Query: s, Fragment: predStr, Reason: "empty key"}
			}
			clause = append(clause, Predicate{Key: key, Value: value, HasValue: hasValue})
		}
		clauses = append(clauses, clause)
	}

	return Query{clauses: clauses}, nil
}

// MustParse is like Parse but panics on malformed input.
func MustParse(s string) Query {
	q, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return q
}
