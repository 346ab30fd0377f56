// Copyright 2026 Mhttp Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package header implements the ordered, case-insensitive multimap used for
// HTTP/1.1 header fields. Unlike net/http's Header map it preserves field
// order and duplicate names, which matters both for faithful request
// encoding and for framing decisions on responses.
package header // import "mhttp.org/mhttp/header"

import (
	"strings"
)

// Pair is a single header field.
type Pair struct {
	Name  string
	Value string
}

// Set is an ordered sequence of header fields. Name comparisons are ASCII
// case-insensitive. The zero value is usable but callers typically go
// through New().
type Set struct {
	pairs []Pair
}

// New returns an empty header set.
func New() *Set {
	return &Set{}
}

// NewFromPairs returns a set pre-populated with the given fields, in order.
func NewFromPairs(pairs ...Pair) *Set {
	s := &Set{pairs: make([]Pair, len(pairs))}
	copy(s.pairs, pairs)
	return s
}

func nameEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Len returns the number of fields in the set.
func (s *Set) Len() int {
	return len(s.pairs)
}

// Pairs returns the fields in order. The slice is shared, do not mutate.
func (s *Set) Pairs() []Pair {
	return s.pairs
}

// Clone returns a deep copy of the set.
func (s *Set) Clone() *Set {
	c := &Set{pairs: make([]Pair, len(s.pairs))}
	copy(c.pairs, s.pairs)
	return c
}

// Append adds a field at the end of the set.
func (s *Set) Append(name, value string) {
	s.pairs = append(s.pairs, Pair{Name: name, Value: value})
}

// Add prepends a field so that later lookups see it before any existing
// field of the same name.
func (s *Set) Add(name, value string) {
	s.pairs = append([]Pair{{Name: name, Value: value}}, s.pairs...)
}

// AddIfMissing prepends a field unless a field with the same name exists.
func (s *Set) AddIfMissing(name, value string) {
	if s.Contains(name) {
		return
	}
	s.Add(name, value)
}

// Remove deletes every field matching any of the given names.
func (s *Set) Remove(names ...string) {
	out := s.pairs[:0]
	for _, p := range s.pairs {
		matched := false
		for _, n := range names {
			if nameEqual(p.Name, n) {
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, p)
		}
	}
	s.pairs = out
}

// Contains reports whether the set has at least one field with that name.
func (s *Set) Contains(name string) bool {
	_, found := s.Find(name)
	return found
}

// Find returns the value of the first field with that name.
func (s *Set) Find(name string) (string, bool) {
	for _, p := range s.pairs {
		if nameEqual(p.Name, name) {
			return p.Value, true
		}
	}
	return "", false
}

// FindAll returns the values of all fields with that name, in order.
func (s *Set) FindAll(name string) []string {
	var values []string
	for _, p := range s.pairs {
		if nameEqual(p.Name, name) {
			values = append(values, p.Value)
		}
	}
	return values
}

// FindAllConcat returns all values for that name joined with ", ", the
// canonical combined form of RFC 7230 §3.2.2.
func (s *Set) FindAllConcat(name string) string {
	return strings.Join(s.FindAll(name), ", ")
}

// FindAllSplit splits each value for that name on commas and trims ASCII
// spaces and tabs around each element. Empty elements are dropped.
func (s *Set) FindAllSplit(name string) []string {
	var tokens []string
	for _, v := range s.FindAll(name) {
		for _, t := range strings.Split(v, ",") {
			t = strings.Trim(t, " \t")
			if t != "" {
				tokens = append(tokens, t)
			}
		}
	}
	return tokens
}

// FindTokenList is FindAllSplit with tokens lowercased, for the
// case-insensitive token lists (Connection, Transfer-Encoding, ...).
func (s *Set) FindTokenList(name string) []string {
	tokens := s.FindAllSplit(name)
	for i, t := range tokens {
		tokens[i] = strings.ToLower(t)
	}
	return tokens
}
