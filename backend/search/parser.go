// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package search parses run-list queries such as
// `scenario:login is:failed date:>=2026-01-01 timeout`.
package search

import (
	"strings"
	"unicode"
)

// Operator defines the type of comparison for a filter.
type Operator string

const (
	OpEqual          Operator = "="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpRange          Operator = ".." // for date:2026-01..2026-02
)

// Longest prefix first.
var prefixOperators = []Operator{OpGreaterOrEqual, OpLessOrEqual, OpGreater, OpLess}

// Filter represents a structured criteria derived from the query string.
type Filter struct {
	Key      string   // e.g. "scenario", "date", "is"
	Value    string   // e.g. "login", "2026-01-01", "failed"
	MaxValue string   // Used only for OpRange
	Operator Operator // e.g. "=", ">="
}

// Query represents the parsed search query.
type Query struct {
	Filters  []Filter
	FreeText []string
}

// Empty reports whether q matches everything.
func (q Query) Empty() bool {
	return len(q.Filters) == 0 && len(q.FreeText) == 0
}

// Parse parses a search query string. It understands quoted strings
// (key:"value with spaces"), key:value pairs, comparison prefixes
// (duration:>2s) and ranges (date:2026-01..2026-02). Anything else is free
// text.
func Parse(input string) Query {
	q := Query{
		Filters:  make([]Filter, 0),
		FreeText: make([]string, 0),
	}

	for _, token := range tokenize(input) {
		key, val, ok := strings.Cut(token, ":")
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		// An unquoted second colon is ambiguous (e.g. broken:range:..).
		quoted := strings.HasPrefix(val, "\"") || strings.HasPrefix(val, "'")
		if !ok || key == "" || val == "" || (strings.Contains(val, ":") && !quoted) {
			q.FreeText = append(q.FreeText, removeQuotes(token))
			continue
		}
		q.Filters = append(q.Filters, parseFilter(key, val))
	}
	return q
}

func parseFilter(key, val string) Filter {
	if lo, hi, ok := strings.Cut(val, ".."); ok {
		return Filter{Key: key, Value: removeQuotes(lo), MaxValue: removeQuotes(hi), Operator: OpRange}
	}
	for _, op := range prefixOperators {
		if rest, ok := strings.CutPrefix(val, string(op)); ok {
			return Filter{Key: key, Value: removeQuotes(rest), Operator: op}
		}
	}
	return Filter{Key: key, Value: removeQuotes(val), Operator: OpEqual}
}

// tokenize splits the string by spaces, respecting quotes.
func tokenize(input string) []string {
	var tokens []string
	var current strings.Builder
	var quote rune

	for _, r := range input {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			current.WriteRune(r)
		case unicode.IsSpace(r):
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		case r == '"' || r == '\'':
			quote = r
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

func removeQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
