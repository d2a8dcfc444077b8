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

package search

import (
	"strings"
	"time"

	"github.com/ttbt-io/pagerunner/report"
)

// Match reports whether the run m satisfies every filter and free-text term
// of q. Unknown keys match nothing.
//
// Keys:
//
//	scenario:<substring>   is:passed | is:failed
//	step:<failed step>     date:<YYYY[-MM[-DD]]>
//	duration:<go duration> id:<run id>
//
// Free text matches the scenario, the error and the failed step.
func Match(q Query, m report.Metadata) bool {
	for _, f := range q.Filters {
		if !matchFilter(f, m) {
			return false
		}
	}
	for _, term := range q.FreeText {
		term = strings.ToLower(term)
		if !containsFold(m.Scenario, term) && !containsFold(m.Error, term) && !containsFold(m.FailedStep, term) {
			return false
		}
	}
	return true
}

func containsFold(s, lowerSub string) bool {
	return strings.Contains(strings.ToLower(s), lowerSub)
}

func matchFilter(f Filter, m report.Metadata) bool {
	switch f.Key {
	case "scenario":
		return containsFold(m.Scenario, strings.ToLower(f.Value))
	case "id":
		return m.ID == f.Value
	case "step":
		return containsFold(m.FailedStep, strings.ToLower(f.Value))
	case "is":
		switch strings.ToLower(f.Value) {
		case "passed", "pass":
			return m.Passed
		case "failed", "fail":
			return !m.Passed
		}
		return false
	case "date":
		return matchDate(f, m.StartedAt)
	case "duration":
		return matchDuration(f, m.Duration)
	}
	return false
}

// matchDate compares t with dates of varying precision: "2026" covers the
// whole year, "2026-03" the month.
func matchDate(f Filter, t time.Time) bool {
	lo, hi, ok := dateBounds(f.Value)
	if !ok {
		return false
	}
	t = t.UTC()
	switch f.Operator {
	case OpEqual:
		return !t.Before(lo) && t.Before(hi)
	case OpGreater:
		return !t.Before(hi)
	case OpGreaterOrEqual:
		return !t.Before(lo)
	case OpLess:
		return t.Before(lo)
	case OpLessOrEqual:
		return t.Before(hi)
	case OpRange:
		_, maxHi, ok := dateBounds(f.MaxValue)
		return ok && !t.Before(lo) && t.Before(maxHi)
	}
	return false
}

// dateBounds returns the half-open interval [lo, hi) covered by s.
func dateBounds(s string) (time.Time, time.Time, bool) {
	layouts := []struct {
		layout string
		next   func(time.Time) time.Time
	}{
		{"2006-01-02", func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }},
		{"2006-01", func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }},
		{"2006", func(t time.Time) time.Time { return t.AddDate(1, 0, 0) }},
	}
	for _, l := range layouts {
		if t, err := time.Parse(l.layout, s); err == nil {
			return t, l.next(t), true
		}
	}
	return time.Time{}, time.Time{}, false
}

func matchDuration(f Filter, d time.Duration) bool {
	v, err := time.ParseDuration(f.Value)
	if err != nil {
		return false
	}
	switch f.Operator {
	case OpEqual:
		return d == v
	case OpGreater:
		return d > v
	case OpGreaterOrEqual:
		return d >= v
	case OpLess:
		return d < v
	case OpLessOrEqual:
		return d <= v
	case OpRange:
		maxV, err := time.ParseDuration(f.MaxValue)
		return err == nil && d >= v && d <= maxV
	}
	return false
}
