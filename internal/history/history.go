// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package history

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirseerhq/issue-history/internal/github"
)

// MaxBuckets bounds the number of points Resample produces.
const MaxBuckets = 1_000_000

// ErrTooManyBuckets is returned by Resample when the step is too fine for
// the span of the series.
var ErrTooManyBuckets = errors.New("resampling interval too fine for the history span")

// Point is the number of open issues right after an event at Time.
type Point struct {
	Time time.Time `json:"time"`
	Open int       `json:"open"`
}

type eventKind int

const (
	opened eventKind = iota
	closed
)

type event struct {
	at     time.Time
	kind   eventKind
	number uint64
}

// Aggregate returns the running open-issue count after each open and close
// event of issues. A close recorded before its own open is treated as
// happening at the open time.
func Aggregate(issues []github.Issue) []Point {
	events := make([]event, 0, 2*len(issues))
	for _, issue := range issues {
		events = append(events, event{at: issue.CreatedAt, kind: opened, number: issue.Number})
		if issue.ClosedAt == nil {
			continue
		}
		at := *issue.ClosedAt
		if at.Before(issue.CreatedAt) {
			at = issue.CreatedAt
		}
		events = append(events, event{at: at, kind: closed, number: issue.Number})
	}

	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.at.Equal(b.at) {
			return a.at.Before(b.at)
		}
		if a.kind != b.kind {
			return a.kind == opened
		}
		return a.number < b.number
	})

	points := make([]Point, 0, len(events))
	open := 0
	for _, e := range events {
		if e.kind == opened {
			open++
		} else {
			open--
		}
		points = append(points, Point{Time: e.at.UTC(), Open: open})
	}
	return points
}

// Resample reduces points to one point per step-wide bucket, from the bucket
// holding the first point through the bucket holding the last. Each result
// is stamped with its bucket start and carries the count at the end of the
// bucket. Buckets are aligned with time.Truncate. A non-positive step
// returns points unchanged. More than MaxBuckets buckets is an error.
func Resample(points []Point, step time.Duration) ([]Point, error) {
	if step <= 0 || len(points) == 0 {
		return points, nil
	}

	start := points[0].Time.Truncate(step)
	last := points[len(points)-1].Time.Truncate(step)

	// Sub saturates for spans beyond ~292 years, which still exceeds the bound.
	buckets := last.Sub(start) / step
	if buckets >= MaxBuckets {
		return nil, fmt.Errorf("%w: %s over %s needs more than %d points",
			ErrTooManyBuckets, step, last.Sub(start).Round(time.Hour), MaxBuckets)
	}

	out := make([]Point, 0, int(buckets)+1)
	open := 0
	i := 0
	for bucket := start; !bucket.After(last); bucket = bucket.Add(step) {
		end := bucket.Add(step)
		for i < len(points) && points[i].Time.Before(end) {
			open = points[i].Open
			i++
		}
		out = append(out, Point{Time: bucket, Open: open})
	}
	return out, nil
}

// Peak returns the point with the highest open count, the earliest one when
// several tie. It reports false for an empty series.
func Peak(points []Point) (Point, bool) {
	if len(points) == 0 {
		return Point{}, false
	}
	peak := points[0]
	for _, p := range points[1:] {
		if p.Open > peak.Open {
			peak = p
		}
	}
	return peak, true
}

// Current returns the open count after the last event, or zero for an
// empty series.
func Current(points []Point) int {
	if len(points) == 0 {
		return 0
	}
	return points[len(points)-1].Open
}
