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

package testutil

import (
	"math/rand/v2"
	"time"

	"github.com/sirseerhq/issue-history/internal/github"
)

// BaseTime is the creation time of issue #1 in generated datasets.
var BaseTime = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// IssueBuilder provides a fluent API for creating test issues
type IssueBuilder struct {
	issue github.Issue
}

// NewIssue creates a builder for an open issue created number hours after
// BaseTime.
func NewIssue(number uint64) *IssueBuilder {
	return &IssueBuilder{issue: github.Issue{
		Number:    number,
		CreatedAt: BaseTime.Add(time.Duration(number) * time.Hour),
	}}
}

// CreatedAt sets the creation time.
func (b *IssueBuilder) CreatedAt(t time.Time) *IssueBuilder {
	b.issue.CreatedAt = t.UTC()
	return b
}

// ClosedAt marks the issue closed at t.
func (b *IssueBuilder) ClosedAt(t time.Time) *IssueBuilder {
	closed := t.UTC()
	b.issue.ClosedAt = &closed
	return b
}

// ClosedAfter marks the issue closed d after its creation.
func (b *IssueBuilder) ClosedAfter(d time.Duration) *IssueBuilder {
	return b.ClosedAt(b.issue.CreatedAt.Add(d))
}

// Build returns the issue.
func (b *IssueBuilder) Build() github.Issue {
	return b.issue
}

// GenerateIssues returns n issues numbered 1..n in creation order. Roughly
// two thirds are closed after a pseudo-random delay derived from seed, so
// the same seed always yields the same dataset.
func GenerateIssues(n int, seed uint64) []github.Issue {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	issues := make([]github.Issue, 0, n)
	for i := 1; i <= n; i++ {
		b := NewIssue(uint64(i))
		if rng.IntN(3) > 0 {
			b.ClosedAfter(time.Duration(rng.IntN(240)) * time.Hour)
		}
		issues = append(issues, b.Build())
	}
	return issues
}
