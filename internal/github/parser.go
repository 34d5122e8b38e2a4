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

package github

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	histerrors "github.com/sirseerhq/issue-history/internal/errors"
)

// issuesEnvelope mirrors the response to BuildIssuesQuery. Pointers mark the
// parts of the shape that must be present.
type issuesEnvelope struct {
	Data *struct {
		Repository *struct {
			Issues *struct {
				PageInfo *struct {
					HasNextPage bool    `json:"hasNextPage"`
					EndCursor   *string `json:"endCursor"`
				} `json:"pageInfo"`
				Edges *[]issueEdge `json:"edges"`
			} `json:"issues"`
		} `json:"repository"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type issueEdge struct {
	Cursor string `json:"cursor"`
	Node   *struct {
		Number    uint64     `json:"number"`
		CreatedAt *time.Time `json:"createdAt"`
		ClosedAt  *time.Time `json:"closedAt"`
	} `json:"node"`
}

type graphqlError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ParseIssuesPage decodes a response to BuildIssuesQuery. The checks run in
// a fixed order: HTTP status, JSON validity, GraphQL errors (which GitHub
// reports with status 200), then the data shape. pageSize is the size that
// was requested; it decides HasNextPage when the response has no pageInfo.
func ParseIssuesPage(body []byte, statusCode, pageSize int) (*IssuePage, error) {
	if statusCode != http.StatusOK {
		return nil, &histerrors.HTTPError{StatusCode: statusCode, Message: errorMessage(body)}
	}

	var env issuesEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &histerrors.MalformedResponseError{Reason: "body is not valid JSON", Err: err}
	}

	if len(env.Errors) > 0 {
		messages := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			messages = append(messages, e.Message)
		}
		return nil, &histerrors.GraphQLError{Messages: messages}
	}

	switch {
	case env.Data == nil:
		return nil, &histerrors.MalformedResponseError{Reason: "missing data"}
	case env.Data.Repository == nil:
		return nil, &histerrors.MalformedResponseError{Reason: "missing data.repository"}
	case env.Data.Repository.Issues == nil:
		return nil, &histerrors.MalformedResponseError{Reason: "missing data.repository.issues"}
	case env.Data.Repository.Issues.Edges == nil:
		return nil, &histerrors.MalformedResponseError{Reason: "missing data.repository.issues.edges"}
	}

	conn := env.Data.Repository.Issues
	edges := *conn.Edges

	page := &IssuePage{Issues: make([]Issue, 0, len(edges))}
	for i, edge := range edges {
		if edge.Node == nil {
			return nil, &histerrors.MalformedResponseError{Reason: fmt.Sprintf("edge %d has no node", i)}
		}
		if edge.Node.Number == 0 {
			return nil, &histerrors.MalformedResponseError{Reason: fmt.Sprintf("edge %d has no issue number", i)}
		}
		if edge.Node.CreatedAt == nil {
			return nil, &histerrors.MalformedResponseError{Reason: fmt.Sprintf("issue #%d has no createdAt", edge.Node.Number)}
		}
		page.Issues = append(page.Issues, Issue{
			Number:    edge.Node.Number,
			CreatedAt: edge.Node.CreatedAt.UTC(),
			ClosedAt:  utcPtr(edge.Node.ClosedAt),
		})
	}

	if len(edges) > 0 {
		page.EndCursor = edges[len(edges)-1].Cursor
	}
	if page.EndCursor == "" && conn.PageInfo != nil && conn.PageInfo.EndCursor != nil {
		page.EndCursor = *conn.PageInfo.EndCursor
	}

	if conn.PageInfo != nil {
		page.HasNextPage = conn.PageInfo.HasNextPage
	} else {
		page.HasNextPage = pageSize > 0 && len(edges) == pageSize
	}

	return page, nil
}

// errorMessage extracts GitHub's {"message": "..."} from an error body, or
// a trimmed prefix of a non-JSON body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
