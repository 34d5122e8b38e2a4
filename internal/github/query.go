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
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPageSize is returned by BuildIssuesQuery for a page size below 1.
var ErrInvalidPageSize = errors.New("page size must be positive")

// BuildIssuesQuery renders the GraphQL query for the next pageSize issues of
// repo after the given cursor, oldest first. An empty cursor starts from the
// first issue. Owner and name are not validated; the server rejects unknown
// repositories.
func BuildIssuesQuery(repo RepoRef, pageSize int, after string) (string, error) {
	if pageSize <= 0 {
		return "", fmt.Errorf("%w, got %d", ErrInvalidPageSize, pageSize)
	}

	args := []string{fmt.Sprintf("first: %d", pageSize)}
	if after != "" {
		args = append(args, "after: "+quote(after))
	}
	args = append(args, "orderBy: {field: CREATED_AT, direction: ASC}")

	var sb strings.Builder
	sb.WriteString("query {\n")
	fmt.Fprintf(&sb, "  repository(owner: %s, name: %s) {\n", quote(repo.Owner), quote(repo.Name))
	fmt.Fprintf(&sb, "    issues(%s) {\n", strings.Join(args, ", "))
	sb.WriteString(`      pageInfo {
        hasNextPage
        endCursor
      }
      edges {
        cursor
        node {
          number
          createdAt
          closedAt
        }
      }
    }
  }
}
`)
	return sb.String(), nil
}

// quote renders s as a GraphQL string literal. GraphQL string escapes are a
// subset of JSON's, so the JSON encoding is always a valid literal.
func quote(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		// json.Marshal cannot fail for a string.
		return `""`
	}
	return string(b)
}
