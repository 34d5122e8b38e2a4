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

package state

import (
	"time"

	"github.com/sirseerhq/issue-history/internal/github"
)

// CurrentVersion is the current checkpoint schema version.
// Increment this when making breaking changes to the Checkpoint structure.
const CurrentVersion = 1

// Checkpoint is the persisted progress of one repository fetch.
type Checkpoint struct {
	// Version indicates the schema version of this file.
	Version int `json:"version"`

	// Checksum is the SHA256 hash of the content (excluding this field).
	Checksum string `json:"checksum"`

	// Repository is the full repository name in "owner/name" format.
	Repository string `json:"repository"`

	// FetchID identifies the fetch that wrote the checkpoint.
	FetchID string `json:"fetch_id"`

	// Cursor is the end cursor of the last page fetched. Resuming asks for
	// the page after it.
	Cursor string `json:"cursor"`

	// PageSize is the page size the cursor was produced with.
	PageSize int `json:"page_size"`

	// Pages is the number of pages fetched so far.
	Pages int `json:"pages"`

	// Issues holds every issue fetched so far, in creation order.
	Issues []github.Issue `json:"issues"`

	// UpdatedAt records when the checkpoint was written.
	UpdatedAt time.Time `json:"updated_at"`
}
