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

// Package state persists fetch checkpoints so an interrupted fetch can be
// resumed.
//
// After every page the fetch command writes the repository, the cursor of
// the last page and the issues fetched so far. Writes are atomic
// (write-to-temp, fsync, rename) and each file carries a SHA-256 checksum
// and a schema version, so a crash mid-write or a hand-edited file is
// detected on load instead of producing a silently wrong history.
//
// Example usage:
//
//	cp := &Checkpoint{
//	    Repository: "golang/go",
//	    Cursor:     page.EndCursor,
//	    PageSize:   100,
//	    Issues:     issues,
//	}
//	err := Save(cp, FilePath(stateDir, "golang/go"))
package state
