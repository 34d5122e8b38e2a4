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

// Package output writes an open-issue time series in NDJSON or as a
// plain-text table.
//
// Both formats accept the same records through OutputWriter: a Status
// describing the fetch the series was built from, followed by one
// history.Point per row. A Status that is not Complete marks the series as
// partial; the NDJSON form carries "complete": false and the table form
// prints a highlighted INCOMPLETE banner before any rows.
//
// Example usage:
//
//	w, err := output.New(output.FormatNDJSON, os.Stdout, false)
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//
//	if err := output.WriteSeries(w, status, points); err != nil {
//	    return err
//	}
package output
