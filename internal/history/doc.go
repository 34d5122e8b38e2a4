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

// Package history folds fetched issues into a time series of open-issue
// counts.
//
// Every issue contributes an open event at its creation time and, if it has
// been closed, a close event at its close time. Events are applied in time
// order with opens before closes at equal timestamps, so the running count
// never drops below zero and the result does not depend on the order in
// which issues were fetched.
package history
