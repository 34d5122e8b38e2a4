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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	histerrors "github.com/sirseerhq/issue-history/internal/errors"
	"github.com/sirseerhq/issue-history/internal/giterror"
	"github.com/sirseerhq/issue-history/internal/log"
)

// streams are the process's standard streams, replaced in tests.
type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], streams{in: os.Stdin, out: os.Stdout, err: os.Stderr})
	stop()
	os.Exit(code)
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, s streams) int {
	cmd := newRootCommand(s)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		log.ProgressClear()
		fmt.Fprintf(s.err, "Error: %v\n", err)
		if hint := giterror.UserAction(err); hint != "" {
			fmt.Fprintf(s.err, "Hint: %s\n", hint)
		}
		return mapErrorToExitCode(err)
	}
	return 0
}

// mapErrorToExitCode maps internal errors to appropriate exit codes
func mapErrorToExitCode(err error) int {
	if err == nil {
		return 0
	}

	if errors.Is(err, histerrors.ErrInvalidToken) ||
		errors.Is(err, histerrors.ErrRepoNotFound) ||
		errors.Is(err, histerrors.ErrRateLimit) {
		return 2 // Authentication/authorization errors
	}

	if errors.Is(err, histerrors.ErrNetworkFailure) {
		return 3 // Network errors
	}

	return 1 // General error
}
