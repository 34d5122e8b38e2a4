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

// Package credentials reads the GitHub token and keeps it out of logs and
// error messages.
//
// The token is only ever obtained interactively. Flags and environment
// variables end up in shell history and process listings.
package credentials

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

const redacted = "[REDACTED]"

// ErrEmptyToken is returned when the user enters nothing.
var ErrEmptyToken = errors.New("GitHub token is empty")

// Token is a bearer token. Its String, GoString and LogValue methods never
// reveal the secret, so it is safe to pass to fmt or slog by accident.
type Token struct {
	value string
}

// NewToken wraps s, trimming surrounding whitespace.
func NewToken(s string) (Token, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Token{}, ErrEmptyToken
	}
	return Token{value: s}, nil
}

// Value returns the raw token for the Authorization header.
func (t Token) Value() string { return t.value }

// IsZero reports whether t holds no token.
func (t Token) IsZero() bool { return t.value == "" }

func (t Token) String() string { return redacted }

func (t Token) GoString() string { return "credentials.Token{" + redacted + "}" }

// LogValue implements slog.LogValuer.
func (t Token) LogValue() slog.Value { return slog.StringValue(redacted) }

// Prompt writes a prompt to out and reads a token from in. When in is a
// terminal the input is not echoed; otherwise a single line is read, which
// lets the token be piped in from a password manager.
func Prompt(in io.Reader, out io.Writer) (Token, error) {
	fmt.Fprint(out, "GitHub token: ")

	var raw string
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return Token{}, fmt.Errorf("failed to read token: %w", err)
		}
		raw = string(b)
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) {
				return Token{}, fmt.Errorf("failed to read token: no input: %w", ErrEmptyToken)
			}
			return Token{}, fmt.Errorf("failed to read token: %w", err)
		}
		raw = line
	}

	return NewToken(raw)
}
