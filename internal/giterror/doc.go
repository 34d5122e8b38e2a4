// Package giterror provides error inspection capabilities for GitHub API errors.
// It centralizes the logic for identifying different types of errors returned by
// the GitHub GraphQL API. Typed errors from the internal errors package are
// checked first; plain string matching is kept as a fallback for errors that
// arrive from third-party clients which only expose a message.
package giterror
