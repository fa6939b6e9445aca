// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package coderr defines the engine's structured error taxonomy (spec.md §7).
// Every CodeError carries a Kind and a human-actionable Suggestion, and wraps
// an underlying cause so callers can still errors.Is/errors.As through it.
//
// Named coderr (not errors) so call sites never shadow the stdlib package.
package coderr

import (
	"encoding/json"
	"fmt"
	"os"
)

// Kind enumerates the error taxonomy from spec.md §7.
type Kind int

const (
	KindParse Kind = iota
	KindIO
	KindStorageConflict
	KindResolutionAmbiguous
	KindResolutionMissing
	KindEmbeddingUnavailable
	KindVectorCorruption
	KindConfig
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "ParseError"
	case KindIO:
		return "IoError"
	case KindStorageConflict:
		return "StorageConflict"
	case KindResolutionAmbiguous:
		return "ResolutionAmbiguous"
	case KindResolutionMissing:
		return "ResolutionMissing"
	case KindEmbeddingUnavailable:
		return "EmbeddingUnavailable"
	case KindVectorCorruption:
		return "VectorCorruption"
	case KindConfig:
		return "ConfigError"
	case KindValidation:
		return "ValidationError"
	default:
		return "UnknownError"
	}
}

// CodeError is the engine-wide structured error type.
type CodeError struct {
	Kind       Kind
	Message    string
	Suggestion string
	Cause      error
}

func (e *CodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CodeError) Unwrap() error { return e.Cause }

func newErr(k Kind, suggestion, format string, args ...any) *CodeError {
	return &CodeError{Kind: k, Message: fmt.Sprintf(format, args...), Suggestion: suggestion}
}

// NewParseError reports a per-file parse failure. The indexer treats the
// file as empty for this snapshot but continues the run.
func NewParseError(path string, line int, reason string) *CodeError {
	return &CodeError{
		Kind:       KindParse,
		Message:    fmt.Sprintf("%s:%d: %s", path, line, reason),
		Suggestion: "check the file for unsupported syntax; indexing continues for other files",
	}
}

// NewIOError wraps a read/write failure on source or index files.
func NewIOError(cause error, context string) *CodeError {
	return &CodeError{
		Kind:       KindIO,
		Message:    context,
		Suggestion: "verify the path exists and is readable/writable",
		Cause:      cause,
	}
}

// NewStorageConflict reports writer-slot contention: not active, poisoned,
// or a schema-version mismatch.
func NewStorageConflict(reason string) *CodeError {
	return newErr(KindStorageConflict, "reinitialize the writer (open a fresh batch) before retrying", "%s", reason)
}

// NewResolutionAmbiguous is informational only; resolver never surfaces it
// to users, but tests and debug logging can construct one to describe why
// a relationship was dropped.
func NewResolutionAmbiguous(name string, candidates int) *CodeError {
	return newErr(KindResolutionAmbiguous, "no suggestion: relationship silently dropped", "%q resolved to %d candidates", name, candidates)
}

// NewResolutionMissing is informational only, mirroring NewResolutionAmbiguous.
func NewResolutionMissing(name string) *CodeError {
	return newErr(KindResolutionMissing, "no suggestion: relationship silently dropped", "%q resolved to no candidates", name)
}

// NewEmbeddingUnavailable reports that the embedding collaborator failed;
// the indexer degrades to text-only search and logs this once per run.
func NewEmbeddingUnavailable(cause error) *CodeError {
	return &CodeError{
		Kind:       KindEmbeddingUnavailable,
		Message:    "embedding model unavailable",
		Suggestion: "search will run text-only until the embedding model is reachable again",
		Cause:      cause,
	}
}

// NewVectorCorruption reports a segment header mismatch or truncated tail.
func NewVectorCorruption(segmentPath string, cause error) *CodeError {
	return &CodeError{
		Kind:       KindVectorCorruption,
		Message:    fmt.Sprintf("segment %s is corrupt or truncated", segmentPath),
		Suggestion: "run the vector repair command to rebuild the segment from live symbols",
		Cause:      cause,
	}
}

// NewConfigError names the offending key.
func NewConfigError(key, expected, actual string) *CodeError {
	return &CodeError{
		Kind:       KindConfig,
		Message:    fmt.Sprintf("key %q: expected %s, got %s", key, expected, actual),
		Suggestion: "fix the key in settings.toml or the overriding environment variable/flag",
	}
}

// NewValidationError reports a caller precondition failure with no side effects.
func NewValidationError(argument, reason string) *CodeError {
	return &CodeError{
		Kind:       KindValidation,
		Message:    fmt.Sprintf("%s: %s", argument, reason),
		Suggestion: "correct the argument and retry; no state was changed",
	}
}

// Fatal prints err (as JSON when asJSON is true, otherwise as a plain
// actionable message) to stderr and exits the process with status 1.
// Mirrors the teacher's errors.FatalError(err, globals.JSON) call-site
// convention used throughout cmd/cie.
func Fatal(err error, asJSON bool) {
	if err == nil {
		return
	}
	if asJSON {
		var ce *CodeError
		payload := map[string]any{"error": err.Error()}
		if ok := (func() bool { e, ok := err.(*CodeError); ce = e; return ok })(); ok {
			payload["kind"] = ce.Kind.String()
			payload["suggestion"] = ce.Suggestion
		}
		enc, _ := json.Marshal(payload)
		fmt.Fprintln(os.Stderr, string(enc))
		os.Exit(1)
	}
	if ce, ok := err.(*CodeError); ok {
		fmt.Fprintf(os.Stderr, "error: %s\nsuggestion: %s\n", ce.Error(), ce.Suggestion)
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(1)
}
