// Copyright 2025 The Mealdex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a failure for retry and reporting decisions.
type ErrorKind int

const (
	// KindTransient covers timeouts, throttling and 5xx-style failures.
	// Transient failures are retried with backoff at the originating layer.
	KindTransient ErrorKind = iota + 1
	// KindPermanent covers validation failures, unsupported content and
	// quota exhaustion. Never retried.
	KindPermanent
	// KindSchemaMismatch covers vector dimension violations. A form of
	// permanent failure surfaced with its own kind so callers can tell a
	// provider contract break from bad input.
	KindSchemaMismatch
	// KindPartialPersist means the image artifact was written but the
	// metadata record was not. The error carries the stored image ref so
	// the caller can decide whether to clean up or retry the record half.
	KindPartialPersist
	// KindConfigFatal covers collection/dimension misconfiguration. Aborts
	// an operation before any per-item work starts.
	KindConfigFatal
)

// String returns the reason token recorded in write reports and metrics.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindSchemaMismatch:
		return "schema_mismatch"
	case KindPartialPersist:
		return "partial_persist"
	case KindConfigFatal:
		return "config_fatal"
	default:
		return "unknown"
	}
}

// ItemError is a classified failure for a single item or operation.
type ItemError struct {
	Kind ErrorKind
	Op   string
	Refs *ArtifactRefs // set only for KindPartialPersist
	Err  error
}

func (e *ItemError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// NewItemError wraps err with a classification and the failing operation.
func NewItemError(kind ErrorKind, op string, err error) *ItemError {
	return &ItemError{Kind: kind, Op: op, Err: err}
}

// NewPartialPersist builds the artifact-half-written error, carrying the
// refs that did get stored.
func NewPartialPersist(op string, refs ArtifactRefs, err error) *ItemError {
	return &ItemError{Kind: KindPartialPersist, Op: op, Refs: &refs, Err: err}
}

// KindOf extracts the classification from err. Context cancellation and
// deadline expiry count as transient; an unclassified error defaults to
// transient so it gets at least one retry before the caller gives up.
func KindOf(err error) ErrorKind {
	var ie *ItemError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransient
	}
	return KindTransient
}

// IsRetryable reports whether the failure should be retried.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// ClassifyRemote guesses a classification for an error returned by a remote
// capability that does not carry one. It is a fallback for SDK errors;
// adapters that can classify precisely should do so themselves.
func ClassifyRemote(op string, err error) *ItemError {
	if err == nil {
		return nil
	}
	var ie *ItemError
	if errors.As(err, &ie) {
		return ie
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "throttl"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline"),
		strings.Contains(msg, "unavailable"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "too many requests"):
		return NewItemError(KindTransient, op, err)
	case strings.Contains(msg, "quota"),
		strings.Contains(msg, "invalid"),
		strings.Contains(msg, "unsupported"),
		strings.Contains(msg, "access denied"),
		strings.Contains(msg, "validation"):
		return NewItemError(KindPermanent, op, err)
	default:
		return NewItemError(KindTransient, op, err)
	}
}
