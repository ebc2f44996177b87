// Package errors defines the research engine's error taxonomy: collaborator
// failures, validation failures, the internal interrupt sentinel, and the
// composite user-visible error surfaced by the driver.
package errors

import (
	"errors"
	"fmt"
)

// LLMError reports a failure from the LLM collaborator. Transient errors are
// retried by the calling layer; permanent errors propagate immediately.
type LLMError struct {
	Provider  string
	Transient bool
	Message   string
	Cause     error
}

func (e *LLMError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("llm(%s): %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("llm(%s): %s", e.Provider, e.Message)
}

func (e *LLMError) Unwrap() error { return e.Cause }

// NewLLMError constructs a transient or permanent LLMError.
func NewLLMError(provider, message string, transient bool, cause error) *LLMError {
	return &LLMError{Provider: provider, Transient: transient, Message: message, Cause: cause}
}

// SearchError reports a failure from the SearchProvider collaborator.
type SearchError struct {
	Provider  string
	Transient bool
	Message   string
	Cause     error
}

func (e *SearchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("search(%s): %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("search(%s): %s", e.Provider, e.Message)
}

func (e *SearchError) Unwrap() error { return e.Cause }

// NewSearchError constructs a transient or permanent SearchError.
func NewSearchError(provider, message string, transient bool, cause error) *SearchError {
	return &SearchError{Provider: provider, Transient: transient, Message: message, Cause: cause}
}

// RateLimitError is always transient; it indicates the token bucket is
// exhausted and the caller should back off before retrying.
type RateLimitError struct {
	Provider string
	RetryAfterMs int64
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %s (retry after %dms)", e.Provider, e.RetryAfterMs)
}

// TimeoutError reports a per-call or per-node deadline exceeded.
type TimeoutError struct {
	Scope string // "call" or "node"
	Name  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timeout: %s", e.Scope, e.Name)
}

// ValidationError reports that structured LLM output failed schema
// conformance.
type ValidationError struct {
	Schema  string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation(%s): %s: %v", e.Schema, e.Message, e.Cause)
	}
	return fmt.Sprintf("validation(%s): %s", e.Schema, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// InterruptSignal describes a run suspended for plan confirmation. No
// package in the engine constructs it: planning_wait returns a state.Delta,
// and the driver suspends the run and emits an interrupt stream event
// itself.
type InterruptSignal struct {
	Reason      string
	ThreadID    string
}

func (e *InterruptSignal) Error() string {
	return fmt.Sprintf("interrupt: %s (thread=%s)", e.Reason, e.ThreadID)
}

// IsInterrupt reports whether err is (or wraps) an InterruptSignal.
func IsInterrupt(err error) bool {
	var sig *InterruptSignal
	return errors.As(err, &sig)
}

// ResearchErrorKind enumerates the composite, user-visible error kinds.
type ResearchErrorKind string

const (
	KindPlanning   ResearchErrorKind = "planning"
	KindSearch     ResearchErrorKind = "search"
	KindReflection ResearchErrorKind = "reflection"
	KindFinalize   ResearchErrorKind = "finalize"
	KindTimeout    ResearchErrorKind = "timeout"
	KindCancelled  ResearchErrorKind = "cancelled"
)

// ResearchError is the composite error the driver surfaces to callers on a
// fatal, non-degradable failure.
type ResearchError struct {
	Kind    ResearchErrorKind
	Message string
	Cause   error
}

func (e *ResearchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("research error [%s]: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("research error [%s]: %s", e.Kind, e.Message)
}

func (e *ResearchError) Unwrap() error { return e.Cause }

// NewResearchError constructs a ResearchError of the given kind.
func NewResearchError(kind ResearchErrorKind, message string, cause error) *ResearchError {
	return &ResearchError{Kind: kind, Message: message, Cause: cause}
}

// IsTransient reports whether err should be retried by the collaborator
// client layer: LLMError/SearchError marked transient, or a RateLimitError.
func IsTransient(err error) bool {
	var llmErr *LLMError
	if errors.As(err, &llmErr) {
		return llmErr.Transient
	}
	var searchErr *SearchError
	if errors.As(err, &searchErr) {
		return searchErr.Transient
	}
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	return false
}
