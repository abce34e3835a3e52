// Copyright 2025 James Ross
// Package errs defines the error taxonomy used across the engine: a small
// hierarchy of typed, wrappable errors that the worker and control-plane
// classify on to decide retry/ack/HTTP-status behavior.
package errs

import (
	"errors"
	"fmt"
)

// ValidationError is invalid input at the API boundary or a step
// precondition. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError is a missing entity. Never retried.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// AuthError is invalid or missing credentials. Never retried.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string { return "auth: " + e.Reason }

func NewAuthError(reason string) *AuthError { return &AuthError{Reason: reason} }

// TransientServiceError is a timeout, 5xx, or connection reset from an
// external service. Retried by the broker up to max_retries.
type TransientServiceError struct {
	Service string
	Err     error
}

func (e *TransientServiceError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Service, e.Err)
}

func (e *TransientServiceError) Unwrap() error { return e.Err }

func NewTransientServiceError(service string, err error) *TransientServiceError {
	return &TransientServiceError{Service: service, Err: err}
}

// PermanentServiceError is a 4xx, malformed response, or contract violation
// from an external service. Not retried.
type PermanentServiceError struct {
	Service string
	Err     error
}

func (e *PermanentServiceError) Error() string {
	return fmt.Sprintf("%s: permanent: %v", e.Service, e.Err)
}

func (e *PermanentServiceError) Unwrap() error { return e.Err }

func NewPermanentServiceError(service string, err error) *PermanentServiceError {
	return &PermanentServiceError{Service: service, Err: err}
}

// StepError wraps any of the above with the step name that produced it.
type StepError struct {
	StepName string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.StepName, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func NewStepError(stepName string, err error) *StepError {
	return &StepError{StepName: stepName, Err: err}
}

// PipelineError wraps a StepError at the executor, carrying the job id.
type PipelineError struct {
	JobID        int64
	FailingStep  string
	Err          error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("job %d: pipeline failed at step %q: %v", e.JobID, e.FailingStep, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

func NewPipelineError(jobID int64, failingStep string, err error) *PipelineError {
	return &PipelineError{JobID: jobID, FailingStep: failingStep, Err: err}
}

// FatalSystemError means the DB or broker is unavailable; it aborts the
// current task and should flip the process-level readiness probe.
type FatalSystemError struct {
	Reason string
	Err    error
}

func (e *FatalSystemError) Error() string {
	return fmt.Sprintf("fatal: %s: %v", e.Reason, e.Err)
}

func (e *FatalSystemError) Unwrap() error { return e.Err }

func NewFatalSystemError(reason string, err error) *FatalSystemError {
	return &FatalSystemError{Reason: reason, Err: err}
}

// IsRetryable reports whether the queue should requeue a job that failed
// with err. Only TransientServiceError (anywhere in the chain) is
// retryable; everything else, including an unclassified error, is not.
func IsRetryable(err error) bool {
	var transient *TransientServiceError
	return errors.As(err, &transient)
}

// IsPermanent reports the inverse of IsRetryable for classified service
// errors specifically (used to decide ack vs nack at the worker).
func IsPermanent(err error) bool {
	var permanent *PermanentServiceError
	if errors.As(err, &permanent) {
		return true
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		return true
	}
	return false
}

// HTTPStatus maps a classified error onto the HTTP status the control
// plane should answer with. Falls back to 500.
func HTTPStatus(err error) int {
	var v *ValidationError
	if errors.As(err, &v) {
		return 422
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return 404
	}
	var auth *AuthError
	if errors.As(err, &auth) {
		return 401
	}
	return 500
}
