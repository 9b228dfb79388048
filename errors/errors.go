// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package errors wraps pkg/errors and adds error codes, so callers can tell
// a missing object from a lost conditional write without string matching.
package errors

import (
	"github.com/pkg/errors"
)

// Code is an error code which can be used to check against a given error. For
// example, see the Is() method.
type Code string

const (
	ErrUncoded Code = "Uncoded"

	// ErrNotFound is returned when an object, secret or crawler does not
	// exist.
	ErrNotFound Code = "NotFound"

	// ErrPreconditionFailed is returned when a conditional write lost
	// against another writer.
	ErrPreconditionFailed Code = "PreconditionFailed"

	// ErrMalformedEnvelope marks an event payload that could not be decoded.
	ErrMalformedEnvelope Code = "MalformedEnvelope"

	// ErrMissingSecret is returned when a secret exists but lacks a
	// required key.
	ErrMissingSecret Code = "MissingSecret"

	ErrCrawlerRunning  Code = "CrawlerRunning"
	ErrCrawlerNotFound Code = "CrawlerNotFound"

	// ErrUpstream is returned for non-success responses from HTTP APIs.
	ErrUpstream Code = "Upstream"
)

func New(code Code, message string) error {
	return errors.WithStack(codedError{
		Code:    code,
		Message: message,
	})
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...interface{}) error {
	return New(code, errors.Errorf(format, args...).Error())
}

func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

func Cause(err error) error {
	return errors.Cause(err)
}

func Errorf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

// Is is a fork of the Is() method from `pkg/errors` which takes as its target
// an error Code instead of an error.
func Is(err error, target Code) bool {
	match := codedError{
		Code: target,
	}
	return errors.Is(err, match)
}

// IsErr reports whether any error in err's chain matches target.
func IsErr(err, target error) bool {
	return errors.Is(err, target)
}

func Unwrap(err error) error {
	return errors.Unwrap(err)
}

func WithMessage(err error, message string) error {
	return errors.WithMessage(err, message)
}

func WithMessagef(err error, format string, args ...interface{}) error {
	return errors.WithMessagef(err, format, args...)
}

func WithStack(err error) error {
	return errors.WithStack(err)
}

func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

func Wrapf(err error, fmt string, args ...interface{}) error {
	return errors.Wrapf(err, fmt, args...)
}

// WithCode attaches code to err while keeping err's message. A nil err stays
// nil.
func WithCode(err error, code Code) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(codedError{
		Code:    code,
		Message: err.Error(),
		cause:   err,
	})
}

// codedError is the fundamental type used by this package to provide coded
// errors.
type codedError struct {
	Code    Code
	Message string

	cause error
}

func (ce codedError) Error() string {
	return ce.Message
}

func (ce codedError) Is(err error) bool {
	if e, ok := err.(codedError); ok && ce.Code == e.Code {
		return true
	}
	return false
}

// Unwrap exposes the error given to WithCode, so SDK error types remain
// reachable through errors.As.
func (ce codedError) Unwrap() error {
	return ce.cause
}
