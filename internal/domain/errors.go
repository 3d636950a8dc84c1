package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidEmail        = errors.New("please use a valid Gmail address (e.g. username@gmail.com)")
	ErrDuplicateEmail      = errors.New("this Gmail address is already registered, use a different address or log in")
	ErrUsernameExists      = errors.New("a user with this username already exists")
	ErrInvalidAccount      = errors.New("username, password and Gmail address are required")
	ErrAccountNotFound     = errors.New("account not found")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrTrialExpired        = errors.New("your free trial has expired, please contact support")
	ErrSessionNotFound     = errors.New("session not found or expired")
	ErrForbidden           = errors.New("admin access required")
	ErrInvalidFeeRecord    = errors.New("invalid fee record")
	ErrDuplicateOneTimeFee = errors.New("fee has already been paid for this academic year")
	ErrMonthAlreadyPaid    = errors.New("month has already been paid for this student")
	ErrExportNotFound      = errors.New("export not found")
)

// StorageError reports an I/O failure on persisted state. The state it refers
// to is left as it was before the failed operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ParseError describes a persisted row that could not be decoded.
type ParseError struct {
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d, column %q: %v", e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// OneTimeFeeError is returned when an annual or admission fee is submitted
// for an academic year in which it is already paid.
type OneTimeFeeError struct {
	FeeType      FeeType
	AcademicYear string
}

func (e *OneTimeFeeError) Error() string {
	return fmt.Sprintf("%s has already been paid for academic year %s", e.FeeType, e.AcademicYear)
}

func (e *OneTimeFeeError) Is(target error) bool {
	return target == ErrDuplicateOneTimeFee
}
