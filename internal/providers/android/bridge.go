package android

import (
	"context"
	"errors"
	"fmt"
)

// Status is the readiness of the Android subsystem.
type Status string

const (
	StatusDisabled     Status = "disabled"
	StatusInitializing Status = "initializing"
	StatusAvailable    Status = "available"
	StatusSuspended    Status = "suspended"
	StatusError        Status = "error"
)

// Statuses lists every status.
var Statuses = []Status{StatusDisabled, StatusInitializing, StatusAvailable, StatusSuspended, StatusError}

// Errors returned by bridges.
var (
	ErrUnavailable     = errors.New("android subsystem unavailable")
	ErrPackageNotFound = errors.New("android package not found")
)

// UnavailableError is returned when an operation needs an Available subsystem.
type UnavailableError struct {
	Status Status
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("android subsystem is %s", e.Status)
}

func (e *UnavailableError) Unwrap() error {
	return ErrUnavailable
}

// Bridge starts and stops packaged applications inside the Android runtime
// and reports its readiness.
type Bridge interface {
	Status() Status
	// Subscribe returns a channel receiving every status change and a func
	// that ends the subscription.
	Subscribe() (<-chan Status, func())
	Start(ctx context.Context, pkg, activity string) error
	Stop(ctx context.Context, pkg string) error
	IsRunning(ctx context.Context, pkg string) (bool, error)
}
