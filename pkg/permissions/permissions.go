// Package permissions models microphone authorization as an external
// collaborator. Platform-specific checkers live with the embedding
// application; this package defines the contract and simple implementations.
package permissions

import "errors"

// ErrMicrophoneDenied indicates the user denied microphone access.
// Recovery requires changing the permission in system settings.
var ErrMicrophoneDenied = errors.New(
	"permissions: microphone access denied; enable it for this app in system settings")

// Status is the microphone authorization status.
type Status int

const (
	// NotDetermined means the user has not been asked yet.
	NotDetermined Status = iota
	// Restricted means access is blocked by system policy.
	Restricted
	// Denied means the user explicitly denied access.
	Denied
	// Authorized means the user granted access.
	Authorized
)

// String returns a human-readable status.
func (s Status) String() string {
	switch s {
	case NotDetermined:
		return "not-determined"
	case Restricted:
		return "restricted"
	case Denied:
		return "denied"
	case Authorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Checker reports and requests microphone authorization.
type Checker interface {
	// Status returns the current authorization status.
	Status() Status

	// Request asks the user for authorization. On platforms without a
	// prompt this is a no-op returning nil.
	Request() error
}

// Granted is a Checker that always reports Authorized. Platforms without a
// permission model (and the mock audio backend) use it.
type Granted struct{}

// Status implements Checker.
func (Granted) Status() Status { return Authorized }

// Request implements Checker.
func (Granted) Request() error { return nil }

// StaticChecker reports a fixed status; Request transitions NotDetermined
// to the configured outcome. Used in tests.
type StaticChecker struct {
	// Current is the reported status.
	Current Status

	// GrantOnRequest makes Request move NotDetermined to Authorized
	// instead of Denied.
	GrantOnRequest bool

	// Requested counts Request calls.
	Requested int
}

// Status implements Checker.
func (c *StaticChecker) Status() Status { return c.Current }

// Request implements Checker.
func (c *StaticChecker) Request() error {
	c.Requested++
	if c.Current == NotDetermined {
		if c.GrantOnRequest {
			c.Current = Authorized
		} else {
			c.Current = Denied
		}
	}
	if c.Current == Denied || c.Current == Restricted {
		return ErrMicrophoneDenied
	}
	return nil
}
