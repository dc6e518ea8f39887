// hunt/service/errors.go
package service

import (
	"errors"
	"fmt"
)

var (
	// registration
	ErrMissingFields     = errors.New("missing required fields")
	ErrInvalidRoute      = errors.New("invalid ideal route")
	ErrDuplicateIdentity = errors.New("identity already registered")
	ErrDuplicateGroupID  = errors.New("group id already registered")

	// identity
	ErrUnknownIdentity = errors.New("identity not registered")
	ErrUnknownGroupID  = errors.New("group id not registered")
	ErrIdentityInUse   = errors.New("identity bound to another team")
	ErrRecoveryDenied  = errors.New("recovery code rejected")

	// verification
	ErrWrongGroup           = errors.New("scanned code belongs to another route color")
	ErrWrongCost            = errors.New("claimed cost does not match")
	ErrWrongNode            = errors.New("scanned node is not the next node")
	ErrRouteAlreadyComplete = errors.New("route already complete")
	ErrProgressConflict     = errors.New("progress changed concurrently")
	ErrCostUndefined        = errors.New("no expected cost configured for position")

	// infrastructure
	ErrStoreUnavailable = errors.New("store unavailable")
)

// WrongGroupError carries both color indexes of a misdirected scan.
type WrongGroupError struct {
	Expected  int
	Submitted int
}

func (e *WrongGroupError) Error() string {
	return fmt.Sprintf("%s: expected %d, submitted %d", ErrWrongGroup, e.Expected, e.Submitted)
}

func (e *WrongGroupError) Unwrap() error { return ErrWrongGroup }

// AttemptError is a rejected scan that has been written to the progress log.
// Kind is ErrWrongCost or ErrWrongNode.
type AttemptError struct {
	Kind         error
	ExpectedNode string // set for ErrWrongNode only
}

func (e *AttemptError) Error() string {
	if e.ExpectedNode != "" {
		return fmt.Sprintf("%s (expected %s)", e.Kind, e.ExpectedNode)
	}
	return e.Kind.Error()
}

func (e *AttemptError) Unwrap() error { return e.Kind }

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
