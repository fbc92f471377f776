package data

import (
	"errors"
	"fmt"

	"github.com/roach88/podctl/internal/pod"
)

// ErrAlreadyClaimed is returned when a second writer tries to claim a
// domain. Match with errors.Is.
var ErrAlreadyClaimed = errors.New("domain already claimed")

// ClaimError describes a rejected claim.
type ClaimError struct {
	Domain pod.Domain
	// Owner is the name the domain was first claimed under.
	Owner string
	// Requester is the name of the rejected claimant.
	Requester string
}

// Error implements the error interface.
func (e *ClaimError) Error() string {
	return fmt.Sprintf("claim %s by %q: already owned by %q", e.Domain, e.Requester, e.Owner)
}

// Unwrap lets errors.Is match ErrAlreadyClaimed.
func (e *ClaimError) Unwrap() error {
	return ErrAlreadyClaimed
}
