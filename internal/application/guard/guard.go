// Package guard implements the single participant check shared by the
// negotiation and bid services: a mutation is allowed only for the
// resource's buyer, its farmer, or an admin.
package guard

import (
	"context"
	"fmt"

	"github.com/agrimarket/negotiation-api/internal/domain"
)

// Resource is anything owned by a (buyer, farmer) pair.
type Resource interface {
	Participant(userID string) bool
}

// Require resolves the resource through load and verifies the caller may
// act on it. The resolved resource is returned so the caller never needs a
// second lookup. On a failed check the resource is never exposed.
func Require[T Resource](ctx context.Context, caller domain.Identity, load func(context.Context) (T, error)) (T, error) {
	var zero T
	res, err := load(ctx)
	if err != nil {
		return zero, err
	}
	if caller.Admin() {
		return res, nil
	}
	if caller.Guest() || !res.Participant(caller.UserID) {
		return zero, fmt.Errorf("not a participant: %w", domain.ErrForbidden)
	}
	return res, nil
}
