package types

import (
	"github.com/google/uuid"

	"github.com/aoinlabs/storefront-backend/pkg/enums"
)

// Actor identifies the authenticated caller for a request. It is threaded
// explicitly through services rather than read from ambient state.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// CanMutateCart reports whether the actor may change cart contents.
func (a Actor) CanMutateCart() bool {
	return a.Role.CanMutateCart()
}
