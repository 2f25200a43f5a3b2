package enums

import "fmt"

// CheckoutState drives the checkout call-to-action for a cart.
type CheckoutState string

const (
	CheckoutStateEmpty      CheckoutState = "empty"
	CheckoutStateReady      CheckoutState = "ready"
	CheckoutStateSubmitting CheckoutState = "submitting"
)

var validCheckoutStates = []CheckoutState{
	CheckoutStateEmpty,
	CheckoutStateReady,
	CheckoutStateSubmitting,
}

// String implements fmt.Stringer.
func (c CheckoutState) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c CheckoutState) IsValid() bool {
	for _, candidate := range validCheckoutStates {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCheckoutState converts raw input into a CheckoutState.
func ParseCheckoutState(value string) (CheckoutState, error) {
	for _, candidate := range validCheckoutStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout state %q", value)
}
