package enums

import "fmt"

// CartLineStatus tracks how a persisted cart line should be rendered and priced.
// Removed and unavailable lines stay listed but contribute nothing to totals.
type CartLineStatus string

const (
	CartLineStatusOK          CartLineStatus = "ok"
	CartLineStatusRemoved     CartLineStatus = "removed"
	CartLineStatusUnavailable CartLineStatus = "unavailable"
)

var validCartLineStatuses = []CartLineStatus{
	CartLineStatusOK,
	CartLineStatusRemoved,
	CartLineStatusUnavailable,
}

// String implements fmt.Stringer.
func (c CartLineStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c CartLineStatus) IsValid() bool {
	for _, candidate := range validCartLineStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCartLineStatus converts raw input into a CartLineStatus.
func ParseCartLineStatus(value string) (CartLineStatus, error) {
	for _, candidate := range validCartLineStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart line status %q", value)
}
