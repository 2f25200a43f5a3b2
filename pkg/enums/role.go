package enums

// Role identifies the actor type carried in access-token claims.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleMerchant   Role = "merchant"
	RoleSuperadmin Role = "superadmin"
)

func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the role is one of the known actor types.
func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleMerchant, RoleSuperadmin:
		return true
	}
	return false
}

// CanMutateCart reports whether the role may change cart contents.
// Merchants and superadmins observe carts read-only.
func (r Role) CanMutateCart() bool {
	return r == RoleCustomer
}
