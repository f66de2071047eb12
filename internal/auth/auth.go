// Package auth holds transport-independent authorization rules.
package auth

import "storefront/internal/domain"

// Authorize reports whether callerID may act on a resource owned by ownerID.
// Admins may act on any resource.
func Authorize(callerID, ownerID string, role domain.Role) bool {
	if role == domain.RoleAdmin {
		return true
	}
	return callerID != "" && callerID == ownerID
}

// AuthorizeIdentity is Authorize for an authenticated caller.
func AuthorizeIdentity(id domain.Identity, ownerID string) bool {
	return Authorize(id.UserID, ownerID, id.Role)
}
