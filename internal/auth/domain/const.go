// Package domain defines authentication and authorization domain models.
//
// Clients are the principals of the escrow service. A client authenticates with its
// secret, receives a bearer token, and is authorized per secret type through
// permissions: the type's domain-wide defaults plus the client's explicit grants.
package domain

import (
	"fmt"
	"strings"
)

// Permission is a capability a principal may hold for one secret type.
type Permission string

const (
	// PermissionEscrow allows uploading secrets.
	PermissionEscrow Permission = "ESCROW"
	// PermissionRetrieve allows retrieving any secret of the type.
	PermissionRetrieve Permission = "RETRIEVE"
	// PermissionRetrieveOwn allows retrieving secrets the principal owns.
	PermissionRetrieveOwn Permission = "RETRIEVE_OWN"
	// PermissionRetrieveCreatedBy allows retrieving secrets the principal escrowed.
	PermissionRetrieveCreatedBy Permission = "RETRIEVE_CREATED_BY"
	// PermissionSilentRetrieve suppresses retrieval notifications entirely.
	PermissionSilentRetrieve Permission = "SILENT_RETRIEVE"
	// PermissionSilentRetrieveAudited routes retrieval notifications to the silent audit list only.
	PermissionSilentRetrieveAudited Permission = "SILENT_RETRIEVE_AUDITED"
	// PermissionChangeOwner allows replacing a record's owners.
	PermissionChangeOwner Permission = "CHANGE_OWNER"
	// PermissionSearch allows searching records.
	PermissionSearch Permission = "SEARCH"
	// PermissionMaster allows reading the audit log.
	PermissionMaster Permission = "MASTER"
)

// AllPermissions lists every known permission.
var AllPermissions = []Permission{
	PermissionEscrow,
	PermissionRetrieve,
	PermissionRetrieveOwn,
	PermissionRetrieveCreatedBy,
	PermissionSilentRetrieve,
	PermissionSilentRetrieveAudited,
	PermissionChangeOwner,
	PermissionSearch,
	PermissionMaster,
}

// ParsePermission converts a case-insensitive name into a Permission.
func ParsePermission(name string) (Permission, error) {
	p := Permission(strings.ToUpper(strings.TrimSpace(name)))
	for _, known := range AllPermissions {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPermission, name)
}
