package domain

import (
	"fmt"
	"slices"
	"sort"

	"github.com/allisson/escrow/internal/errors"
)

// PermissionTable holds the domain-wide default permissions for every registered
// secret type. It is built once at startup and never mutated.
type PermissionTable struct {
	defaults map[string][]Permission
}

// DefaultPermissionsFor returns the built-in defaults for a secret type: every domain
// user may escrow and retrieve what they own, and provisioning additionally lets
// creators retrieve what they escrowed.
func DefaultPermissionsFor(secretType string) []Permission {
	perms := []Permission{PermissionEscrow, PermissionRetrieveOwn}
	if secretType == "provisioning" {
		perms = append(perms, PermissionRetrieveCreatedBy)
	}
	return perms
}

// NewPermissionTable builds a table for secretTypes. overridesJSON, when not empty,
// replaces the defaults of the types it names using the same document shape as grants.
// Overrides for unregistered types are rejected.
func NewPermissionTable(secretTypes []string, overridesJSON string) (*PermissionTable, error) {
	defaults := make(map[string][]Permission, len(secretTypes))
	for _, secretType := range secretTypes {
		defaults[secretType] = DefaultPermissionsFor(secretType)
	}

	if overridesJSON != "" {
		overrides, err := ParseGrants([]byte(overridesJSON))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid permission defaults: %v", errors.ErrConfiguration, err)
		}
		for secretType, perms := range overrides {
			if _, ok := defaults[secretType]; !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownSecretType, secretType)
			}
			defaults[secretType] = perms
		}
	}

	return &PermissionTable{defaults: defaults}, nil
}

// Defaults returns the default permissions for secretType.
func (t *PermissionTable) Defaults(secretType string) ([]Permission, error) {
	perms, ok := t.defaults[secretType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSecretType, secretType)
	}
	return slices.Clone(perms), nil
}

// SecretTypes returns the registered secret types in sorted order.
func (t *PermissionTable) SecretTypes() []string {
	types := make([]string, 0, len(t.defaults))
	for secretType := range t.defaults {
		types = append(types, secretType)
	}
	sort.Strings(types)
	return types
}
