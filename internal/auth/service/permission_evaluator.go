package service

import (
	"slices"

	authDomain "github.com/allisson/escrow/internal/auth/domain"
)

// permissionEvaluator is stateless apart from the immutable table it was built with.
type permissionEvaluator struct {
	table *authDomain.PermissionTable
}

// NewPermissionEvaluator creates a PermissionEvaluator over table.
func NewPermissionEvaluator(table *authDomain.PermissionTable) PermissionEvaluator {
	return &permissionEvaluator{table: table}
}

// HasCapability implements PermissionEvaluator.
func (e *permissionEvaluator) HasCapability(
	principal *authDomain.Client,
	secretType string,
	p authDomain.Permission,
) (bool, error) {
	defaults, err := e.table.Defaults(secretType)
	if err != nil {
		return false, err
	}
	if slices.Contains(defaults, p) {
		return true, nil
	}
	if principal == nil {
		return false, nil
	}
	return principal.Grants.Has(secretType, p), nil
}
