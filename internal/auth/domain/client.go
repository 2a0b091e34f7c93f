package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Grants maps a secret type to the permissions explicitly granted for it.
type Grants map[string][]Permission

// Has reports whether the grant for secretType includes p.
func (g Grants) Has(secretType string, p Permission) bool {
	return slices.Contains(g[secretType], p)
}

// ParseGrants decodes {"filevault":["RETRIEVE","SEARCH"],...} and validates every
// permission name.
func ParseGrants(data []byte) (Grants, error) {
	if len(data) == 0 {
		return Grants{}, nil
	}
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownPermission, err)
	}
	grants := make(Grants, len(raw))
	for secretType, names := range raw {
		perms := make([]Permission, 0, len(names))
		for _, name := range names {
			p, err := ParsePermission(name)
			if err != nil {
				return nil, err
			}
			if !slices.Contains(perms, p) {
				perms = append(perms, p)
			}
		}
		sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
		grants[strings.ToLower(strings.TrimSpace(secretType))] = perms
	}
	return grants, nil
}

// Client is an authenticated principal.
type Client struct {
	ID             uuid.UUID
	Secret         string //nolint:gosec // hashed client secret (not plaintext)
	Name           string // principal id, e.g. "alice@example.com"
	IsActive       bool
	Grants         Grants
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
}

// PrincipalID returns the identifier compared against record owners and creators.
func (c *Client) PrincipalID() string {
	return c.Name
}

// IsLocked reports whether the client is locked at now.
func (c *Client) IsLocked(now time.Time) bool {
	return c.LockedUntil != nil && c.LockedUntil.After(now)
}

// CreateClientInput contains the parameters for creating a client. The secret is
// generated and cannot be chosen by the caller.
type CreateClientInput struct {
	Name     string
	IsActive bool
	Grants   Grants
}

// CreateClientOutput is returned once on creation. PlainSecret is never retrievable again.
type CreateClientOutput struct {
	ID          uuid.UUID
	PlainSecret string
}

// UpdateClientInput contains the mutable fields of a client.
type UpdateClientInput struct {
	Name     string
	IsActive bool
	Grants   Grants
}
