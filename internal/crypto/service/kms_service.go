package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"gocloud.dev/secrets"

	cryptoDomain "github.com/allisson/escrow/internal/crypto/domain"

	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// KeyNamePlaceholder is replaced by a secret type's key name in KMS URI templates.
const KeyNamePlaceholder = "{key_name}"

// kmsSchemes are the gocloud.dev/secrets drivers linked into the binary.
var kmsSchemes = []string{"awskms", "azurekeyvault", "base64key", "gcpkms", "hashivault"}

// KMSService opens keepers for KMS master keys.
type KMSService interface {
	// OpenKeeper opens a keeper for keyURI. The scheme must be one of awskms,
	// azurekeyvault, base64key, gcpkms or hashivault.
	OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error)
}

// ExpandKeyURI substitutes keyName into a KMS URI template.
func ExpandKeyURI(template, keyName string) (string, error) {
	if template == "" || keyName == "" {
		return "", cryptoDomain.ErrMissingKMSKey
	}
	return strings.ReplaceAll(template, KeyNamePlaceholder, keyName), nil
}

type kmsService struct{}

// NewKMSService creates a KMS service backed by gocloud.dev/secrets.
func NewKMSService() KMSService {
	return &kmsService{}
}

// OpenKeeper implements KMSService. Unsupported schemes are rejected before any driver
// is consulted, so a typo in the template fails with a configuration error.
func (k *kmsService) OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error) {
	scheme, _, ok := strings.Cut(keyURI, "://")
	if !ok || !slices.Contains(kmsSchemes, scheme) {
		return nil, fmt.Errorf("%w: unsupported KMS URI scheme %q", cryptoDomain.ErrMissingKMSKey, scheme)
	}

	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return keeper, nil
}
