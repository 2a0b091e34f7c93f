package testing

import (
	"github.com/google/uuid"

	authDomain "github.com/allisson/escrow/internal/auth/domain"
	authService "github.com/allisson/escrow/internal/auth/service"
	cryptoDomain "github.com/allisson/escrow/internal/crypto/domain"
	cryptoService "github.com/allisson/escrow/internal/crypto/service"
	escrowDomain "github.com/allisson/escrow/internal/escrow/domain"
)

// CreateKeyset creates a keyset with a single random PRIMARY version.
func CreateKeyset() *cryptoDomain.Keyset {
	version, err := cryptoDomain.GenerateKeyVersion(1, cryptoDomain.KeyStatusPrimary)
	if err != nil {
		panic(err)
	}
	keyset, err := cryptoDomain.NewKeyset([]*cryptoDomain.KeyVersion{version})
	if err != nil {
		panic(err)
	}
	return keyset
}

// CreateEnvelope creates an envelope that writes with the keyset backend and serves
// every registered key name from keyset.
func CreateEnvelope(keyset *cryptoDomain.Keyset) cryptoService.Envelope {
	keysets := make(map[string]*cryptoDomain.Keyset)
	for _, name := range escrowDomain.KeyNames() {
		keysets[name] = keyset
	}
	envelope, err := cryptoService.NewEnvelope(cryptoDomain.BackendKeyset, cryptoService.NewKeysetBackend(keysets))
	if err != nil {
		panic(err)
	}
	return envelope
}

// CreatePermissionEvaluator creates an evaluator over the built-in defaults for every
// registered secret type.
func CreatePermissionEvaluator() authService.PermissionEvaluator {
	table, err := authDomain.NewPermissionTable(escrowDomain.SecretTypeNames(), "")
	if err != nil {
		panic(err)
	}
	return authService.NewPermissionEvaluator(table)
}

// CreateClient creates an active principal named name with grants.
func CreateClient(name string, grants authDomain.Grants) *authDomain.Client {
	if grants == nil {
		grants = authDomain.Grants{}
	}
	return &authDomain.Client{
		ID:       uuid.Must(uuid.NewV7()),
		Name:     name,
		IsActive: true,
		Grants:   grants,
	}
}

// FileVaultMetadata returns metadata satisfying the filevault requirements.
func FileVaultMetadata() map[string]string {
	return map[string]string{
		"hdd_serial":    "HDD-0001",
		"platform_uuid": "PLATFORM-0001",
		"serial":        "SERIAL-0001",
	}
}
