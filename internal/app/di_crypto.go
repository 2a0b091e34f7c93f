package app

import (
	"fmt"
	"log/slog"

	cryptoDomain "github.com/allisson/escrow/internal/crypto/domain"
	cryptoService "github.com/allisson/escrow/internal/crypto/service"
	escrowDomain "github.com/allisson/escrow/internal/escrow/domain"
)

// Keyset is the shared keyset from KEYSET_JSON or KEYSET_FILE. It also keys the audit
// log signatures. Shutdown zeroes it.
func (c *Container) Keyset() (*cryptoDomain.Keyset, error) {
	return c.keyset.get(func() (*cryptoDomain.Keyset, error) {
		data, err := c.config.KeysetData()
		if err != nil {
			return nil, fmt.Errorf("failed to load keyset: %w", err)
		}
		defer cryptoDomain.Zero(data)

		keyset, err := cryptoDomain.ParseKeyset(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse keyset: %w", err)
		}
		c.Logger().Info("keyset loaded",
			slog.Any("primary_version", keyset.Primary().Version),
			slog.Int("versions", len(keyset.Versions())),
		)
		return keyset, nil
	})
}

func (c *Container) KMSService() cryptoService.KMSService {
	return c.kmsService.value(cryptoService.NewKMSService)
}

// Envelope serves every secret type key name from the shared keyset. The cloud KMS
// backend is registered only when KMS_KEY_URI_TEMPLATE is set.
func (c *Container) Envelope() (cryptoService.Envelope, error) {
	return c.envelope.get(func() (cryptoService.Envelope, error) {
		keyset, err := c.Keyset()
		if err != nil {
			return nil, fmt.Errorf("failed to get keyset for envelope: %w", err)
		}

		keysets := map[string]*cryptoDomain.Keyset{}
		for _, keyName := range escrowDomain.KeyNames() {
			keysets[keyName] = keyset
		}
		backends := []cryptoService.Backend{cryptoService.NewKeysetBackend(keysets)}
		if c.config.KMSKeyURITemplate != "" {
			backends = append(backends, cryptoService.NewKMSEnvelopeBackend(
				c.KMSService(),
				c.config.KMSKeyURITemplate,
				c.config.KMSMaxRetries,
				c.config.KMSRetryInitialInterval,
				c.Logger(),
			))
		}

		envelope, err := cryptoService.NewEnvelope(c.config.CryptoDefaultBackend, backends...)
		if err != nil {
			return nil, fmt.Errorf("failed to create envelope: %w", err)
		}
		return envelope, nil
	})
}
