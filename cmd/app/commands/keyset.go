package commands

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"

	cryptoDomain "github.com/allisson/escrow/internal/crypto/domain"
	cryptoService "github.com/allisson/escrow/internal/crypto/service"
)

// RunCreateKeyset generates a keyset with a single PRIMARY version and prints it as a
// KEYSET_JSON assignment. Key material is zeroed after encoding.
func RunCreateKeyset(logger *slog.Logger, writer io.Writer) error {
	version, err := cryptoDomain.GenerateKeyVersion(1, cryptoDomain.KeyStatusPrimary)
	if err != nil {
		return fmt.Errorf("failed to generate key version: %w", err)
	}

	keyset, err := cryptoDomain.NewKeyset([]*cryptoDomain.KeyVersion{version})
	if err != nil {
		return fmt.Errorf("failed to build keyset: %w", err)
	}
	defer keyset.Zero()

	if err := writeKeyset(writer, keyset); err != nil {
		return err
	}

	logger.Info("keyset created", slog.Any("primary_version", keyset.Primary().Version))
	return nil
}

// RunRotateKeyset adds a fresh PRIMARY version to the existing keyset. The previous
// primary stays usable for decryption as ACTIVE. Deploy the printed keyset to every
// instance before data written with the new version is expected to be readable.
func RunRotateKeyset(logger *slog.Logger, writer io.Writer, existing []byte) error {
	if len(existing) == 0 {
		return fmt.Errorf("no existing keyset configured - set KEYSET_JSON or KEYSET_FILE")
	}

	keyset, err := cryptoDomain.ParseKeyset(existing)
	if err != nil {
		return fmt.Errorf("failed to parse existing keyset: %w", err)
	}
	defer keyset.Zero()

	rotated, err := keyset.Rotate()
	if err != nil {
		return fmt.Errorf("failed to rotate keyset: %w", err)
	}
	defer rotated.Zero()

	if err := writeKeyset(writer, rotated); err != nil {
		return err
	}

	logger.Info("keyset rotated",
		slog.Any("previous_primary", keyset.Primary().Version),
		slog.Any("new_primary", rotated.Primary().Version),
	)
	return nil
}

func writeKeyset(writer io.Writer, keyset *cryptoDomain.Keyset) error {
	data, err := keyset.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode keyset: %w", err)
	}
	defer cryptoDomain.Zero(data)

	_, _ = fmt.Fprintln(writer, "# Keyset Configuration")
	_, _ = fmt.Fprintln(writer, "# Copy this environment variable to your .env file or secrets manager")
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintf(writer, "KEYSET_JSON='%s'\n", data)
	return nil
}

// RunCheckKMS opens the KMS key for keyName and round-trips a random probe through it.
// It is meant to be run before switching CRYPTO_DEFAULT_BACKEND to envelope_cloud_kms.
func RunCheckKMS(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	uriTemplate, keyName string,
) error {
	if uriTemplate == "" {
		return fmt.Errorf("KMS_KEY_URI_TEMPLATE is not set")
	}
	keyURI, err := cryptoService.ExpandKeyURI(uriTemplate, keyName)
	if err != nil {
		return fmt.Errorf("invalid KMS key reference: %w", err)
	}

	keeper, err := kmsService.OpenKeeper(ctx, keyURI)
	if err != nil {
		return fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			logger.Warn("failed to close KMS keeper", slog.Any("error", closeErr))
		}
	}()

	probe := make([]byte, 32)
	if _, err := rand.Read(probe); err != nil {
		return fmt.Errorf("failed to generate probe: %w", err)
	}

	ciphertext, err := keeper.Encrypt(ctx, probe)
	if err != nil {
		return fmt.Errorf("failed to encrypt with KMS: %w", err)
	}
	plaintext, err := keeper.Decrypt(ctx, ciphertext)
	if err != nil {
		return fmt.Errorf("failed to decrypt with KMS: %w", err)
	}
	if !bytes.Equal(plaintext, probe) {
		return fmt.Errorf("KMS round trip returned different plaintext")
	}

	logger.Info("kms check passed", slog.String("key_name", keyName))
	_, _ = fmt.Fprintf(writer, "KMS key for %q is usable\n", keyName)
	return nil
}
