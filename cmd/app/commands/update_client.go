package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	authDomain "github.com/allisson/escrow/internal/auth/domain"
	authUseCase "github.com/allisson/escrow/internal/auth/usecase"
)

// RunUpdateClient updates the name, active flag and grants of a client. When
// grantsJSON is empty the current grants are shown and new ones are prompted for.
// The client ID and secret remain unchanged.
//
// Requirements: Database must be migrated and the client must exist.
func RunUpdateClient(
	ctx context.Context,
	clientUseCase authUseCase.ClientUseCase,
	logger *slog.Logger,
	io IOTuple,
	clientIDStr string,
	name string,
	isActive bool,
	grantsJSON string,
	format string,
) error {
	logger.Info("updating client", slog.String("client_id", clientIDStr))

	clientID, err := uuid.Parse(clientIDStr)
	if err != nil {
		return fmt.Errorf("invalid client ID format: %w", err)
	}

	existingClient, err := clientUseCase.Get(ctx, clientID)
	if err != nil {
		return fmt.Errorf("failed to get existing client: %w", err)
	}

	if grantsJSON == "" {
		_, _ = fmt.Fprintln(io.Writer, "\nCurrent grants:")
		writeGrants(io.Writer, existingClient.Grants)
	}

	grants, err := readGrants(grantsJSON, io)
	if err != nil {
		return err
	}

	input := &authDomain.UpdateClientInput{
		Name:     name,
		IsActive: isActive,
		Grants:   grants,
	}
	if err := clientUseCase.Update(ctx, clientID, input); err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}

	if format == "json" {
		writeJSON(io.Writer, map[string]any{
			"client_id": clientID.String(),
			"name":      name,
			"is_active": isActive,
			"grants":    grants,
		})
	} else {
		_, _ = fmt.Fprintln(io.Writer, "\nClient updated successfully!")
		_, _ = fmt.Fprintf(io.Writer, "Client ID: %s\n", clientID.String())
		_, _ = fmt.Fprintf(io.Writer, "Name: %s\n", name)
		_, _ = fmt.Fprintf(io.Writer, "Active: %t\n", isActive)
	}

	logger.Info("client updated successfully",
		slog.String("client_id", clientID.String()),
		slog.String("name", name),
		slog.Bool("is_active", isActive),
	)

	return nil
}

// writeGrants prints one line per secret type in name order.
func writeGrants(writer io.Writer, grants authDomain.Grants) {
	if len(grants) == 0 {
		_, _ = fmt.Fprintln(writer, "  (none)")
		return
	}
	secretTypes := make([]string, 0, len(grants))
	for secretType := range grants {
		secretTypes = append(secretTypes, secretType)
	}
	sort.Strings(secretTypes)
	for _, secretType := range secretTypes {
		_, _ = fmt.Fprintf(writer, "  %s: [%s]\n", secretType, joinPermissions(grants[secretType]))
	}
}

// RunListClients prints one page of clients.
func RunListClients(
	ctx context.Context,
	clientUseCase authUseCase.ClientUseCase,
	writer io.Writer,
	offset, limit int,
	format string,
) error {
	clients, err := clientUseCase.List(ctx, offset, limit)
	if err != nil {
		return fmt.Errorf("failed to list clients: %w", err)
	}

	if format == "json" {
		result := make([]map[string]any, 0, len(clients))
		for _, client := range clients {
			entry := map[string]any{
				"client_id":       client.ID.String(),
				"name":            client.Name,
				"is_active":       client.IsActive,
				"grants":          client.Grants,
				"failed_attempts": client.FailedAttempts,
				"created_at":      client.CreatedAt,
			}
			if client.LockedUntil != nil {
				entry["locked_until"] = client.LockedUntil
			}
			result = append(result, entry)
		}
		writeJSON(writer, result)
		return nil
	}

	for _, client := range clients {
		status := "active"
		if !client.IsActive {
			status = "inactive"
		}
		if client.LockedUntil != nil {
			status += ", locked until " + client.LockedUntil.UTC().Format("2006-01-02 15:04:05")
		}
		_, _ = fmt.Fprintf(writer, "%s  %s  (%s)\n", client.ID, client.Name, status)
		var sb strings.Builder
		writeGrants(&sb, client.Grants)
		_, _ = fmt.Fprint(writer, sb.String())
	}
	return nil
}

// RunDeactivateClient disables a client. Records it escrowed or owns are unaffected.
func RunDeactivateClient(
	ctx context.Context,
	clientUseCase authUseCase.ClientUseCase,
	logger *slog.Logger,
	writer io.Writer,
	clientIDStr string,
) error {
	clientID, err := uuid.Parse(clientIDStr)
	if err != nil {
		return fmt.Errorf("invalid client ID format: %w", err)
	}
	if err := clientUseCase.Delete(ctx, clientID); err != nil {
		return fmt.Errorf("failed to deactivate client: %w", err)
	}
	logger.Info("client deactivated", slog.String("client_id", clientID.String()))
	_, _ = fmt.Fprintf(writer, "Client %s deactivated\n", clientID)
	return nil
}

// RunUnlockClient clears the lockout of a client after repeated failed token requests.
func RunUnlockClient(
	ctx context.Context,
	clientUseCase authUseCase.ClientUseCase,
	logger *slog.Logger,
	writer io.Writer,
	clientIDStr string,
) error {
	clientID, err := uuid.Parse(clientIDStr)
	if err != nil {
		return fmt.Errorf("invalid client ID format: %w", err)
	}
	if err := clientUseCase.Unlock(ctx, clientID); err != nil {
		return fmt.Errorf("failed to unlock client: %w", err)
	}
	logger.Info("client unlocked", slog.String("client_id", clientID.String()))
	_, _ = fmt.Fprintf(writer, "Client %s unlocked\n", clientID)
	return nil
}
