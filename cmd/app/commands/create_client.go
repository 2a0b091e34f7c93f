package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	authDomain "github.com/allisson/escrow/internal/auth/domain"
	authUseCase "github.com/allisson/escrow/internal/auth/usecase"
	escrowDomain "github.com/allisson/escrow/internal/escrow/domain"
)

// RunCreateClient creates a new client. The client name is its principal id, e.g.
// "alice@example.com". Grants come from grantsJSON or, when it is empty, from an
// interactive prompt. Outputs the client ID and plain secret as text or JSON.
//
// Requirements: Database must be migrated and accessible.
func RunCreateClient(
	ctx context.Context,
	clientUseCase authUseCase.ClientUseCase,
	logger *slog.Logger,
	name string,
	isActive bool,
	grantsJSON string,
	format string,
	io IOTuple,
) error {
	logger.Info("creating new client", slog.String("name", name))

	grants, err := readGrants(grantsJSON, io)
	if err != nil {
		return err
	}

	output, err := clientUseCase.Create(ctx, &authDomain.CreateClientInput{
		Name:     name,
		IsActive: isActive,
		Grants:   grants,
	})
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	if format == "json" {
		outputJSON(output, io.Writer)
	} else {
		outputText(output, io.Writer)
	}

	logger.Info("client created successfully",
		slog.String("client_id", output.ID.String()),
		slog.String("name", name),
		slog.Bool("is_active", isActive),
	)

	return nil
}

// readGrants parses grantsJSON, prompting interactively when it is empty. Secret
// types are checked by the client use case.
func readGrants(grantsJSON string, io IOTuple) (authDomain.Grants, error) {
	if grantsJSON == "" {
		grants, err := promptForGrants(io)
		if err != nil {
			return nil, fmt.Errorf("failed to get grants: %w", err)
		}
		return grants, nil
	}

	grants, err := authDomain.ParseGrants([]byte(grantsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse grants JSON: %w", err)
	}
	return grants, nil
}

// promptForGrants asks for one secret type and its permissions at a time until the
// user declines to add another. An empty secret type on the first prompt means no grants.
func promptForGrants(io IOTuple) (authDomain.Grants, error) {
	reader := bufio.NewReader(io.Reader)
	writer := io.Writer
	grants := authDomain.Grants{}

	_, _ = fmt.Fprintln(writer, "\nEnter grants for the client (leave secret type empty for none)")
	_, _ = fmt.Fprintf(writer, "Secret types: %s\n", strings.Join(escrowDomain.SecretTypeNames(), ", "))
	_, _ = fmt.Fprintf(writer, "Permissions: %s\n", joinPermissions(authDomain.AllPermissions))
	_, _ = fmt.Fprintln(writer)

	for {
		_, _ = fmt.Fprint(writer, "Secret type: ")
		secretType, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read secret type: %w", err)
		}
		secretType = strings.ToLower(strings.TrimSpace(secretType))
		if secretType == "" {
			return grants, nil
		}

		_, _ = fmt.Fprint(writer, "Permissions (comma-separated, e.g. 'RETRIEVE,SEARCH'): ")
		permsInput, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read permissions: %w", err)
		}

		perms, err := parsePermissions(permsInput)
		if err != nil {
			return nil, err
		}
		grants[secretType] = append(grants[secretType], perms...)

		_, _ = fmt.Fprint(writer, "Add another grant? (y/n): ")
		addAnother, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		addAnother = strings.ToLower(strings.TrimSpace(addAnother))
		if addAnother != "y" && addAnother != "yes" {
			return grants, nil
		}
		_, _ = fmt.Fprintln(writer)
	}
}

// parsePermissions converts a comma-separated list into permissions.
func parsePermissions(input string) ([]authDomain.Permission, error) {
	var perms []authDomain.Permission
	for _, part := range strings.Split(input, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		p, err := authDomain.ParsePermission(part)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if len(perms) == 0 {
		return nil, fmt.Errorf("at least one permission is required")
	}
	return perms, nil
}

func joinPermissions(perms []authDomain.Permission) string {
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

// outputText outputs the result in human-readable text format.
func outputText(output *authDomain.CreateClientOutput, writer io.Writer) {
	_, _ = fmt.Fprintln(writer, "\nClient created successfully!")
	_, _ = fmt.Fprintf(writer, "Client ID: %s\n", output.ID.String())
	_, _ = fmt.Fprintf(writer, "Secret: %s\n", output.PlainSecret)
	_, _ = fmt.Fprintln(writer, "\nIMPORTANT: The secret is shown only once. Store it securely.")
}

// outputJSON outputs the result in JSON format for machine consumption.
func outputJSON(output *authDomain.CreateClientOutput, writer io.Writer) {
	writeJSON(writer, map[string]string{
		"client_id": output.ID.String(),
		"secret":    output.PlainSecret,
	})
}
