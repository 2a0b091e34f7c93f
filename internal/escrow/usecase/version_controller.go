package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/escrow/internal/audit/domain"
	authDomain "github.com/allisson/escrow/internal/auth/domain"
	authService "github.com/allisson/escrow/internal/auth/service"
	cryptoDomain "github.com/allisson/escrow/internal/crypto/domain"
	cryptoService "github.com/allisson/escrow/internal/crypto/service"
	"github.com/allisson/escrow/internal/database"
	apperrors "github.com/allisson/escrow/internal/errors"
	escrowDomain "github.com/allisson/escrow/internal/escrow/domain"
	outboxDomain "github.com/allisson/escrow/internal/outbox/domain"
)

// DefaultMaxSupersedeAttempts bounds how often Escrow re-evaluates after losing a race.
const DefaultMaxSupersedeAttempts = 5

// Config holds version controller settings.
type Config struct {
	DefaultEmailDomain     string
	RetrieveAuditAddresses []string
	SilentAuditAddresses   []string
	MaxSupersedeAttempts   int
}

type versionController struct {
	config     Config
	txManager  database.TxManager
	recordRepo SecretRecordRepository
	outboxRepo OutboxEventRepository
	envelope   cryptoService.Envelope
	evaluator  authService.PermissionEvaluator
	auditLog   AuditLogger
	logger     *slog.Logger
	now        func() time.Time
}

// NewVersionController creates a VersionController.
func NewVersionController(
	config Config,
	txManager database.TxManager,
	recordRepo SecretRecordRepository,
	outboxRepo OutboxEventRepository,
	envelope cryptoService.Envelope,
	evaluator authService.PermissionEvaluator,
	auditLog AuditLogger,
	logger *slog.Logger,
) VersionController {
	if config.MaxSupersedeAttempts <= 0 {
		config.MaxSupersedeAttempts = DefaultMaxSupersedeAttempts
	}
	return &versionController{
		config:     config,
		txManager:  txManager,
		recordRepo: recordRepo,
		outboxRepo: outboxRepo,
		envelope:   envelope,
		evaluator:  evaluator,
		auditLog:   auditLog,
		logger:     logger,
		now:        time.Now,
	}
}

func principalOf(client *authDomain.Client) string {
	if client == nil {
		return ""
	}
	return client.PrincipalID()
}

func (v *versionController) has(client *authDomain.Client, secretType string, p authDomain.Permission) (bool, error) {
	return v.evaluator.HasCapability(client, secretType, p)
}

// audit appends an entry. A failed append is logged and never fails the operation
// it describes.
func (v *versionController) audit(ctx context.Context, entry *auditDomain.AuditLog) {
	if err := v.auditLog.Append(ctx, entry); err != nil {
		v.logger.Error("failed to append audit log",
			slog.String("secret_type", entry.SecretType),
			slog.String("message", entry.Message),
			slog.Any("error", err),
		)
	}
}

// Escrow implements VersionController.
func (v *versionController) Escrow(
	ctx context.Context,
	input *escrowDomain.EscrowInput,
) (*escrowDomain.SecretRecord, error) {
	st, err := escrowDomain.LookupSecretType(input.SecretType)
	if err != nil {
		return nil, err
	}
	principal := principalOf(input.Requester)
	serverTime := input.Created.IsZero()

	in := v.normalizeEscrowInput(st, input)
	failed := func(err error) (*escrowDomain.SecretRecord, error) {
		v.audit(ctx, &auditDomain.AuditLog{
			SecretType: st.Name,
			Principal:  principal,
			Message:    auditDomain.MessagePut,
			TargetID:   in.TargetID,
			IPAddress:  in.IPAddress,
			Query:      err.Error(),
		})
		return nil, err
	}

	allowed, err := v.has(in.Requester, st.Name, authDomain.PermissionEscrow)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return failed(escrowDomain.ErrAccessDenied)
	}
	if err := st.Validate(in); err != nil {
		return failed(err)
	}

	candidate := &escrowDomain.SecretRecord{
		ID:         uuid.Must(uuid.NewV7()),
		SecretType: st.Name,
		TargetID:   in.TargetID,
		Tag:        in.Tag,
		Owners:     in.Owners,
		Created:    in.Created,
		CreatedBy:  principal,
		Active:     true,
		Hostname:   in.Hostname,
		Metadata:   in.Metadata,
	}

	candidate.EncryptedSecret, err = v.envelope.Encrypt(ctx, in.Plaintext, st.KeyName)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encrypt secret")
	}

	for attempt := 0; attempt < v.config.MaxSupersedeAttempts; attempt++ {
		current, err := v.recordRepo.GetActive(ctx, st.Name, candidate.TargetID, candidate.Tag)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}

		if current == nil {
			err := v.recordRepo.Create(ctx, candidate)
			if errors.Is(err, escrowDomain.ErrSupersedeConflict) {
				continue
			}
			if err != nil {
				return nil, err
			}
			v.auditPut(ctx, candidate, in.IPAddress, auditDomain.MessagePut)
			return candidate, nil
		}

		if v.isDuplicate(ctx, st, current, candidate, in.Plaintext) {
			return nil, escrowDomain.ErrDuplicateSecret
		}

		// Client supplied times that tie with the active version lose. A server stamped
		// version in the same microsecond is the latest write and wins the tie.
		newer := candidate.Created.After(current.Created) ||
			(serverTime && candidate.Created.Equal(current.Created))
		if !newer {
			candidate.Active = false
			if err := v.recordRepo.Create(ctx, candidate); err != nil {
				return nil, err
			}
			v.logger.Warn("escrowed secret is older than the active version",
				slog.String("secret_type", st.Name),
				slog.String("target_id", candidate.TargetID),
				slog.String("record_id", candidate.ID.String()),
				slog.String("active_record_id", current.ID.String()),
				slog.Time("created", candidate.Created),
				slog.Time("active_created", current.Created),
			)
			v.auditPut(ctx, candidate, in.IPAddress, auditDomain.MessagePutOutOfOrder)
			return candidate, nil
		}

		err = v.txManager.WithTx(ctx, func(txCtx context.Context) error {
			if err := v.recordRepo.Deactivate(txCtx, current.ID); err != nil {
				return err
			}
			return v.recordRepo.Create(txCtx, candidate)
		})
		if errors.Is(err, escrowDomain.ErrSupersedeConflict) {
			v.logger.Info("active secret record changed concurrently, re-evaluating",
				slog.String("secret_type", st.Name),
				slog.String("target_id", candidate.TargetID),
				slog.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			return nil, err
		}
		v.auditPut(ctx, candidate, in.IPAddress, auditDomain.MessagePut)
		return candidate, nil
	}

	return nil, fmt.Errorf("%w after %d attempts", escrowDomain.ErrSupersedeConflict, v.config.MaxSupersedeAttempts)
}

func (v *versionController) auditPut(
	ctx context.Context,
	record *escrowDomain.SecretRecord,
	ipAddress, message string,
) {
	v.audit(ctx, &auditDomain.AuditLog{
		SecretType: record.SecretType,
		Principal:  record.CreatedBy,
		Message:    message,
		Successful: true,
		RecordID:   &record.ID,
		TargetID:   record.TargetID,
		IPAddress:  ipAddress,
	})
}

// normalizeEscrowInput returns a copy of input with tag, hostname, owners, metadata,
// target and creation time normalized for st.
func (v *versionController) normalizeEscrowInput(
	st *escrowDomain.SecretType,
	input *escrowDomain.EscrowInput,
) *escrowDomain.EscrowInput {
	in := *input
	in.Tag = escrowDomain.NormalizeTag(in.Tag)
	in.Hostname = st.NormalizeHostname(in.Hostname)
	in.Owners = escrowDomain.NormalizeOwners(in.Owners, v.config.DefaultEmailDomain)

	in.Metadata = make(map[string]string, len(input.Metadata))
	for key, value := range input.Metadata {
		in.Metadata[key] = strings.TrimSpace(value)
	}

	in.TargetID = strings.TrimSpace(in.TargetID)
	if st.ComputedTarget != nil {
		in.TargetID = st.ComputedTarget(in.Metadata)
	}

	if in.Created.IsZero() {
		in.Created = v.now()
	}
	in.Created = in.Created.UTC().Truncate(time.Microsecond)
	return &in
}

// isDuplicate reports whether candidate carries the same plaintext and content as the
// active record. A current value that cannot be decrypted never counts as a duplicate.
func (v *versionController) isDuplicate(
	ctx context.Context,
	st *escrowDomain.SecretType,
	current, candidate *escrowDomain.SecretRecord,
	plaintext []byte,
) bool {
	if !current.SameContent(candidate) {
		return false
	}
	existing, err := v.envelope.Decrypt(ctx, current.EncryptedSecret, st.KeyName)
	if err != nil {
		v.logger.Warn("failed to decrypt active secret for duplicate check",
			slog.String("secret_type", st.Name),
			slog.String("record_id", current.ID.String()),
			slog.Any("error", err),
		)
		return false
	}
	defer cryptoDomain.Zero(existing)
	return subtle.ConstantTimeCompare(existing, plaintext) == 1
}

// Retrieve implements VersionController.
func (v *versionController) Retrieve(
	ctx context.Context,
	input *escrowDomain.RetrieveInput,
) (*escrowDomain.RetrieveOutput, error) {
	st, err := escrowDomain.LookupSecretType(input.SecretType)
	if err != nil {
		return nil, err
	}
	principal := principalOf(input.Requester)
	tag := escrowDomain.NormalizeTag(input.Tag)

	failed := func(recordID *uuid.UUID, err error) (*escrowDomain.RetrieveOutput, error) {
		v.audit(ctx, &auditDomain.AuditLog{
			SecretType: st.Name,
			Principal:  principal,
			Message:    auditDomain.MessageGet,
			RecordID:   recordID,
			TargetID:   input.TargetID,
			IPAddress:  input.IPAddress,
			Query:      input.Query,
		})
		return nil, err
	}

	canRetrieve, err := v.has(input.Requester, st.Name, authDomain.PermissionRetrieve)
	if err != nil {
		return nil, err
	}

	record, err := v.lookup(ctx, st.Name, input.TargetID, tag, input.RecordID)
	if errors.Is(err, apperrors.ErrNotFound) {
		if !canRetrieve {
			return failed(input.RecordID, escrowDomain.ErrAccessDenied)
		}
		return failed(input.RecordID, escrowDomain.ErrSecretRecordNotFound)
	}
	if err != nil {
		return nil, err
	}

	authorized, err := v.authorizeRetrieve(input.Requester, st.Name, record, canRetrieve)
	if err != nil {
		return nil, err
	}
	if !authorized {
		return failed(&record.ID, escrowDomain.ErrAccessDenied)
	}

	plaintext, err := v.envelope.Decrypt(ctx, record.EncryptedSecret, st.KeyName)
	if err != nil {
		v.logger.Error("failed to decrypt secret",
			slog.String("secret_type", st.Name),
			slog.String("record_id", record.ID.String()),
			slog.Any("error", err),
		)
		return failed(&record.ID, apperrors.Wrap(err, "failed to decrypt secret"))
	}

	recipients, err := v.notificationRecipients(input.Requester, st.Name, record)
	if err != nil {
		cryptoDomain.Zero(plaintext)
		return nil, err
	}

	err = v.txManager.WithTx(ctx, func(txCtx context.Context) error {
		if record.Active {
			rekey := true
			err := v.recordRepo.UpdateMutable(txCtx, record.ID, escrowDomain.MutableFields{ForceRekeying: &rekey})
			switch {
			case err == nil:
				record.ForceRekeying = true
			case !errors.Is(err, escrowDomain.ErrRecordInactive):
				return err
			}
		}
		if len(recipients) == 0 {
			return nil
		}
		subject := st.NotificationSubject
		if subject == "" {
			subject = escrowDomain.DefaultNotificationSubject
		}
		event, err := outboxDomain.NewSecretRetrievedEvent(&outboxDomain.SecretRetrievedPayload{
			RecordID:    record.ID,
			SecretType:  st.Name,
			TargetID:    record.TargetID,
			Tag:         record.Tag,
			Hostname:    record.Hostname,
			Requester:   principal,
			Recipients:  recipients,
			Subject:     subject,
			RetrievedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return v.outboxRepo.Create(txCtx, event)
	})
	if err != nil {
		cryptoDomain.Zero(plaintext)
		return nil, err
	}

	v.audit(ctx, &auditDomain.AuditLog{
		SecretType: st.Name,
		Principal:  principal,
		Message:    auditDomain.MessageGet,
		Successful: true,
		RecordID:   &record.ID,
		TargetID:   record.TargetID,
		IPAddress:  input.IPAddress,
		Query:      input.Query,
	})

	return &escrowDomain.RetrieveOutput{
		Record:    record,
		Plaintext: plaintext,
		Checksum:  escrowDomain.Checksum(plaintext),
	}, nil
}

func (v *versionController) lookup(
	ctx context.Context,
	secretType, targetID, tag string,
	recordID *uuid.UUID,
) (*escrowDomain.SecretRecord, error) {
	if recordID == nil {
		return v.recordRepo.GetActive(ctx, secretType, targetID, tag)
	}
	record, err := v.recordRepo.Get(ctx, *recordID)
	if err != nil {
		return nil, err
	}
	if record.SecretType != secretType {
		return nil, escrowDomain.ErrSecretRecordNotFound
	}
	return record, nil
}

// authorizeRetrieve walks the retrieval tiers: RETRIEVE, then RETRIEVE_CREATED_BY for
// the creator, then RETRIEVE_OWN for an owner. The first satisfied tier wins.
func (v *versionController) authorizeRetrieve(
	requester *authDomain.Client,
	secretType string,
	record *escrowDomain.SecretRecord,
	canRetrieve bool,
) (bool, error) {
	if canRetrieve {
		return true, nil
	}
	principal := principalOf(requester)
	if principal == "" {
		return false, nil
	}

	if record.CreatedBy == principal {
		ok, err := v.has(requester, secretType, authDomain.PermissionRetrieveCreatedBy)
		if err != nil || ok {
			return ok, err
		}
	}
	if record.IsOwner(principal) {
		return v.has(requester, secretType, authDomain.PermissionRetrieveOwn)
	}
	return false, nil
}

// notificationRecipients decides who hears about a retrieval. Silent retrievers and
// owners retrieving their own secret notify nobody.
func (v *versionController) notificationRecipients(
	requester *authDomain.Client,
	secretType string,
	record *escrowDomain.SecretRecord,
) ([]string, error) {
	silent, err := v.has(requester, secretType, authDomain.PermissionSilentRetrieve)
	if err != nil {
		return nil, err
	}
	principal := principalOf(requester)
	if silent || record.IsOwner(principal) {
		return nil, nil
	}

	audited, err := v.has(requester, secretType, authDomain.PermissionSilentRetrieveAudited)
	if err != nil {
		return nil, err
	}

	recipients := []string{principal}
	if audited {
		recipients = append(recipients, v.config.SilentAuditAddresses...)
	} else {
		recipients = append(recipients, v.config.RetrieveAuditAddresses...)
		recipients = append(recipients, record.Owners...)
	}
	return compactRecipients(recipients), nil
}

func compactRecipients(recipients []string) []string {
	seen := make(map[string]struct{}, len(recipients))
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			seen[r] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Patch implements VersionController.
func (v *versionController) Patch(ctx context.Context, recordID uuid.UUID, fields escrowDomain.MutableFields) error {
	record, err := v.recordRepo.Get(ctx, recordID)
	if err != nil {
		return err
	}
	if !record.Active {
		return escrowDomain.ErrRecordInactive
	}
	if fields.IsEmpty() {
		return nil
	}

	st, err := escrowDomain.LookupSecretType(record.SecretType)
	if err != nil {
		return err
	}
	if fields.Owners != nil {
		fields.Owners = escrowDomain.NormalizeOwners(fields.Owners, v.config.DefaultEmailDomain)
		if st.OwnersRequired && len(fields.Owners) == 0 {
			return escrowDomain.ErrMissingOwners
		}
	}
	if fields.Hostname != nil {
		hostname := st.NormalizeHostname(*fields.Hostname)
		if st.HostnameRequired && hostname == "" {
			return escrowDomain.ErrMissingHostname
		}
		fields.Hostname = &hostname
	}

	return v.recordRepo.UpdateMutable(ctx, recordID, fields)
}

// ChangeOwners implements VersionController.
func (v *versionController) ChangeOwners(ctx context.Context, input *escrowDomain.ChangeOwnersInput) (bool, error) {
	st, err := escrowDomain.LookupSecretType(input.SecretType)
	if err != nil {
		return false, err
	}
	principal := principalOf(input.Requester)
	newOwners := escrowDomain.NormalizeOwners(input.NewOwners, v.config.DefaultEmailDomain)

	entry := func(successful bool, targetID string) *auditDomain.AuditLog {
		return &auditDomain.AuditLog{
			SecretType: st.Name,
			Principal:  principal,
			Message:    auditDomain.MessageChangeOwners,
			Successful: successful,
			RecordID:   &input.RecordID,
			TargetID:   targetID,
			IPAddress:  input.IPAddress,
			Query:      strings.Join(newOwners, ","),
		}
	}

	allowed, err := v.has(input.Requester, st.Name, authDomain.PermissionChangeOwner)
	if err != nil {
		return false, err
	}
	if !allowed {
		v.audit(ctx, entry(false, ""))
		return false, escrowDomain.ErrAccessDenied
	}

	record, err := v.lookup(ctx, st.Name, "", "", &input.RecordID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			v.audit(ctx, entry(false, ""))
		}
		return false, err
	}
	if !record.Active {
		v.audit(ctx, entry(false, record.TargetID))
		return false, escrowDomain.ErrRecordInactive
	}
	if len(newOwners) == 0 {
		v.audit(ctx, entry(false, record.TargetID))
		return false, escrowDomain.ErrMissingOwners
	}
	if err := escrowDomain.ValidateOwners(newOwners); err != nil {
		v.audit(ctx, entry(false, record.TargetID))
		return false, err
	}
	if slices.Equal(record.Owners, newOwners) {
		return false, nil
	}

	rekey := true
	err = v.recordRepo.UpdateMutable(ctx, record.ID, escrowDomain.MutableFields{
		Owners:        newOwners,
		ForceRekeying: &rekey,
	})
	if err != nil {
		return false, err
	}

	v.audit(ctx, entry(true, record.TargetID))
	return true, nil
}

// RekeyStatus implements VersionController.
func (v *versionController) RekeyStatus(ctx context.Context, input *escrowDomain.RekeyStatusInput) (bool, error) {
	st, err := escrowDomain.LookupSecretType(input.SecretType)
	if err != nil {
		return false, err
	}

	record, err := v.recordRepo.GetActive(ctx, st.Name, input.TargetID, escrowDomain.NormalizeTag(input.Tag))
	if errors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if !record.IsOwner(principalOf(input.Requester)) {
		return false, nil
	}
	return record.ForceRekeying, nil
}

// Search implements VersionController.
func (v *versionController) Search(
	ctx context.Context,
	input *escrowDomain.SearchInput,
) ([]*escrowDomain.SecretRecord, error) {
	st, err := escrowDomain.LookupSecretType(input.SecretType)
	if err != nil {
		return nil, err
	}
	if !st.IsSearchField(input.Field) {
		return nil, fmt.Errorf("%w: %q", escrowDomain.ErrInvalidSearchField, input.Field)
	}
	principal := principalOf(input.Requester)
	query := input.Field + "=" + input.Value

	entry := func(successful bool) *auditDomain.AuditLog {
		return &auditDomain.AuditLog{
			SecretType: st.Name,
			Principal:  principal,
			Message:    auditDomain.MessageSearch,
			Successful: successful,
			IPAddress:  input.IPAddress,
			Query:      query,
		}
	}

	canSearch, err := v.has(input.Requester, st.Name, authDomain.PermissionSearch)
	if err != nil {
		return nil, err
	}
	var ownOnly, createdOnly bool
	if !canSearch {
		if ownOnly, err = v.has(input.Requester, st.Name, authDomain.PermissionRetrieveOwn); err != nil {
			return nil, err
		}
		if createdOnly, err = v.has(input.Requester, st.Name, authDomain.PermissionRetrieveCreatedBy); err != nil {
			return nil, err
		}
		if (!ownOnly && !createdOnly) || principal == "" {
			v.audit(ctx, entry(false))
			return nil, escrowDomain.ErrAccessDenied
		}
	}

	value := strings.TrimSpace(input.Value)
	if !input.Prefix {
		switch input.Field {
		case escrowDomain.SearchFieldOwner:
			if owners := escrowDomain.NormalizeOwners([]string{value}, v.config.DefaultEmailDomain); len(owners) == 1 {
				value = owners[0]
			}
		case escrowDomain.SearchFieldHostname:
			value = st.NormalizeHostname(value)
		}
	}

	records, err := v.recordRepo.Search(ctx, escrowDomain.SearchCriteria{
		SecretType: st.Name,
		Field:      input.Field,
		Value:      value,
		Prefix:     input.Prefix,
		Tag:        strings.TrimSpace(input.Tag),
		Limit:      escrowDomain.MaxSearchResults,
	})
	if err != nil {
		return nil, err
	}

	if !canSearch {
		visible := records[:0]
		for _, record := range records {
			if (ownOnly && record.IsOwner(principal)) || (createdOnly && record.CreatedBy == principal) {
				visible = append(visible, record)
			}
		}
		records = visible
	}

	v.audit(ctx, entry(true))
	return records, nil
}
