package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/escrow/internal/auth/domain"
	"github.com/allisson/escrow/internal/metrics"
)

const metricsDomain = "auth"

// recorder starts a timer for one auth operation. The returned func records the
// outcome and must be called exactly once.
type recorder struct {
	metrics metrics.BusinessMetrics
}

func (r recorder) start(ctx context.Context, operation string) func(error) {
	begin := time.Now()
	return func(err error) {
		status := metrics.StatusFromError(err)
		r.metrics.RecordOperation(ctx, metricsDomain, operation, status)
		r.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(begin), status)
	}
}

type clientUseCaseWithMetrics struct {
	recorder
	next ClientUseCase
}

// NewClientUseCaseWithMetrics records count and latency of every ClientUseCase call
// under the "auth" domain, labelled client_<operation>.
func NewClientUseCaseWithMetrics(useCase ClientUseCase, m metrics.BusinessMetrics) ClientUseCase {
	return &clientUseCaseWithMetrics{recorder: recorder{metrics: m}, next: useCase}
}

func (c *clientUseCaseWithMetrics) Create(
	ctx context.Context,
	createClientInput *authDomain.CreateClientInput,
) (*authDomain.CreateClientOutput, error) {
	done := c.start(ctx, "client_create")
	output, err := c.next.Create(ctx, createClientInput)
	done(err)
	return output, err
}

func (c *clientUseCaseWithMetrics) Update(
	ctx context.Context,
	clientID uuid.UUID,
	updateClientInput *authDomain.UpdateClientInput,
) error {
	done := c.start(ctx, "client_update")
	err := c.next.Update(ctx, clientID, updateClientInput)
	done(err)
	return err
}

func (c *clientUseCaseWithMetrics) Get(ctx context.Context, clientID uuid.UUID) (*authDomain.Client, error) {
	done := c.start(ctx, "client_get")
	client, err := c.next.Get(ctx, clientID)
	done(err)
	return client, err
}

func (c *clientUseCaseWithMetrics) List(ctx context.Context, offset, limit int) ([]*authDomain.Client, error) {
	done := c.start(ctx, "client_list")
	clients, err := c.next.List(ctx, offset, limit)
	done(err)
	return clients, err
}

func (c *clientUseCaseWithMetrics) Delete(ctx context.Context, clientID uuid.UUID) error {
	done := c.start(ctx, "client_delete")
	err := c.next.Delete(ctx, clientID)
	done(err)
	return err
}

func (c *clientUseCaseWithMetrics) Unlock(ctx context.Context, clientID uuid.UUID) error {
	done := c.start(ctx, "client_unlock")
	err := c.next.Unlock(ctx, clientID)
	done(err)
	return err
}

type tokenUseCaseWithMetrics struct {
	recorder
	next TokenUseCase
}

// NewTokenUseCaseWithMetrics records count and latency of every TokenUseCase call
// under the "auth" domain, labelled token_<operation>. Failed issues show up as
// "denied" so brute force attempts are visible on dashboards.
func NewTokenUseCaseWithMetrics(useCase TokenUseCase, m metrics.BusinessMetrics) TokenUseCase {
	return &tokenUseCaseWithMetrics{recorder: recorder{metrics: m}, next: useCase}
}

func (t *tokenUseCaseWithMetrics) Issue(
	ctx context.Context,
	issueTokenInput *authDomain.IssueTokenInput,
) (*authDomain.IssueTokenOutput, error) {
	done := t.start(ctx, "token_issue")
	output, err := t.next.Issue(ctx, issueTokenInput)
	done(err)
	return output, err
}

func (t *tokenUseCaseWithMetrics) Authenticate(ctx context.Context, tokenHash string) (*authDomain.Client, error) {
	done := t.start(ctx, "token_authenticate")
	client, err := t.next.Authenticate(ctx, tokenHash)
	done(err)
	return client, err
}

func (t *tokenUseCaseWithMetrics) CleanupExpired(ctx context.Context, days int, dryRun bool) (int64, error) {
	done := t.start(ctx, "token_cleanup")
	count, err := t.next.CleanupExpired(ctx, days, dryRun)
	done(err)
	return count, err
}
