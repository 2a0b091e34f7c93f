// Package domain defines the notification outbox: events written in the same transaction
// as a retrieval and delivered afterwards by the worker.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type OutboxEventStatus string

const (
	OutboxEventStatusPending   OutboxEventStatus = "pending"
	OutboxEventStatusProcessed OutboxEventStatus = "processed"
	OutboxEventStatusFailed    OutboxEventStatus = "failed"
)

// OutboxEvent is one pending or finished delivery. A pending event is picked up once
// NextAttemptAt has passed.
type OutboxEvent struct {
	ID            uuid.UUID
	EventType     string
	Payload       string
	Status        OutboxEventStatus
	Retries       int
	LastError     *string
	NextAttemptAt time.Time
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RetryPolicy spaces out redelivery of a failing event. The delay doubles after every
// failure, starting at BaseDelay and never exceeding MaxDelay. After MaxRetries failures
// the event is given up on.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Delay returns the wait before attempt number retries+1.
func (p RetryPolicy) Delay(retries int) time.Duration {
	if retries <= 0 || p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < retries && (p.MaxDelay <= 0 || delay < p.MaxDelay); i++ {
		delay *= 2
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Due reports whether a pending event may be attempted at now.
func (e *OutboxEvent) Due(now time.Time) bool {
	return e.Status == OutboxEventStatusPending && !e.NextAttemptAt.After(now)
}

func (e *OutboxEvent) MarkProcessed(now time.Time) {
	e.Status = OutboxEventStatusProcessed
	e.ProcessedAt = &now
	e.UpdatedAt = now
}

// MarkFailed counts a failed attempt and schedules the next one, or marks the event
// failed once the policy is exhausted.
func (e *OutboxEvent) MarkFailed(err error, policy RetryPolicy, now time.Time) {
	e.Retries++
	msg := err.Error()
	e.LastError = &msg
	e.UpdatedAt = now
	if e.Retries >= policy.MaxRetries {
		e.Status = OutboxEventStatusFailed
		return
	}
	e.NextAttemptAt = now.Add(policy.Delay(e.Retries))
}
