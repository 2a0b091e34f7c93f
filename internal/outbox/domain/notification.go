package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventTypeSecretRetrieved is enqueued when a secret is retrieved and someone must be told.
const EventTypeSecretRetrieved = "secret.retrieved"

// SecretRetrievedPayload is the body of a secret.retrieved event.
type SecretRetrievedPayload struct {
	RecordID    uuid.UUID `json:"record_id"`
	SecretType  string    `json:"secret_type"`
	TargetID    string    `json:"target_id"`
	Tag         string    `json:"tag"`
	Hostname    string    `json:"hostname"`
	Requester   string    `json:"requester"`
	Recipients  []string  `json:"recipients"`
	Subject     string    `json:"subject"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// NewSecretRetrievedEvent builds a pending outbox event carrying payload.
func NewSecretRetrievedEvent(payload *SecretRetrievedPayload) (*OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", EventTypeSecretRetrieved, err)
	}
	now := time.Now().UTC()
	return &OutboxEvent{
		ID:            uuid.Must(uuid.NewV7()),
		EventType:     EventTypeSecretRetrieved,
		Payload:       string(data),
		Status:        OutboxEventStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// DecodeSecretRetrieved parses the payload of a secret.retrieved event.
func DecodeSecretRetrieved(event *OutboxEvent) (*SecretRetrievedPayload, error) {
	var payload SecretRetrievedPayload
	if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", EventTypeSecretRetrieved, err)
	}
	return &payload, nil
}
