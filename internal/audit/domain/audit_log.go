// Package domain defines the append-only audit log of escrow operations.
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Messages recorded by the escrow operations.
const (
	MessagePut           = "PUT"
	MessagePutOutOfOrder = "PUT_OUT_OF_ORDER"
	MessageGet           = "GET"
	MessageChangeOwners  = "CHANGE_OWNERS"
	MessageSearch        = "SEARCH"
	MessageLogs          = "LOGS"
)

// DefaultPageSize is the number of entries returned per page when no limit is given.
const DefaultPageSize = 25

// MaxPageSize caps the page size accepted from callers.
const MaxPageSize = 100

const paginationTimeLayout = "2006-01-02T15:04:05.000000"

// AuditLog is one immutable entry. Sequence is assigned by the store on insert and
// breaks ties between entries written in the same microsecond.
type AuditLog struct {
	ID         uuid.UUID
	Sequence   int64
	CreatedAt  time.Time
	SecretType string
	Principal  string
	Message    string
	Successful bool
	RecordID   *uuid.UUID
	TargetID   string
	IPAddress  string
	Query      string
	KeyVersion uint32
	Signature  []byte
}

// PaginationKey orders entries: a fixed width UTC timestamp followed by the zero
// padded sequence, so lexical order matches insertion order.
func (a *AuditLog) PaginationKey() string {
	return Cursor{CreatedAt: a.CreatedAt, Sequence: a.Sequence}.String()
}

// Cursor is a decoded pagination key.
type Cursor struct {
	CreatedAt time.Time
	Sequence  int64
}

// String encodes the cursor as a pagination key.
func (c Cursor) String() string {
	return fmt.Sprintf("%s_%020d", c.CreatedAt.UTC().Format(paginationTimeLayout), c.Sequence)
}

// ParseCursor decodes a pagination key produced by AuditLog.PaginationKey.
func ParseCursor(key string) (*Cursor, error) {
	ts, seq, ok := strings.Cut(key, "_")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCursor, key)
	}
	createdAt, err := time.ParseInLocation(paginationTimeLayout, ts, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	sequence, err := strconv.ParseInt(seq, 10, 64)
	if err != nil || sequence < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCursor, key)
	}
	return &Cursor{CreatedAt: createdAt, Sequence: sequence}, nil
}

// ListCriteria filters a page of entries for one secret type.
type ListCriteria struct {
	SecretType string
	OnlyErrors bool
	Before     *Cursor
	Limit      int
}

// VerificationReport summarizes a batch signature check.
type VerificationReport struct {
	TotalChecked int64
	ValidCount   int64
	InvalidCount int64
	InvalidLogs  []uuid.UUID
}
