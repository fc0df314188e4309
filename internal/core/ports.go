package core

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ErrRecordNotFound is returned by stores when no record has the given id.
var ErrRecordNotFound = errors.New("record not found")

// Storage persists finished records. A failed Put must leave nothing behind.
type Storage interface {
	Put(ctx context.Context, collection string, record PersistedRecord) error
}

// User is the acting principal recorded as createdBy.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Identity resolves the current user. nil means anonymous.
type Identity interface {
	CurrentUser(ctx context.Context) *User
}

// ContextIdentity reads the user placed on the context by ContextWithUser.
type ContextIdentity struct{}

func (ContextIdentity) CurrentUser(ctx context.Context) *User {
	return UserFromContext(ctx)
}

// Clock supplies timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// NowISO formats the clock's current time as RFC 3339.
func NowISO(c Clock) string {
	return c.Now().UTC().Format(time.RFC3339)
}

// IDGenerator produces record identifiers.
type IDGenerator interface {
	UID(prefix string) string
}

// UUIDGenerator prefixes random UUIDs: "bore_0190...".
type UUIDGenerator struct{}

func (UUIDGenerator) UID(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "_" + uuid.NewString()
}

// NoticeKind classifies a user notification.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeWarning NoticeKind = "warning"
	NoticeError   NoticeKind = "error"
)

// Notifier delivers fire-and-forget user notifications.
type Notifier interface {
	Notify(ctx context.Context, message string, kind NoticeKind)
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, message string, kind NoticeKind) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	switch kind {
	case NoticeWarning:
		level = slog.LevelWarn
	case NoticeError:
		level = slog.LevelError
	}
	logger.Log(ctx, level, "notify", "kind", string(kind), "message", message)
}

// SchemaResult is the outcome of validating a record against the stored schema.
type SchemaResult struct {
	Valid  bool
	Errors []string
}

// SchemaValidator checks a record before it is written.
type SchemaValidator interface {
	ValidateRecord(record PersistedRecord) SchemaResult
}
