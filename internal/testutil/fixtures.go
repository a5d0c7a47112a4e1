// Package testutil provides shared testing utilities and helpers.
package testutil

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/ecowatch/ecowatch/internal/api"
	"github.com/ecowatch/ecowatch/internal/constants"
)

// MessageBuilder provides a fluent interface for building test chat messages.
type MessageBuilder struct {
	message api.ChatMessage
}

// NewMessageBuilder creates a new MessageBuilder with sensible defaults.
func NewMessageBuilder(id string) *MessageBuilder {
	return &MessageBuilder{
		message: api.ChatMessage{
			ID:          id,
			ViolationID: "violation-test-123",
			UserID:      "user-test-123",
			UserName:    "Test User",
			Text:        "test message " + id,
			CreatedAt:   time.Now().UTC(),
		},
	}
}

// WithViolationID sets the violation the message belongs to.
func (b *MessageBuilder) WithViolationID(id string) *MessageBuilder {
	b.message.ViolationID = id
	return b
}

// WithText sets the message text.
func (b *MessageBuilder) WithText(text string) *MessageBuilder {
	b.message.Text = text
	return b
}

// WithCreatedAt sets the message creation time.
func (b *MessageBuilder) WithCreatedAt(t time.Time) *MessageBuilder {
	b.message.CreatedAt = t
	return b
}

// System marks the message as system-generated.
func (b *MessageBuilder) System() *MessageBuilder {
	b.message.IsSystem = true
	return b
}

// Build returns the constructed ChatMessage.
func (b *MessageBuilder) Build() api.ChatMessage {
	return b.message
}

// ViolationBuilder provides a fluent interface for building test violations.
type ViolationBuilder struct {
	violation api.Violation
}

// NewViolationBuilder creates a new ViolationBuilder with sensible defaults.
func NewViolationBuilder() *ViolationBuilder {
	return &ViolationBuilder{
		violation: api.Violation{
			ID:        "violation-test-123",
			Type:      api.ViolationGarbage,
			Lat:       50.45,
			Lng:       30.52,
			Status:    "active",
			CreatedAt: time.Now().UTC(),
		},
	}
}

// WithID sets the violation ID.
func (b *ViolationBuilder) WithID(id string) *ViolationBuilder {
	b.violation.ID = id
	return b
}

// WithType sets the violation type.
func (b *ViolationBuilder) WithType(t api.ViolationType) *ViolationBuilder {
	b.violation.Type = t
	return b
}

// WithLocation sets the violation coordinates.
func (b *ViolationBuilder) WithLocation(lat, lng float64) *ViolationBuilder {
	b.violation.Lat = lat
	b.violation.Lng = lng
	return b
}

// Build returns the constructed Violation.
func (b *ViolationBuilder) Build() api.Violation {
	return b.violation
}

// TestContext creates a test context with a reasonable timeout.
// Note: The cancel function is intentionally not returned since test contexts
// are expected to be short-lived and will be cleaned up when the test completes.
func TestContext() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), constants.TestContextTimeout)
	_ = cancel // Silence unused warning - context will timeout automatically
	return ctx
}

// TestLogger creates a logger suitable for testing (outputs to stderr).
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	}))
}

// SilentLogger creates a logger that discards all output.
func SilentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.NewFile(0, os.DevNull), &slog.HandlerOptions{
		Level: slog.LevelError + 1, // Suppress all logs
	}))
}
