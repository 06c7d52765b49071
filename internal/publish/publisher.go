// Package publish forwards accepted records to the downstream message bus.
package publish

import (
	"context"

	"github.com/VincentDePincent/EnderV3KE-integration/internal/domain"
)

// Publisher accepts one canonical record per call. Implementations must not
// block indefinitely; the session manager does not retry failures, since
// the next telemetry tick supersedes the record.
type Publisher interface {
	Publish(ctx context.Context, rec domain.Record) error
	Close()
}

// Nop discards records. Used when MQTT is disabled and in tests.
type Nop struct{}

func (Nop) Publish(context.Context, domain.Record) error { return nil }
func (Nop) Close()                                       {}
