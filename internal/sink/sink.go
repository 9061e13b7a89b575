// internal/sink/sink.go

// Package sink talks to the persistence service that stores delivered
// records. Two adapters exist: the HTTP records API and a database/sql
// table owned by that service.
package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valpere/listingharvest/internal/config"
	"github.com/valpere/listingharvest/pkg/types"
)

// ErrUnsupportedType is returned for an unknown sink type.
var ErrUnsupportedType = errors.New("unsupported sink type")

// Sink is the contract the pipeline needs from the persistence service.
type Sink interface {
	// ListKeys returns the identity addresses of one page of stored records.
	// An empty page ends a scan.
	ListKeys(ctx context.Context, offset, limit int) ([]string, error)

	// Submit stores a record. A duplicate identity is reported as
	// OutcomeDuplicate with a nil error; OutcomeError always carries an error.
	Submit(ctx context.Context, record types.CleanRecord) (types.DeliveryOutcome, error)

	Close() error
}

// New builds the sink selected by cfg.Type.
func New(ctx context.Context, cfg config.SinkConfig) (Sink, error) {
	switch cfg.Type {
	case "", "http":
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		return NewHTTPSink(cfg.BaseURL, cfg.RecordsPath, timeout)
	case "sql":
		return OpenSQLSink(ctx, cfg.SQL)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, cfg.Type)
	}
}
