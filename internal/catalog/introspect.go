package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/kongusen/AutoReportAI-sub000/internal/adapter"
)

// Introspector discovers table metadata from a live source. Transient
// describe failures are retried with exponential backoff; once attempts are
// exhausted the table is kept with no columns rather than failing the
// whole discovery.
type Introspector struct {
	logger *slog.Logger

	// MaxAttempts bounds describe retries per table (default 3).
	MaxAttempts uint64

	// BaseBackoff is the initial retry delay (default 100ms).
	BaseBackoff time.Duration
}

// NewIntrospector creates an introspector.
// If logger is nil, a discard logger is used.
func NewIntrospector(logger *slog.Logger) *Introspector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Introspector{
		logger:      logger,
		MaxAttempts: 3,
		BaseBackoff: 100 * time.Millisecond,
	}
}

// Discover lists the source's tables and, unless namesOnly is set, describes
// each one. The names-only mode exists to bound the cost of exploratory
// calls that only need table presence.
func (in *Introspector) Discover(ctx context.Context, ad adapter.Adapter, sourceID string, namesOnly bool) ([]*TableSchema, error) {
	names, err := ad.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables for source %q: %w", sourceID, err)
	}

	now := time.Now()
	tables := make([]*TableSchema, 0, len(names))
	for _, name := range names {
		t := &TableSchema{
			SourceID:     sourceID,
			Name:         name,
			LastAnalyzed: now,
		}
		if !namesOnly {
			meta, err := in.describeWithRetry(ctx, ad, name)
			if err != nil {
				// Degrade to a columnless entry; scoring falls back to
				// name-based heuristics for this table.
				in.logger.Warn("describe failed, keeping table without columns",
					slog.String("source", sourceID), slog.String("table", name),
					slog.String("error", err.Error()))
			} else {
				t.Columns = meta.Columns
				t.RowCount = meta.RowCount
			}
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func (in *Introspector) describeWithRetry(ctx context.Context, ad adapter.Adapter, table string) (*adapter.TableMetadata, error) {
	backoff := retry.WithMaxRetries(in.MaxAttempts, retry.NewExponential(in.BaseBackoff))

	var meta *adapter.TableMetadata
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		m, err := ad.DescribeTable(ctx, table)
		if err != nil {
			return retry.RetryableError(err)
		}
		meta = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}
