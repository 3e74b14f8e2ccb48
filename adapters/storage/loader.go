package storage

import (
	"context"

	"go.uber.org/zap"

	"carrier-tariff/core/carrier"
	"carrier-tariff/internal/logging"
)

// ArchivingLoader keeps a snapshot of every sheet its source produces.
// A failed archive is logged; the freshly loaded sheet is still returned.
type ArchivingLoader struct {
	Source  carrier.Loader
	Store   *Store
	Carrier string
}

// Load implements carrier.Loader
func (l ArchivingLoader) Load(ctx context.Context) (*carrier.Sheet, error) {
	sheet, err := l.Source.Load(ctx)
	if err != nil {
		return nil, err
	}

	archived := *sheet
	archived.Carrier = l.Carrier
	if _, err := l.Store.Store(ctx, &archived); err != nil {
		logging.ForCarrier(l.Carrier).Warn("failed to archive tariff snapshot", zap.Error(err))
	}
	return sheet, nil
}

// SnapshotLoader serves the latest stored snapshot of a carrier
type SnapshotLoader struct {
	Store   *Store
	Carrier string
}

// Load implements carrier.Loader
func (l SnapshotLoader) Load(ctx context.Context) (*carrier.Sheet, error) {
	return l.Store.Latest(ctx, l.Carrier)
}
