// Package carrier keeps the live tariff of each carrier and replaces it
// atomically when a new one has been loaded and validated.
package carrier

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"carrier-tariff/core/tariff"
	"carrier-tariff/core/zones"
	"carrier-tariff/internal/errors"
	"carrier-tariff/internal/logging"
)

// Sheet is one carrier's validated tariff together with its zone directory.
// Sheets are immutable and are swapped as a unit.
type Sheet struct {
	Carrier  string
	Table    *tariff.Table
	Zones    *zones.Directory
	Source   string
	LoadedAt time.Time
}

// NewSheet checks that every mapped zone has rates in table
func NewSheet(carrier string, table *tariff.Table, dir *zones.Directory, source string) (*Sheet, error) {
	if table == nil {
		return nil, errors.Internal("sheet for "+carrier+" has no table", nil)
	}
	if dir == nil {
		var err error
		if dir, err = zones.New(nil, ""); err != nil {
			return nil, err
		}
	}
	if err := dir.CheckAgainst(table); err != nil {
		return nil, err
	}
	return &Sheet{
		Carrier:  carrier,
		Table:    table,
		Zones:    dir,
		Source:   source,
		LoadedAt: time.Now().UTC(),
	}, nil
}

func (s *Sheet) withCarrier(name string) *Sheet {
	if s.Carrier == name {
		return s
	}
	cp := *s
	cp.Carrier = name
	return &cp
}

// Loader produces a fresh sheet, typically by reading a file or snapshot.
// Loaders may block on I/O and must honour ctx.
type Loader interface {
	Load(ctx context.Context) (*Sheet, error)
}

// LoaderFunc adapts a function to Loader
type LoaderFunc func(ctx context.Context) (*Sheet, error)

// Load calls f
func (f LoaderFunc) Load(ctx context.Context) (*Sheet, error) {
	return f(ctx)
}

type slot struct {
	loader  Loader
	current atomic.Pointer[Sheet]

	// serializes reloads; readers never take it
	reload sync.Mutex
}

// Registry holds the live sheet per carrier
type Registry struct {
	mu    sync.RWMutex
	slots map[string]*slot
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{slots: make(map[string]*slot)}
}

// Register adds a carrier with the loader used by Reload
func (r *Registry) Register(name string, loader Loader) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.slots[name]; exists {
		return errors.Newf(errors.TypeConfig, "carrier %q registered twice", name)
	}
	r.slots[name] = &slot{loader: loader}
	return nil
}

// Reload loads and validates a new sheet, then swaps it in. On failure the
// previous sheet stays live and the error is returned.
func (r *Registry) Reload(ctx context.Context, name string) (*Sheet, error) {
	s, err := r.slot(name)
	if err != nil {
		return nil, err
	}
	if s.loader == nil {
		return nil, errors.Newf(errors.TypeConfig, "carrier %q has no loader", name)
	}

	s.reload.Lock()
	defer s.reload.Unlock()

	log := logging.ForCarrier(name)
	sheet, err := s.loader.Load(ctx)
	if err != nil {
		log.Error("tariff reload failed, keeping previous table", zap.Error(err))
		return nil, err
	}
	if sheet == nil || sheet.Table == nil || sheet.Zones == nil {
		err := errors.Newf(errors.TypeInternal, "loader for carrier %q returned no tariff", name)
		log.Error("tariff reload failed, keeping previous table", zap.Error(err))
		return nil, err
	}
	sheet = sheet.withCarrier(name)

	old := s.current.Swap(sheet)
	fields := []zap.Field{
		zap.String("source", sheet.Source),
		zap.String("fingerprint", sheet.Table.Fingerprint().Short()),
	}
	if old != nil {
		fields = append(fields, zap.String("previous", old.Table.Fingerprint().Short()))
	}
	log.Info("tariff loaded", fields...)
	return sheet, nil
}

// ReloadAll reloads every carrier and joins the failures
func (r *Registry) ReloadAll(ctx context.Context) error {
	var errs []error
	for _, name := range r.Names() {
		if _, err := r.Reload(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Install swaps in a sheet that was built elsewhere, registering the
// carrier if needed.
func (r *Registry) Install(name string, sheet *Sheet) {
	r.mu.Lock()
	s, ok := r.slots[name]
	if !ok {
		s = &slot{}
		r.slots[name] = s
	}
	r.mu.Unlock()

	s.current.Store(sheet.withCarrier(name))
}

// Get returns the live sheet of a carrier
func (r *Registry) Get(name string) (*Sheet, error) {
	s, err := r.slot(name)
	if err != nil {
		return nil, err
	}
	sheet := s.current.Load()
	if sheet == nil {
		return nil, errors.Newf(errors.TypeNotFound, "carrier %q has no tariff loaded", name)
	}
	return sheet, nil
}

// Names returns the registered carriers in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.slots))
	for name := range r.slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) slot(name string) (*slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.slots[name]
	if !ok {
		return nil, errors.NotFound("carrier", name)
	}
	return s, nil
}
