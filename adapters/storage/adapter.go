// Package storage keeps write-once snapshots of carrier tariffs.
// Snapshots are content-hashed JSON files; an existing file is never
// rewritten and every read verifies the hash and re-validates the table.
package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carrier-tariff/core/carrier"
	"carrier-tariff/core/determinism"
	"carrier-tariff/core/tariff"
	"carrier-tariff/core/zones"
	"carrier-tariff/internal/errors"
	"carrier-tariff/internal/logging"
)

// ErrImmutabilityViolation is returned when a snapshot file would be overwritten
var ErrImmutabilityViolation = stderrors.New("immutability violation: snapshot cannot be modified")

// ErrHashMismatch is returned when stored content no longer matches its hash
var ErrHashMismatch = stderrors.New("snapshot hash mismatch: data may be corrupted")

// ErrNoSnapshot is returned when nothing is stored under an id or carrier
var ErrNoSnapshot = stderrors.New("no snapshot")

const indexFile = "index.json"

// Metadata describes a stored snapshot
type Metadata struct {
	ID          string    `json:"id"`
	Carrier     string    `json:"carrier"`
	Tariff      string    `json:"tariff"`
	ContentHash string    `json:"content_hash"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	FilePath    string    `json:"file_path"`
}

// snapshot is the on-disk body. It carries no timestamps so that equal
// tariffs hash equally.
type snapshot struct {
	Carrier     string            `json:"carrier"`
	Definition  tariff.Definition `json:"definition"`
	Zones       []zones.Zone      `json:"zones,omitempty"`
	DefaultZone tariff.ZoneCode   `json:"default_zone,omitempty"`
}

type index struct {
	Snapshots map[string]*Metadata `json:"snapshots"`
	Latest    map[string]string    `json:"latest"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Store is a directory of immutable tariff snapshots
type Store struct {
	mu       sync.RWMutex
	basePath string

	index  map[string]*Metadata
	latest map[string]string // carrier -> snapshot id
}

// NewStore opens or creates a snapshot directory
func NewStore(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, errors.Wrap(errors.TypeConfig, "failed to create snapshot directory", err)
	}

	s := &Store{
		basePath: basePath,
		index:    make(map[string]*Metadata),
		latest:   make(map[string]string),
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

// Store writes a snapshot of sheet. Storing content that is already indexed
// for the carrier returns the existing metadata and marks it latest.
func (s *Store) Store(ctx context.Context, sheet *carrier.Sheet) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkCarrierName(sheet.Carrier); err != nil {
		return nil, err
	}

	snap := snapshot{
		Carrier:     sheet.Carrier,
		Definition:  sheet.Table.Definition(),
		Zones:       sheet.Zones.Zones(),
		DefaultZone: sheet.Zones.Default(),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, errors.Internal("failed to serialize snapshot", err)
	}
	hash := determinism.ComputeHash(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, meta := range s.index {
		if meta.Carrier == sheet.Carrier && meta.ContentHash == hash.Hex() {
			s.latest[sheet.Carrier] = meta.ID
			if err := s.saveIndex(); err != nil {
				return nil, err
			}
			cp := *meta
			return &cp, nil
		}
	}

	filePath := filepath.Join(s.basePath, fmt.Sprintf("%s_%s.json", sheet.Carrier, hash.Short()))
	if _, err := os.Stat(filePath); err == nil {
		return nil, errors.Wrapf(errors.TypeInternal, ErrImmutabilityViolation, "%s exists outside the index", filepath.Base(filePath))
	}
	if err := os.WriteFile(filePath, data, 0o444); err != nil {
		return nil, errors.Wrap(errors.TypeInternal, "failed to write snapshot", err)
	}

	meta := &Metadata{
		ID:          uuid.NewString(),
		Carrier:     sheet.Carrier,
		Tariff:      sheet.Table.Name(),
		ContentHash: hash.Hex(),
		Size:        int64(len(data)),
		CreatedAt:   time.Now().UTC(),
		FilePath:    filePath,
	}
	s.index[meta.ID] = meta
	s.latest[sheet.Carrier] = meta.ID

	if err := s.saveIndex(); err != nil {
		return nil, err
	}

	logging.ForCarrier(sheet.Carrier).Info("tariff snapshot stored",
		zap.String("snapshot_id", meta.ID),
		zap.String("fingerprint", sheet.Table.Fingerprint().Short()),
		zap.String("file", filePath))

	cp := *meta
	return &cp, nil
}

// Get reads a snapshot, verifies its hash and rebuilds the sheet
func (s *Store) Get(ctx context.Context, id string) (*carrier.Sheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	meta, ok := s.index[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(errors.TypeNotFound, ErrNoSnapshot, "snapshot %s not found", id)
	}

	data, err := s.read(meta)
	if err != nil {
		return nil, err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Parsing("snapshot "+id+" is not valid JSON", err)
	}
	table, err := tariff.New(snap.Definition)
	if err != nil {
		return nil, errors.Wrapf(errors.TypeOf(err), err, "snapshot %s", id)
	}
	dir, err := zones.New(snap.Zones, snap.DefaultZone)
	if err != nil {
		return nil, errors.Wrapf(errors.TypeOf(err), err, "snapshot %s", id)
	}
	return carrier.NewSheet(snap.Carrier, table, dir, "snapshot:"+id)
}

// Latest returns the most recently stored snapshot of a carrier
func (s *Store) Latest(ctx context.Context, carrierName string) (*carrier.Sheet, error) {
	s.mu.RLock()
	id, ok := s.latest[carrierName]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(errors.TypeNotFound, ErrNoSnapshot, "no snapshot for carrier %s", carrierName)
	}
	return s.Get(ctx, id)
}

// List returns the snapshots of a carrier, oldest first. An empty carrier
// lists every snapshot.
func (s *Store) List(carrierName string) []*Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Metadata
	for _, meta := range s.index {
		if carrierName == "" || meta.Carrier == carrierName {
			cp := *meta
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// VerifyIntegrity checks every stored snapshot and returns one line per
// problem, sorted by snapshot id
func (s *Store) VerifyIntegrity(ctx context.Context) []string {
	s.mu.RLock()
	ids := determinism.SortedKeys(s.index)
	s.mu.RUnlock()

	var problems []string
	for _, id := range ids {
		if _, err := s.Get(ctx, id); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", id, err))
		}
	}
	return problems
}

func (s *Store) read(meta *Metadata) ([]byte, error) {
	data, err := os.ReadFile(meta.FilePath)
	if err != nil {
		return nil, errors.Wrapf(errors.TypeNotFound, err, "snapshot %s file missing", meta.ID)
	}
	want, err := determinism.ParseContentHash(meta.ContentHash)
	if err != nil {
		return nil, errors.Wrapf(errors.TypeMalformedTable, err, "snapshot %s has a bad content hash", meta.ID)
	}
	if determinism.ComputeHash(data) != want {
		return nil, errors.Wrapf(errors.TypeMalformedTable, ErrHashMismatch, "snapshot %s", meta.ID)
	}
	return data, nil
}

func (s *Store) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(s.basePath, indexFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(errors.TypeConfig, "failed to read snapshot index", err)
	}

	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		return errors.Parsing("snapshot index is not valid JSON", err)
	}
	if idx.Snapshots != nil {
		s.index = idx.Snapshots
	}
	if idx.Latest != nil {
		s.latest = idx.Latest
	}
	return nil
}

// saveIndex must be called with s.mu held
func (s *Store) saveIndex() error {
	data, err := json.MarshalIndent(index{
		Snapshots: s.index,
		Latest:    s.latest,
		UpdatedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return errors.Internal("failed to serialize snapshot index", err)
	}

	indexPath := filepath.Join(s.basePath, indexFile)
	tempPath := indexPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return errors.Wrap(errors.TypeInternal, "failed to write snapshot index", err)
	}
	if err := os.Rename(tempPath, indexPath); err != nil {
		return errors.Wrap(errors.TypeInternal, "failed to replace snapshot index", err)
	}
	return nil
}

func checkCarrierName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return errors.Newf(errors.TypeInput, "invalid carrier name %q for snapshot", name)
	}
	return nil
}
