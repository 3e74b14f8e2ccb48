package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"carrier-tariff/core/carrier"
	"carrier-tariff/core/tariff"
	"carrier-tariff/core/zones"
	"carrier-tariff/internal/errors"
	"carrier-tariff/internal/logging"
)

func init() {
	logging.Replace(zap.NewNop())
}

func testSheet(t *testing.T, name string, base tariff.Rate) *carrier.Sheet {
	t.Helper()
	half := decimal.RequireFromString("0.5")
	one := decimal.NewFromInt(1)
	table, err := tariff.New(tariff.Definition{
		Name:       "test-tariff",
		Currency:   "KRW",
		Zones:      []tariff.ZoneCode{"Z1", "Z2"},
		Step:       half,
		MinWeight:  half,
		Breakpoint: one,
		MaxWeight:  one,
		Exact: []tariff.ExactRow{
			{Weight: half, Rates: map[tariff.ZoneCode]tariff.Rate{"Z1": base, "Z2": tariff.RateUnknown}},
			{Weight: one, Rates: map[tariff.ZoneCode]tariff.Rate{"Z1": base + 100, "Z2": base * 2}},
		},
	})
	if err != nil {
		t.Fatalf("tariff.New: %v", err)
	}
	dir, err := zones.New([]zones.Zone{
		{Code: "Z1", Label: "Korea", Countries: []string{"KR"}},
		{Code: "Z2", Label: "Elsewhere"},
	}, "Z2")
	if err != nil {
		t.Fatalf("zones.New: %v", err)
	}
	sheet, err := carrier.NewSheet(name, table, dir, "test")
	if err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	return sheet
}

func newStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestStoreAndGet(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, t.TempDir())
	orig := testSheet(t, "ups", 1000)

	meta, err := s.Store(ctx, orig)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if meta.Carrier != "ups" || meta.Tariff != "test-tariff" || meta.ID == "" {
		t.Errorf("metadata = %+v", meta)
	}
	info, err := os.Stat(meta.FilePath)
	if err != nil {
		t.Fatalf("snapshot file: %v", err)
	}
	if info.Mode().Perm()&0o222 != 0 {
		t.Errorf("snapshot file mode = %v, want read-only", info.Mode().Perm())
	}

	got, err := s.Get(ctx, meta.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Table.Fingerprint() != orig.Table.Fingerprint() {
		t.Error("fingerprint changed through snapshot")
	}
	if got.Carrier != "ups" || got.Source != "snapshot:"+meta.ID {
		t.Errorf("sheet = %s from %s", got.Carrier, got.Source)
	}
	if _, err := got.Table.Resolve("Z2", 0.5); !errors.IsType(err, errors.TypeRateUnavailable) {
		t.Errorf("unknown cell lost through snapshot: %v", err)
	}
	if z, ok := got.Zones.Lookup("FR"); !ok || z.Code != "Z2" {
		t.Errorf("default zone lost through snapshot: %v %v", z, ok)
	}
}

func TestStoreIsIdempotentPerContent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, t.TempDir())

	a1, err := s.Store(ctx, testSheet(t, "ups", 1000))
	if err != nil {
		t.Fatal(err)
	}
	a2, err := s.Store(ctx, testSheet(t, "ups", 1000))
	if err != nil {
		t.Fatal(err)
	}
	if a1.ID != a2.ID {
		t.Errorf("same content stored twice: %s and %s", a1.ID, a2.ID)
	}

	b, err := s.Store(ctx, testSheet(t, "ups", 2000))
	if err != nil {
		t.Fatal(err)
	}
	latest, err := s.Latest(ctx, "ups")
	if err != nil {
		t.Fatal(err)
	}
	if rate, _ := latest.Table.Resolve("Z1", 0.5); rate != 2000 {
		t.Errorf("latest rate = %d, want 2000 (snapshot %s)", rate, b.ID)
	}

	if _, err := s.Store(ctx, testSheet(t, "ups", 1000)); err != nil {
		t.Fatal(err)
	}
	latest, _ = s.Latest(ctx, "ups")
	if rate, _ := latest.Table.Resolve("Z1", 0.5); rate != 1000 {
		t.Errorf("restoring earlier content should make it latest, got rate %d", rate)
	}
	if n := len(s.List("ups")); n != 2 {
		t.Errorf("List(ups) has %d snapshots, want 2", n)
	}
}

func TestStoreReopensIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	meta, err := newStore(t, dir).Store(ctx, testSheet(t, "dhl", 1500))
	if err != nil {
		t.Fatal(err)
	}

	reopened := newStore(t, dir)
	list := reopened.List("")
	if len(list) != 1 || list[0].ID != meta.ID {
		t.Fatalf("List after reopen = %+v", list)
	}
	sheet, err := reopened.Latest(ctx, "dhl")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if rate, _ := sheet.Table.Resolve("Z1", 1); rate != 1600 {
		t.Errorf("rate = %d, want 1600", rate)
	}
}

func TestTamperedSnapshotIsRejected(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, t.TempDir())
	meta, err := s.Store(ctx, testSheet(t, "ups", 1000))
	if err != nil {
		t.Fatal(err)
	}

	if err := os.Chmod(meta.FilePath, 0o644); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(meta.FilePath)
	if err := os.WriteFile(meta.FilePath, append(data, ' '), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = s.Get(ctx, meta.ID)
	if !stderrors.Is(err, ErrHashMismatch) || !errors.IsType(err, errors.TypeMalformedTable) {
		t.Fatalf("Get of tampered snapshot = %v, want hash mismatch", err)
	}
	if problems := s.VerifyIntegrity(ctx); len(problems) != 1 {
		t.Errorf("VerifyIntegrity = %v, want one problem", problems)
	}

	if err := os.Remove(meta.FilePath); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, meta.ID); !errors.IsType(err, errors.TypeNotFound) {
		t.Errorf("Get of removed snapshot = %v, want not found", err)
	}
}

func TestBadIndexedHashIsRejected(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"not hex", "zz"},
		{"short digest", "abcd"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			meta, err := newStore(t, dir).Store(ctx, testSheet(t, "ups", 1000))
			if err != nil {
				t.Fatal(err)
			}

			indexPath := filepath.Join(dir, indexFile)
			data, err := os.ReadFile(indexPath)
			if err != nil {
				t.Fatal(err)
			}
			var idx index
			if err := json.Unmarshal(data, &idx); err != nil {
				t.Fatal(err)
			}
			idx.Snapshots[meta.ID].ContentHash = tt.hash
			data, err = json.Marshal(idx)
			if err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(indexPath, data, 0o644); err != nil {
				t.Fatal(err)
			}

			_, err = newStore(t, dir).Get(ctx, meta.ID)
			if !errors.IsType(err, errors.TypeMalformedTable) || stderrors.Is(err, ErrHashMismatch) {
				t.Fatalf("Get with content hash %q = %v, want malformed hash error", tt.hash, err)
			}
		})
	}
}

func TestStoreRefusesToOverwrite(t *testing.T) {
	ctx := context.Background()
	sheet := testSheet(t, "ups", 1000)

	meta, err := newStore(t, t.TempDir()).Store(ctx, sheet)
	if err != nil {
		t.Fatal(err)
	}

	other := t.TempDir()
	squatter := filepath.Join(other, filepath.Base(meta.FilePath))
	if err := os.WriteFile(squatter, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := newStore(t, other).Store(ctx, sheet); !stderrors.Is(err, ErrImmutabilityViolation) {
		t.Fatalf("Store over existing file = %v, want immutability violation", err)
	}
}

func TestStoreErrors(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, t.TempDir())

	if _, err := s.Store(ctx, testSheet(t, "../escape", 1000)); !errors.IsType(err, errors.TypeInput) {
		t.Errorf("Store with path in carrier name = %v, want input error", err)
	}
	if _, err := s.Get(ctx, "nope"); !stderrors.Is(err, ErrNoSnapshot) {
		t.Errorf("Get(nope) = %v, want ErrNoSnapshot", err)
	}
	if _, err := s.Latest(ctx, "fedex"); !errors.IsType(err, errors.TypeNotFound) {
		t.Errorf("Latest(fedex) = %v, want not found", err)
	}
}

func TestArchivingAndSnapshotLoaders(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, t.TempDir())
	fresh := testSheet(t, "test-tariff", 1200)

	reg := carrier.NewRegistry()
	source := carrier.LoaderFunc(func(context.Context) (*carrier.Sheet, error) { return fresh, nil })
	if err := reg.Register("ups", ArchivingLoader{Source: source, Store: s, Carrier: "ups"}); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Reload(ctx, "ups"); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if fresh.Carrier != "test-tariff" {
		t.Error("archiving must not modify the loaded sheet")
	}
	if n := len(s.List("ups")); n != 1 {
		t.Fatalf("archived %d snapshots, want 1", n)
	}

	restored, err := SnapshotLoader{Store: s, Carrier: "ups"}.Load(ctx)
	if err != nil {
		t.Fatalf("SnapshotLoader: %v", err)
	}
	if restored.Table.Fingerprint() != fresh.Table.Fingerprint() {
		t.Error("snapshot loader returned a different table")
	}
}
