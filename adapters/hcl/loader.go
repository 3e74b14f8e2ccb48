package hcl

import (
	"context"
	"os"

	"carrier-tariff/core/carrier"
	"carrier-tariff/internal/errors"
)

// LoadFile reads, decodes and validates a tariff file
func LoadFile(path string) (*carrier.Sheet, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.TypeInput, err, "failed to read tariff file %s", path)
	}

	doc, err := Decode(path, src)
	if err != nil {
		return nil, err
	}
	table, dir, err := doc.Build()
	if err != nil {
		return nil, errors.Wrapf(errors.TypeOf(err), err, "tariff file %s", path)
	}
	return carrier.NewSheet(table.Name(), table, dir, path)
}

// FileLoader loads a carrier's tariff from an HCL file on every reload
type FileLoader struct {
	Path string
}

// Load implements carrier.Loader
func (l FileLoader) Load(ctx context.Context) (*carrier.Sheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadFile(l.Path)
}
