package hdf5io

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/hdf5"

	"github.com/j-davies-ari/eagle-guide/pkg/catalogue"
)

const headerGroup = "Header"

// SUBFIND attribute names, fixed by the EAGLE output format.
const (
	attrHScaleExponent      = "h-scale-exponent"
	attrAScaleExponent      = "aexp-scale-exponent"
	attrCGSConversionFactor = "CGSConversionFactor"
	attrHubbleParam         = "HubbleParam"
	attrExpansionFactor     = "ExpansionFactor"
)

// ShardSet is a catalogue.ShardSet over the tab files named by a
// Locator.
type ShardSet struct {
	loc Locator
}

// NewShardSet validates the locator and returns a shard set for it. No
// I/O happens until the reader starts probing.
func NewShardSet(loc Locator) (*ShardSet, error) {
	if err := loc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid locator: %w", err)
	}
	return &ShardSet{loc: loc}, nil
}

// Exists reports whether the numbered shard file is present. Only a
// genuine "no such file" counts as absent; any other stat failure is
// surfaced so it cannot silently truncate the catalogue.
func (s *ShardSet) Exists(index int) (bool, error) {
	_, err := os.Stat(s.loc.ShardPath(index))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Open opens the numbered shard file read-only.
func (s *ShardSet) Open(index int) (catalogue.Shard, error) {
	path := s.loc.ShardPath(index)
	root, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &shard{index: index, path: path, root: root}, nil
}

// Path returns the path of the numbered shard file.
func (s *ShardSet) Path(index int) string {
	return s.loc.ShardPath(index)
}

type shard struct {
	index int
	path  string
	root  api.Group
}

func (sh *shard) Close() error {
	sh.root.Close()
	return nil
}

// Header reads the cosmology attributes from the shard's Header group.
func (sh *shard) Header() (catalogue.SnapshotHeader, error) {
	var hdr catalogue.SnapshotHeader

	g, err := sh.root.GetGroup(headerGroup)
	if err != nil {
		return hdr, fmt.Errorf("group %s: %w", headerGroup, err)
	}
	defer g.Close()

	attrs := g.Attributes()
	hdr.HubbleParam, err = floatAttr(attrs, attrHubbleParam)
	if err != nil {
		return hdr, err
	}
	hdr.ExpansionFactor, err = floatAttr(attrs, attrExpansionFactor)
	if err != nil {
		return hdr, err
	}
	return hdr, nil
}

// Dataset resolves the slash-delimited field path under the table
// group. Intermediate path segments are HDF5 groups; the final segment
// is the dataset.
func (sh *shard) Dataset(table catalogue.Table, field string) (catalogue.Dataset, error) {
	groupPath := string(table)
	leaf := field
	if i := strings.LastIndex(field, "/"); i >= 0 {
		groupPath = groupPath + "/" + field[:i]
		leaf = field[i+1:]
	}

	g, err := sh.root.GetGroup(groupPath)
	if err != nil {
		if errors.Is(err, hdf5.ErrNotFound) {
			return nil, &catalogue.DatasetNotFoundError{Table: table, Field: field, Shard: sh.index}
		}
		return nil, fmt.Errorf("group %s: %w", groupPath, err)
	}
	defer g.Close()

	v, err := g.GetVariable(leaf)
	if err != nil {
		if errors.Is(err, hdf5.ErrNotFound) {
			return nil, &catalogue.DatasetNotFoundError{Table: table, Field: field, Shard: sh.index}
		}
		return nil, fmt.Errorf("dataset %s/%s: %w", groupPath, leaf, err)
	}

	return &dataset{table: table, field: field, v: v}, nil
}

type dataset struct {
	table catalogue.Table
	field string
	v     *api.Variable
}

// Attrs reads the field's unit-conversion attributes.
func (d *dataset) Attrs() (catalogue.FieldAttrs, error) {
	var fa catalogue.FieldAttrs
	var err error

	fa.HScaleExponent, err = floatAttr(d.v.Attributes, attrHScaleExponent)
	if err != nil {
		return fa, fmt.Errorf("dataset %s/%s: %w", d.table, d.field, err)
	}
	fa.AScaleExponent, err = floatAttr(d.v.Attributes, attrAScaleExponent)
	if err != nil {
		return fa, fmt.Errorf("dataset %s/%s: %w", d.table, d.field, err)
	}
	fa.CGSConversionFactor, err = floatAttr(d.v.Attributes, attrCGSConversionFactor)
	if err != nil {
		return fa, fmt.Errorf("dataset %s/%s: %w", d.table, d.field, err)
	}
	return fa, nil
}

// Column materializes the shard's slice of the dataset in the on-disk
// element type.
func (d *dataset) Column() (*catalogue.Column, error) {
	col, err := catalogue.NewColumn(d.v.Values)
	if err != nil {
		return nil, fmt.Errorf("dataset %s/%s: %w", d.table, d.field, err)
	}
	return col, nil
}

// floatAttr reads a numeric attribute, accepting the widths HDF5 files
// actually carry for these values.
func floatAttr(attrs api.AttributeMap, name string) (float64, error) {
	raw, has := attrs.Get(name)
	if !has {
		return 0, fmt.Errorf("attribute %s missing", name)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case []float64:
		if len(v) == 1 {
			return v[0], nil
		}
	case []float32:
		if len(v) == 1 {
			return float64(v[0]), nil
		}
	}
	return 0, fmt.Errorf("attribute %s has unexpected type %T", name, raw)
}
