// Package hdf5io implements catalogue.ShardSet over SUBFIND tab files
// on a filesystem, using the pure-Go HDF5 decoder from
// go-native-netcdf.
package hdf5io

import (
	"fmt"
	"path/filepath"
)

// Locator identifies one snapshot's SUBFIND output on disk. All four
// parts are required; defaults belong to the caller, not here.
type Locator struct {
	// BaseDir is the root of the simulation data tree.
	BaseDir string `yaml:"base_dir"`

	// Sim is the simulation volume, e.g. "L0100N1504".
	Sim string `yaml:"sim"`

	// Model is the physics model, e.g. "REFERENCE".
	Model string `yaml:"model"`

	// Tag is the snapshot tag, e.g. "028_z000p000".
	Tag string `yaml:"tag"`
}

// Validate checks that all locator parts are set.
func (l *Locator) Validate() error {
	if l.BaseDir == "" {
		return fmt.Errorf("base dir cannot be empty")
	}
	if l.Sim == "" {
		return fmt.Errorf("sim cannot be empty")
	}
	if l.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if l.Tag == "" {
		return fmt.Errorf("tag cannot be empty")
	}
	return nil
}

// GroupDir returns the directory holding the snapshot's tab files.
func (l Locator) GroupDir() string {
	return filepath.Join(l.BaseDir, l.Sim, l.Model, "data", "groups_"+l.Tag)
}

// ShardPath returns the path of the numbered shard file. The filename
// template is fixed by the SUBFIND output convention and must match the
// files on disk exactly.
func (l Locator) ShardPath(index int) string {
	return filepath.Join(l.GroupDir(), fmt.Sprintf("eagle_subfind_tab_%s.%d.hdf5", l.Tag, index))
}
