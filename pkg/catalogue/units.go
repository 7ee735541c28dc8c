package catalogue

import (
	"math"
)

// FieldAttrs are the per-field unit conversion attributes carried by
// every dataset in the SUBFIND tables. They are fixed for a given
// (table, field) pair and must agree across all shards of one snapshot.
type FieldAttrs struct {
	// HScaleExponent is the exponent of the Hubble parameter h in the
	// field's comoving units (the "h-scale-exponent" HDF5 attribute).
	HScaleExponent float64

	// AScaleExponent is the exponent of the expansion factor a (the
	// "aexp-scale-exponent" attribute).
	AScaleExponent float64

	// CGSConversionFactor converts the field's physical value to CGS
	// units (the "CGSConversionFactor" attribute).
	CGSConversionFactor float64
}

// SnapshotHeader holds the cosmological parameters of one snapshot,
// read from the Header group and identical across all shards.
type SnapshotHeader struct {
	// HubbleParam is the dimensionless Hubble parameter h.
	HubbleParam float64

	// ExpansionFactor is the scale factor a at the snapshot redshift.
	ExpansionFactor float64
}

// PhysicalFactor returns the scalar h^h_exp * a^a_exp that converts the
// field from comoving h-full units to physical units. It is computed
// once per read and applied to the whole column.
func (fa FieldAttrs) PhysicalFactor(hd SnapshotHeader) float64 {
	return math.Pow(hd.HubbleParam, fa.HScaleExponent) *
		math.Pow(hd.ExpansionFactor, fa.AScaleExponent)
}
