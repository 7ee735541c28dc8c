package catalogue

import (
	"fmt"
)

// MassCut returns the row indices whose value meets or exceeds min, in
// row order. The usual way to build a galaxy sample: read a mass field,
// cut it, then Gather other fields with the returned rows.
func MassCut(values []float64, min float64) []int {
	var rows []int
	for i, v := range values {
		if v >= min {
			rows = append(rows, i)
		}
	}
	return rows
}

// MassCut32 is MassCut for float32 columns, compared in float64.
func MassCut32(values []float32, min float64) []int {
	var rows []int
	for i, v := range values {
		if float64(v) >= min {
			rows = append(rows, i)
		}
	}
	return rows
}

// MatchCentrals maps FOF groups to the Subhalo rows of their central
// galaxies. groupNumbers and subGroupNumbers are the Subhalo table's
// GroupNumber (1-based parent group index) and SubGroupNumber columns.
// The result has numGroups entries; entry g is the Subhalo row whose
// GroupNumber is g+1 and SubGroupNumber is 0, or -1 when the group hosts
// no central. Because FOF row position equals GroupNumber-1, the result
// aligns row-for-row with any FOF column.
func MatchCentrals(groupNumbers, subGroupNumbers []int64, numGroups int) ([]int64, error) {
	if len(groupNumbers) != len(subGroupNumbers) {
		return nil, fmt.Errorf("column length mismatch: %d group numbers, %d subgroup numbers",
			len(groupNumbers), len(subGroupNumbers))
	}
	if numGroups < 0 {
		return nil, fmt.Errorf("negative group count %d", numGroups)
	}

	out := make([]int64, numGroups)
	for i := range out {
		out[i] = -1
	}
	for row, gn := range groupNumbers {
		if subGroupNumbers[row] != 0 {
			continue
		}
		if gn < 1 || int(gn) > numGroups {
			return nil, fmt.Errorf("subhalo row %d has GroupNumber %d outside [1, %d]", row, gn, numGroups)
		}
		if prev := out[gn-1]; prev != -1 {
			return nil, fmt.Errorf("group %d has two centrals, subhalo rows %d and %d", gn, prev, row)
		}
		out[gn-1] = int64(row)
	}
	return out, nil
}
