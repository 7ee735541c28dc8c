package catalogue

import (
	"fmt"
)

// Kind identifies the element type of a catalogue column.
type Kind int

const (
	KindInvalid Kind = iota
	KindInt32
	KindInt64
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
)

// String returns the kind name as it would appear in an HDF5 dump.
func (k Kind) String() string {
	switch k {
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindUint32:
		return "uint32"
	case KindUint64:
		return "uint64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	default:
		return "invalid"
	}
}

// IsInteger reports whether the kind is an integer type. Integer columns
// hold counts, indices and flags and are never unit-corrected.
func (k Kind) IsInteger() bool {
	switch k {
	case KindInt32, KindInt64, KindUint32, KindUint64:
		return true
	default:
		return false
	}
}

// IsFloat reports whether the kind is a floating-point type.
func (k Kind) IsFloat() bool {
	return k == KindFloat32 || k == KindFloat64
}

// Column is one catalogue field concatenated across shards. Storage is a
// flat slice in row-major order; width is the number of elements per row
// (1 for one-dimensional datasets, e.g. 6 for the per-particle-type
// columns of Subhalo/MassType).
type Column struct {
	kind  Kind
	width int

	i32 []int32
	i64 []int64
	u32 []uint32
	u64 []uint64
	f32 []float32
	f64 []float64
}

// NewColumn builds a column from the value slice returned by the HDF5
// layer. Rank-1 slices become width-1 columns; rank-2 slices are
// flattened row-major with the inner length as the width. Ragged inner
// rows and unsupported element types are rejected.
func NewColumn(values interface{}) (*Column, error) {
	switch v := values.(type) {
	case []int32:
		return &Column{kind: KindInt32, width: 1, i32: v}, nil
	case []int64:
		return &Column{kind: KindInt64, width: 1, i64: v}, nil
	case []uint32:
		return &Column{kind: KindUint32, width: 1, u32: v}, nil
	case []uint64:
		return &Column{kind: KindUint64, width: 1, u64: v}, nil
	case []float32:
		return &Column{kind: KindFloat32, width: 1, f32: v}, nil
	case []float64:
		return &Column{kind: KindFloat64, width: 1, f64: v}, nil
	case [][]int32:
		flat, w, err := flatten(v)
		return &Column{kind: KindInt32, width: w, i32: flat}, err
	case [][]int64:
		flat, w, err := flatten(v)
		return &Column{kind: KindInt64, width: w, i64: flat}, err
	case [][]uint32:
		flat, w, err := flatten(v)
		return &Column{kind: KindUint32, width: w, u32: flat}, err
	case [][]uint64:
		flat, w, err := flatten(v)
		return &Column{kind: KindUint64, width: w, u64: flat}, err
	case [][]float32:
		flat, w, err := flatten(v)
		return &Column{kind: KindFloat32, width: w, f32: flat}, err
	case [][]float64:
		flat, w, err := flatten(v)
		return &Column{kind: KindFloat64, width: w, f64: flat}, err
	default:
		return nil, fmt.Errorf("unsupported dataset element type %T", values)
	}
}

func flatten[T any](rows [][]T) ([]T, int, error) {
	if len(rows) == 0 {
		return nil, 1, nil
	}
	w := len(rows[0])
	flat := make([]T, 0, len(rows)*w)
	for i := range rows {
		if len(rows[i]) != w {
			return nil, 0, fmt.Errorf("ragged dataset: row 0 has %d elements, row %d has %d", w, i, len(rows[i]))
		}
		flat = append(flat, rows[i]...)
	}
	return flat, w, nil
}

// Kind returns the element kind.
func (c *Column) Kind() Kind { return c.kind }

// Width returns the number of elements per row.
func (c *Column) Width() int { return c.width }

// Len returns the total number of elements across all rows.
func (c *Column) Len() int {
	switch c.kind {
	case KindInt32:
		return len(c.i32)
	case KindInt64:
		return len(c.i64)
	case KindUint32:
		return len(c.u32)
	case KindUint64:
		return len(c.u64)
	case KindFloat32:
		return len(c.f32)
	case KindFloat64:
		return len(c.f64)
	default:
		return 0
	}
}

// Rows returns the number of rows. Row position aligns with entity index
// in the catalogue (GroupNumber minus one for FOF tables).
func (c *Column) Rows() int {
	if c.width <= 0 {
		return 0
	}
	return c.Len() / c.width
}

// Int32 returns the backing slice of an int32 column, nil otherwise.
func (c *Column) Int32() []int32 { return c.i32 }

// Int64 returns the backing slice of an int64 column, nil otherwise.
func (c *Column) Int64() []int64 { return c.i64 }

// Uint32 returns the backing slice of a uint32 column, nil otherwise.
func (c *Column) Uint32() []uint32 { return c.u32 }

// Uint64 returns the backing slice of a uint64 column, nil otherwise.
func (c *Column) Uint64() []uint64 { return c.u64 }

// Float32 returns the backing slice of a float32 column, nil otherwise.
func (c *Column) Float32() []float32 { return c.f32 }

// Float64 returns the backing slice of a float64 column, nil otherwise.
func (c *Column) Float64() []float64 { return c.f64 }

// Append concatenates other onto c along axis 0. Kinds and widths must
// match; an empty shard (zero rows) is a no-op. A width-1 column may be
// appended to another width-1 column even if one of them is empty.
func (c *Column) Append(other *Column) error {
	if other.Len() == 0 {
		return nil
	}
	if c.Len() == 0 && c.kind == other.kind {
		// Adopt the incoming width; an empty first shard carries no
		// trustworthy inner dimension.
		c.width = other.width
	}
	if other.kind != c.kind {
		return fmt.Errorf("shard dtype mismatch: %s vs %s", other.kind, c.kind)
	}
	if other.width != c.width {
		return fmt.Errorf("shard row width mismatch: %d vs %d", other.width, c.width)
	}
	switch c.kind {
	case KindInt32:
		c.i32 = append(c.i32, other.i32...)
	case KindInt64:
		c.i64 = append(c.i64, other.i64...)
	case KindUint32:
		c.u32 = append(c.u32, other.u32...)
	case KindUint64:
		c.u64 = append(c.u64, other.u64...)
	case KindFloat32:
		c.f32 = append(c.f32, other.f32...)
	case KindFloat64:
		c.f64 = append(c.f64, other.f64...)
	default:
		return fmt.Errorf("append to invalid column")
	}
	return nil
}

// Widen converts a float32 column to float64 in place. Float64 columns
// are left untouched; integer columns are an error, they must never be
// converted to floating point.
func (c *Column) Widen() error {
	switch c.kind {
	case KindFloat64:
		return nil
	case KindFloat32:
		wide := make([]float64, len(c.f32))
		for i, v := range c.f32 {
			wide[i] = float64(v)
		}
		c.f64 = wide
		c.f32 = nil
		c.kind = KindFloat64
		return nil
	default:
		return fmt.Errorf("cannot widen %s column to float64", c.kind)
	}
}

// Scale multiplies every element of a floating-point column by factor,
// in the column's own precision. Integer columns are an error.
func (c *Column) Scale(factor float64) error {
	switch c.kind {
	case KindFloat32:
		f := float32(factor)
		for i := range c.f32 {
			c.f32[i] *= f
		}
		return nil
	case KindFloat64:
		for i := range c.f64 {
			c.f64[i] *= factor
		}
		return nil
	default:
		return fmt.Errorf("cannot scale %s column", c.kind)
	}
}

// Gather returns a new column holding the given rows of c, in the order
// given. Dtype and width are preserved.
func (c *Column) Gather(rows []int) (*Column, error) {
	n := c.Rows()
	for _, r := range rows {
		if r < 0 || r >= n {
			return nil, fmt.Errorf("row %d out of range [0, %d)", r, n)
		}
	}
	out := &Column{kind: c.kind, width: c.width}
	switch c.kind {
	case KindInt32:
		out.i32 = gatherRows(c.i32, rows, c.width)
	case KindInt64:
		out.i64 = gatherRows(c.i64, rows, c.width)
	case KindUint32:
		out.u32 = gatherRows(c.u32, rows, c.width)
	case KindUint64:
		out.u64 = gatherRows(c.u64, rows, c.width)
	case KindFloat32:
		out.f32 = gatherRows(c.f32, rows, c.width)
	case KindFloat64:
		out.f64 = gatherRows(c.f64, rows, c.width)
	default:
		return nil, fmt.Errorf("gather from invalid column")
	}
	return out, nil
}

func gatherRows[T any](src []T, rows []int, width int) []T {
	out := make([]T, 0, len(rows)*width)
	for _, r := range rows {
		out = append(out, src[r*width:(r+1)*width]...)
	}
	return out
}
