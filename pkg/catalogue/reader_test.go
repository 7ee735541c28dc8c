package catalogue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// memShardSet is an in-memory ShardSet for exercising the reader
// without HDF5 files on disk.
type memShardSet struct {
	shards    []*memShard
	existsErr map[int]error
	openErr   map[int]error

	probes int32
	opens  int32
}

func (m *memShardSet) Exists(index int) (bool, error) {
	atomic.AddInt32(&m.probes, 1)
	if err := m.existsErr[index]; err != nil {
		return false, err
	}
	return index < len(m.shards), nil
}

func (m *memShardSet) Open(index int) (Shard, error) {
	atomic.AddInt32(&m.opens, 1)
	if err := m.openErr[index]; err != nil {
		return nil, err
	}
	if index >= len(m.shards) {
		return nil, fmt.Errorf("shard %d out of range", index)
	}
	return m.shards[index], nil
}

func (m *memShardSet) Path(index int) string {
	return fmt.Sprintf("/sim/data/groups_028/eagle_subfind_tab_028.%d.hdf5", index)
}

type memShard struct {
	index    int
	hdr      SnapshotHeader
	datasets map[string]*memDataset
	closed   int32
}

func (s *memShard) Header() (SnapshotHeader, error) { return s.hdr, nil }

func (s *memShard) Dataset(table Table, field string) (Dataset, error) {
	ds, ok := s.datasets[string(table)+"/"+field]
	if !ok {
		return nil, &DatasetNotFoundError{Table: table, Field: field, Shard: s.index}
	}
	return ds, nil
}

func (s *memShard) Close() error {
	atomic.AddInt32(&s.closed, 1)
	return nil
}

type memDataset struct {
	attrs  FieldAttrs
	values interface{}
}

func (d *memDataset) Attrs() (FieldAttrs, error) { return d.attrs, nil }

func (d *memDataset) Column() (*Column, error) { return NewColumn(d.values) }

var testHeader = SnapshotHeader{HubbleParam: 0.6777, ExpansionFactor: 0.5}

// floatShards builds a shard set where FOF/Group_M_Crit200 holds the
// given per-shard float32 values with the given attributes.
func floatShards(attrs FieldAttrs, shards ...[]float32) *memShardSet {
	set := &memShardSet{}
	for i, vals := range shards {
		set.shards = append(set.shards, &memShard{
			index: i,
			hdr:   testHeader,
			datasets: map[string]*memDataset{
				"FOF/Group_M_Crit200": {attrs: attrs, values: vals},
			},
		})
	}
	return set
}

func TestReadInvalidTable(t *testing.T) {
	set := floatShards(FieldAttrs{}, []float32{1})
	r := NewReader(set, log.NewNopLogger(), nil)

	_, _, err := r.Read(context.Background(), Table("Halo"), "Group_M_Crit200", DefaultReadOptions())
	require.Error(t, err)

	var invalid *InvalidTableError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "Halo", invalid.Table)

	// Validation must happen before any I/O.
	assert.Zero(t, atomic.LoadInt32(&set.probes))
	assert.Zero(t, atomic.LoadInt32(&set.opens))
}

func TestReadNoShards(t *testing.T) {
	set := &memShardSet{}
	r := NewReader(set, log.NewNopLogger(), nil)

	_, _, err := r.Read(context.Background(), TableFOF, "Group_M_Crit200", DefaultReadOptions())

	var noShards *NoShardsFoundError
	require.ErrorAs(t, err, &noShards)
	assert.Contains(t, noShards.Path, ".0.hdf5")
}

func TestReadTermination(t *testing.T) {
	// Shards 0..2 present, shard 3 absent: exactly 3 loaded, no error.
	set := floatShards(FieldAttrs{}, []float32{1}, []float32{2}, []float32{3})
	r := NewReader(set, log.NewNopLogger(), nil)

	col, info, err := r.Read(context.Background(), TableFOF, "Group_M_Crit200", ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, info.Shards)
	assert.Equal(t, 3, col.Rows())
}

func TestReadShardOrdering(t *testing.T) {
	// Three shards of lengths 3, 5, 2 with distinguishable sentinels:
	// the result must be shard0 ++ shard1 ++ shard2 exactly.
	set := floatShards(FieldAttrs{},
		[]float32{10, 11, 12},
		[]float32{20, 21, 22, 23, 24},
		[]float32{30, 31},
	)
	r := NewReader(set, log.NewNopLogger(), nil)

	col, info, err := r.Read(context.Background(), TableFOF, "Group_M_Crit200", ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, info.Shards)
	assert.Equal(t,
		[]float32{10, 11, 12, 20, 21, 22, 23, 24, 30, 31},
		col.Float32())
}

func TestReadIntegerPreservation(t *testing.T) {
	// Integer fields are never unit-corrected, whatever the flags say.
	attrs := FieldAttrs{HScaleExponent: -1, AScaleExponent: 2, CGSConversionFactor: 1e40}
	set := &memShardSet{shards: []*memShard{
		{
			index: 0,
			hdr:   testHeader,
			datasets: map[string]*memDataset{
				"Subhalo/GroupNumber": {attrs: attrs, values: []int64{1, 1, 2, 3}},
			},
		},
		{
			index: 1,
			hdr:   testHeader,
			datasets: map[string]*memDataset{
				"Subhalo/GroupNumber": {attrs: attrs, values: []int64{4, 4, 4}},
			},
		},
	}}
	r := NewReader(set, log.NewNopLogger(), nil)

	col, info, err := r.Read(context.Background(), TableSubhalo, "GroupNumber",
		ReadOptions{Physical: true, CGS: true})
	require.NoError(t, err)
	assert.Equal(t, KindInt64, info.Kind)
	assert.False(t, info.PhysicalApplied)
	assert.False(t, info.CGSApplied)
	assert.Equal(t, []int64{1, 1, 2, 3, 4, 4, 4}, col.Int64())
}

func TestReadPhysicalIdempotent(t *testing.T) {
	// Zero exponents make the physical factor exactly 1.
	attrs := FieldAttrs{HScaleExponent: 0, AScaleExponent: 0, CGSConversionFactor: 1}
	set := floatShards(attrs, []float32{1.5, 2.5}, []float32{3.5})
	r := NewReader(set, log.NewNopLogger(), nil)

	col, info, err := r.Read(context.Background(), TableFOF, "Group_M_Crit200",
		ReadOptions{Physical: true})
	require.NoError(t, err)
	assert.True(t, info.PhysicalApplied)
	assert.Equal(t, []float32{1.5, 2.5, 3.5}, col.Float32())
}

func TestReadCGSWidening(t *testing.T) {
	// 3e38 is near the float32 limit; times 1e20 it overflows float32
	// but must come back finite because widening happens first.
	attrs := FieldAttrs{CGSConversionFactor: 1e20}
	set := floatShards(attrs, []float32{3e38})
	r := NewReader(set, log.NewNopLogger(), nil)

	col, info, err := r.Read(context.Background(), TableFOF, "Group_M_Crit200",
		ReadOptions{CGS: true})
	require.NoError(t, err)
	assert.Equal(t, KindFloat64, info.Kind)
	assert.True(t, info.CGSApplied)
	require.Len(t, col.Float64(), 1)
	assert.False(t, math.IsInf(col.Float64()[0], 0))
	assert.InEpsilon(t, 3e58, col.Float64()[0], 1e-5)
}

func TestReadEndToEnd(t *testing.T) {
	attrs := FieldAttrs{HScaleExponent: -1, AScaleExponent: 0, CGSConversionFactor: 1.989e43}
	set := floatShards(attrs, []float32{1, 2}, []float32{3})
	r := NewReader(set, log.NewNopLogger(), nil)

	col, info, err := r.Read(context.Background(), TableFOF, "Group_M_Crit200",
		ReadOptions{Physical: true})
	require.NoError(t, err)
	assert.Equal(t, 2, info.Shards)
	assert.Equal(t, KindFloat32, info.Kind)

	want := []float64{1 / 0.6777, 2 / 0.6777, 3 / 0.6777}
	require.Len(t, col.Float32(), 3)
	for i, v := range col.Float32() {
		assert.InEpsilon(t, want[i], float64(v), 1e-5)
	}

	// Same read in CGS: physical result times the conversion factor,
	// returned as float64.
	set = floatShards(attrs, []float32{1, 2}, []float32{3})
	r = NewReader(set, log.NewNopLogger(), nil)
	col, info, err = r.Read(context.Background(), TableFOF, "Group_M_Crit200",
		ReadOptions{Physical: true, CGS: true})
	require.NoError(t, err)
	assert.Equal(t, KindFloat64, info.Kind)
	assert.True(t, info.PhysicalApplied)
	assert.True(t, info.CGSApplied)
	require.Len(t, col.Float64(), 3)
	for i, v := range col.Float64() {
		assert.InEpsilon(t, want[i]*1.989e43, v, 1e-5)
	}
}

func TestReadDatasetNotFound(t *testing.T) {
	// The field vanishing in a later shard is a hard error, not the end
	// of the sequence.
	attrs := FieldAttrs{}
	set := floatShards(attrs, []float32{1}, []float32{2})
	delete(set.shards[1].datasets, "FOF/Group_M_Crit200")

	r := NewReader(set, log.NewNopLogger(), nil)
	_, _, err := r.Read(context.Background(), TableFOF, "Group_M_Crit200", ReadOptions{})

	var notFound *DatasetNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, 1, notFound.Shard)
	assert.Equal(t, TableFOF, notFound.Table)
	assert.Equal(t, "Group_M_Crit200", notFound.Field)
}

func TestReadShardErrorOnProbe(t *testing.T) {
	// A stat failure that is not "file absent" must not be mistaken for
	// the end of the sequence.
	set := floatShards(FieldAttrs{}, []float32{1}, []float32{2}, []float32{3})
	set.existsErr = map[int]error{2: errors.New("input/output error")}

	r := NewReader(set, log.NewNopLogger(), nil)
	_, _, err := r.Read(context.Background(), TableFOF, "Group_M_Crit200", ReadOptions{})

	var readErr *ShardReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, 2, readErr.Shard)
	assert.ErrorContains(t, err, "input/output error")
}

func TestReadShardErrorOnOpen(t *testing.T) {
	set := floatShards(FieldAttrs{}, []float32{1}, []float32{2})
	set.openErr = map[int]error{1: errors.New("permission denied")}

	r := NewReader(set, log.NewNopLogger(), nil)
	_, _, err := r.Read(context.Background(), TableFOF, "Group_M_Crit200", ReadOptions{})

	var readErr *ShardReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, 1, readErr.Shard)
}

func TestReadAttrsMismatch(t *testing.T) {
	set := floatShards(FieldAttrs{HScaleExponent: -1}, []float32{1}, []float32{2})
	set.shards[1].datasets["FOF/Group_M_Crit200"].attrs = FieldAttrs{HScaleExponent: -2}

	r := NewReader(set, log.NewNopLogger(), nil)
	_, _, err := r.Read(context.Background(), TableFOF, "Group_M_Crit200", ReadOptions{})

	var mismatch *AttrsMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 1, mismatch.Shard)
}

func TestReadEmptyShard(t *testing.T) {
	// A zero-length shard contributes nothing but does not terminate
	// the sequence.
	set := floatShards(FieldAttrs{}, []float32{1, 2}, []float32{}, []float32{3})
	r := NewReader(set, log.NewNopLogger(), nil)

	col, info, err := r.Read(context.Background(), TableFOF, "Group_M_Crit200", ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, info.Shards)
	assert.Equal(t, []float32{1, 2, 3}, col.Float32())
}

func TestReadShardsClosed(t *testing.T) {
	set := floatShards(FieldAttrs{}, []float32{1}, []float32{2}, []float32{3})
	r := NewReader(set, log.NewNopLogger(), nil)

	_, _, err := r.Read(context.Background(), TableFOF, "Group_M_Crit200", ReadOptions{})
	require.NoError(t, err)
	for i, sh := range set.shards {
		assert.Equal(t, int32(1), atomic.LoadInt32(&sh.closed), "shard %d", i)
	}
}

func TestReadContextCancelled(t *testing.T) {
	set := floatShards(FieldAttrs{}, []float32{1}, []float32{2})
	r := NewReader(set, log.NewNopLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := r.Read(ctx, TableFOF, "Group_M_Crit200", ReadOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestReadConcurrentMatchesSequential(t *testing.T) {
	defer goleak.VerifyNone(t)

	attrs := FieldAttrs{HScaleExponent: -1, AScaleExponent: 1, CGSConversionFactor: 2}
	shards := make([][]float32, 7)
	for i := range shards {
		for j := 0; j < (i%3)+1; j++ {
			shards[i] = append(shards[i], float32(i*100+j))
		}
	}

	seq := NewReader(floatShards(attrs, shards...), log.NewNopLogger(), nil)
	seqCol, seqInfo, err := seq.Read(context.Background(), TableFOF, "Group_M_Crit200",
		ReadOptions{Physical: true})
	require.NoError(t, err)

	par := NewReader(floatShards(attrs, shards...), log.NewNopLogger(), nil)
	parCol, parInfo, err := par.Read(context.Background(), TableFOF, "Group_M_Crit200",
		ReadOptions{Physical: true, MaxConcurrent: 4})
	require.NoError(t, err)

	assert.Equal(t, seqInfo, parInfo)
	assert.Equal(t, seqCol.Float32(), parCol.Float32())
}

func TestReadConcurrentNoShards(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewReader(&memShardSet{}, log.NewNopLogger(), nil)
	_, _, err := r.Read(context.Background(), TableFOF, "Group_M_Crit200",
		ReadOptions{MaxConcurrent: 4})

	var noShards *NoShardsFoundError
	require.ErrorAs(t, err, &noShards)
}

func TestReadMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	set := floatShards(FieldAttrs{}, []float32{1, 2}, []float32{3})
	r := NewReader(set, log.NewNopLogger(), metrics)

	_, _, err := r.Read(context.Background(), TableFOF, "Group_M_Crit200", ReadOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ShardsRead))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.RowsRead.WithLabelValues("FOF")))

	_, _, err = r.Read(context.Background(), TableFOF, "Group_Missing", ReadOptions{})
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ReadErrors.WithLabelValues("FOF")))
}

func TestDefaultReadOptions(t *testing.T) {
	opts := DefaultReadOptions()
	assert.True(t, opts.Physical)
	assert.False(t, opts.CGS)
	assert.Equal(t, 0, opts.MaxConcurrent)
}
