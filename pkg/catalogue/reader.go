// Package catalogue reads fields from the sharded HDF5 halo and galaxy
// catalogues written by SUBFIND for the EAGLE simulations.
//
// A catalogue field is split across numbered shard files with no shard
// count recorded anywhere, so the reader probes indices from 0 until a
// shard is missing, concatenates the per-shard slices in shard order and
// applies the cosmological (h/a) and CGS unit corrections carried as
// HDF5 attributes on the dataset.
package catalogue

import (
	"context"
	"errors"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("pkg/catalogue")

// ReadOptions control unit normalization and shard fetch concurrency.
// The zero value applies no corrections; use DefaultReadOptions for the
// conventional physical-units read.
type ReadOptions struct {
	// Physical multiplies floating-point fields by h^h_exp * a^a_exp,
	// converting comoving h-full values to physical values.
	Physical bool

	// CGS widens floating-point fields to float64 and multiplies by the
	// field's CGSConversionFactor. May be combined with Physical, in
	// which case the physical correction is applied first.
	CGS bool

	// MaxConcurrent > 1 fetches shards with a bounded worker pool and
	// reassembles them in shard-index order. 0 or 1 reads sequentially.
	MaxConcurrent int
}

// DefaultReadOptions returns the conventional read: physical units on,
// CGS off, sequential.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{Physical: true}
}

// ReadInfo describes how a column was assembled, so the caller knows the
// final dtype and which unit corrections were actually applied (none are
// ever applied to integer fields).
type ReadInfo struct {
	Shards          int
	Kind            Kind
	PhysicalApplied bool
	CGSApplied      bool
	Attrs           FieldAttrs
	Header          SnapshotHeader
}

// Reader reads whole catalogue fields from a ShardSet. Each Read is an
// independent, idempotent pass over the shard files; nothing is cached
// between calls and the Reader is safe for concurrent use.
type Reader struct {
	shards  ShardSet
	logger  log.Logger
	metrics *Metrics
}

// NewReader creates a Reader over the given shard set. logger and
// metrics may be nil.
func NewReader(shards ShardSet, logger log.Logger, metrics *Metrics) *Reader {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Reader{
		shards:  shards,
		logger:  logger,
		metrics: metrics,
	}
}

// Read concatenates the named field of the given table across all
// shards and applies the requested unit corrections. See ReadOptions
// and the package comment for the contract.
func (r *Reader) Read(ctx context.Context, table Table, field string, opts ReadOptions) (*Column, *ReadInfo, error) {
	ctx, span := tracer.Start(ctx, "catalogue.Read", trace.WithAttributes(
		attribute.String("table", string(table)),
		attribute.String("field", field),
	))
	defer span.End()

	// Table validation happens before any I/O.
	if _, err := ParseTable(string(table)); err != nil {
		return nil, nil, err
	}

	start := time.Now()
	col, info, err := r.readAll(ctx, table, field, opts)
	if err != nil {
		if r.metrics != nil {
			r.metrics.ReadErrors.WithLabelValues(string(table)).Inc()
		}
		return nil, nil, err
	}

	if r.metrics != nil {
		r.metrics.ReadDuration.Observe(time.Since(start).Seconds())
		r.metrics.RowsRead.WithLabelValues(string(table)).Add(float64(col.Rows()))
	}
	level.Info(r.logger).Log("msg", "catalogue read complete",
		"table", table, "field", field,
		"shards", info.Shards, "rows", col.Rows(), "dtype", info.Kind,
		"physical", info.PhysicalApplied, "cgs", info.CGSApplied)
	return col, info, nil
}

func (r *Reader) readAll(ctx context.Context, table Table, field string, opts ReadOptions) (*Column, *ReadInfo, error) {
	var (
		col   *Column
		attrs FieldAttrs
		hdr   SnapshotHeader
		n     int
		err   error
	)
	if opts.MaxConcurrent > 1 {
		col, attrs, hdr, n, err = r.readConcurrent(ctx, table, field, opts.MaxConcurrent)
	} else {
		col, attrs, hdr, n, err = r.readSequential(ctx, table, field)
	}
	if err != nil {
		return nil, nil, err
	}

	info := &ReadInfo{
		Shards: n,
		Attrs:  attrs,
		Header: hdr,
	}
	info.PhysicalApplied, info.CGSApplied, err = applyUnits(col, attrs, hdr, opts)
	if err != nil {
		return nil, nil, err
	}
	info.Kind = col.Kind()
	return col, info, nil
}

// readSequential opens, reads and closes one shard at a time, in index
// order, until the next shard does not exist.
func (r *Reader) readSequential(ctx context.Context, table Table, field string) (*Column, FieldAttrs, SnapshotHeader, int, error) {
	var (
		acc   *Column
		attrs FieldAttrs
		hdr   SnapshotHeader
	)

	n := 0
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, attrs, hdr, 0, err
		}

		ok, err := r.shards.Exists(i)
		if err != nil {
			return nil, attrs, hdr, 0, &ShardReadError{Shard: i, Path: r.shards.Path(i), Err: err}
		}
		if !ok {
			if i == 0 {
				return nil, attrs, hdr, 0, &NoShardsFoundError{Path: r.shards.Path(0)}
			}
			break
		}

		col, shardAttrs, shardHdr, err := r.readShard(table, field, i)
		if err != nil {
			return nil, attrs, hdr, 0, err
		}
		if i == 0 {
			acc, attrs, hdr = col, shardAttrs, shardHdr
		} else {
			if shardAttrs != attrs {
				return nil, attrs, hdr, 0, &AttrsMismatchError{
					Table: table, Field: field, Shard: i, Want: attrs, Got: shardAttrs,
				}
			}
			if err := acc.Append(col); err != nil {
				return nil, attrs, hdr, 0, &ShardReadError{Shard: i, Path: r.shards.Path(i), Err: err}
			}
		}
		n++
	}

	return acc, attrs, hdr, n, nil
}

// readConcurrent first discovers the shard count with cheap existence
// probes, then fetches shards through a bounded worker pool. Results are
// reassembled in strict shard-index order, so the concatenated column is
// identical to the sequential read's.
func (r *Reader) readConcurrent(ctx context.Context, table Table, field string, limit int) (*Column, FieldAttrs, SnapshotHeader, int, error) {
	var zeroAttrs FieldAttrs
	var zeroHdr SnapshotHeader

	count := 0
	for {
		ok, err := r.shards.Exists(count)
		if err != nil {
			return nil, zeroAttrs, zeroHdr, 0, &ShardReadError{Shard: count, Path: r.shards.Path(count), Err: err}
		}
		if !ok {
			break
		}
		count++
	}
	if count == 0 {
		return nil, zeroAttrs, zeroHdr, 0, &NoShardsFoundError{Path: r.shards.Path(0)}
	}

	cols := make([]*Column, count)
	attrs := make([]FieldAttrs, count)
	hdrs := make([]SnapshotHeader, count)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < count; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			col, a, h, err := r.readShard(table, field, i)
			if err != nil {
				return err
			}
			cols[i], attrs[i], hdrs[i] = col, a, h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, zeroAttrs, zeroHdr, 0, err
	}

	acc := cols[0]
	for i := 1; i < count; i++ {
		if attrs[i] != attrs[0] {
			return nil, zeroAttrs, zeroHdr, 0, &AttrsMismatchError{
				Table: table, Field: field, Shard: i, Want: attrs[0], Got: attrs[i],
			}
		}
		if err := acc.Append(cols[i]); err != nil {
			return nil, zeroAttrs, zeroHdr, 0, &ShardReadError{Shard: i, Path: r.shards.Path(i), Err: err}
		}
	}
	return acc, attrs[0], hdrs[0], count, nil
}

// readShard opens one shard, reads the header, the field attributes and
// the field data, and closes the shard before returning.
func (r *Reader) readShard(table Table, field string, index int) (*Column, FieldAttrs, SnapshotHeader, error) {
	var zeroAttrs FieldAttrs
	var zeroHdr SnapshotHeader

	sh, err := r.shards.Open(index)
	if err != nil {
		return nil, zeroAttrs, zeroHdr, &ShardReadError{Shard: index, Path: r.shards.Path(index), Err: err}
	}
	defer sh.Close()

	hdr, err := sh.Header()
	if err != nil {
		return nil, zeroAttrs, zeroHdr, &ShardReadError{Shard: index, Path: r.shards.Path(index), Err: err}
	}

	ds, err := sh.Dataset(table, field)
	if err != nil {
		var notFound *DatasetNotFoundError
		if errors.As(err, &notFound) {
			return nil, zeroAttrs, zeroHdr, err
		}
		return nil, zeroAttrs, zeroHdr, &ShardReadError{Shard: index, Path: r.shards.Path(index), Err: err}
	}

	fieldAttrs, err := ds.Attrs()
	if err != nil {
		return nil, zeroAttrs, zeroHdr, &ShardReadError{Shard: index, Path: r.shards.Path(index), Err: err}
	}

	col, err := ds.Column()
	if err != nil {
		return nil, zeroAttrs, zeroHdr, &ShardReadError{Shard: index, Path: r.shards.Path(index), Err: err}
	}

	if r.metrics != nil {
		r.metrics.ShardsRead.Inc()
	}
	level.Debug(r.logger).Log("msg", "read shard", "table", table, "field", field,
		"index", index, "rows", col.Rows())
	return col, fieldAttrs, hdr, nil
}

// applyUnits applies the requested corrections in place. Integer fields
// hold counts, indices and flags; they pass through untouched no matter
// what the flags say.
func applyUnits(col *Column, attrs FieldAttrs, hdr SnapshotHeader, opts ReadOptions) (physical, cgs bool, err error) {
	if col.Kind().IsInteger() {
		return false, false, nil
	}
	if opts.Physical {
		if err := col.Scale(attrs.PhysicalFactor(hdr)); err != nil {
			return false, false, err
		}
		physical = true
	}
	if opts.CGS {
		// Widen before the multiply: CGS magnitudes (masses in grams)
		// overflow float32.
		if err := col.Widen(); err != nil {
			return physical, false, err
		}
		if err := col.Scale(attrs.CGSConversionFactor); err != nil {
			return physical, false, err
		}
		cgs = true
	}
	return physical, cgs, nil
}
