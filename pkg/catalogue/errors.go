package catalogue

import (
	"fmt"
)

// InvalidTableError is returned when the requested table is not one of
// the SUBFIND output tables. No I/O has happened when it is returned.
type InvalidTableError struct {
	Table string
}

func (e *InvalidTableError) Error() string {
	return fmt.Sprintf("invalid table %q, must be %q or %q", e.Table, TableFOF, TableSubhalo)
}

// DatasetNotFoundError is returned when a shard opened fine but does not
// contain the requested dataset. This is never treated as end of the
// shard sequence: a shard with the dataset missing means the field path
// is wrong, not that the catalogue ended.
type DatasetNotFoundError struct {
	Table Table
	Field string
	Shard int
}

func (e *DatasetNotFoundError) Error() string {
	return fmt.Sprintf("dataset %s/%s not found in shard %d", e.Table, e.Field, e.Shard)
}

// NoShardsFoundError is returned when shard 0 does not exist, which
// almost always means a misconfigured simulation/model/tag or base
// directory.
type NoShardsFoundError struct {
	Path string
}

func (e *NoShardsFoundError) Error() string {
	return fmt.Sprintf("no catalogue shards found, first shard missing at %s", e.Path)
}

// ShardReadError is returned for any shard failure that is not a plain
// "file does not exist": permission problems, truncated or corrupt
// files, stat failures. These abort the whole read rather than silently
// truncating the concatenated catalogue.
type ShardReadError struct {
	Shard int
	Path  string
	Err   error
}

func (e *ShardReadError) Error() string {
	return fmt.Sprintf("reading shard %d (%s): %v", e.Shard, e.Path, e.Err)
}

func (e *ShardReadError) Unwrap() error { return e.Err }

// AttrsMismatchError is returned when a shard carries field attributes
// that differ from shard 0's. The shards then do not form one logical
// dataset and scaling part of the column with shard 0's attributes would
// silently corrupt it.
type AttrsMismatchError struct {
	Table Table
	Field string
	Shard int
	Want  FieldAttrs
	Got   FieldAttrs
}

func (e *AttrsMismatchError) Error() string {
	return fmt.Sprintf("shard %d of %s/%s has conversion attributes %+v, shard 0 has %+v",
		e.Shard, e.Table, e.Field, e.Got, e.Want)
}
