package catalogue

// Table names one of the two SUBFIND output tables.
type Table string

const (
	// TableFOF holds halo-level quantities from the friends-of-friends
	// group finder.
	TableFOF Table = "FOF"

	// TableSubhalo holds galaxy-level quantities for bound substructure.
	TableSubhalo Table = "Subhalo"
)

// ParseTable validates a table name. It is the only table check in the
// read path and runs before any I/O.
func ParseTable(s string) (Table, error) {
	switch Table(s) {
	case TableFOF:
		return TableFOF, nil
	case TableSubhalo:
		return TableSubhalo, nil
	default:
		return "", &InvalidTableError{Table: s}
	}
}

// ShardSet provides access to the numbered shard files of one snapshot's
// SUBFIND output. Shards are numbered from 0 with no gaps; the set's
// length is not recorded anywhere, so the reader probes indices until
// Exists reports false.
type ShardSet interface {
	// Exists reports whether the shard at the given index is present.
	// Only a genuine "no such file" maps to (false, nil); any other
	// failure must be returned as an error so a flaky filesystem cannot
	// silently truncate the catalogue.
	Exists(index int) (bool, error)

	// Open opens the shard at the given index for reading. The caller
	// closes it before opening the next.
	Open(index int) (Shard, error)

	// Path returns the path (or other diagnostic identifier) of the
	// shard at the given index, for error reporting.
	Path(index int) string
}

// Shard is one open shard file.
type Shard interface {
	// Header reads the snapshot-level cosmology attributes.
	Header() (SnapshotHeader, error)

	// Dataset locates the slash-delimited field path under the table
	// group. A missing dataset is reported via DatasetNotFoundError.
	Dataset(table Table, field string) (Dataset, error)

	Close() error
}

// Dataset is one field within one shard.
type Dataset interface {
	// Attrs reads the field's unit-conversion attributes.
	Attrs() (FieldAttrs, error)

	// Column materializes the shard's slice of the dataset in the
	// on-disk element type.
	Column() (*Column, error)
}
