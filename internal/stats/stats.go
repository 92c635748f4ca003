// Package stats turns raw collStats and dbStats replies into ordered,
// display-ready report rows.
package stats

import (
	"strconv"

	units "github.com/docker/go-units"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/peternagy/mongobrowse/internal/bsonutil"
)

// Kind selects how a row is formatted.
type Kind int

const (
	Count Kind = iota
	ByteSize
	Boolean
	Text
)

func (k Kind) String() string {
	switch k {
	case Count:
		return "count"
	case ByteSize:
		return "byteSize"
	case Boolean:
		return "boolean"
	default:
		return "text"
	}
}

// Row is one line of a stats report.
type Row struct {
	Key     string      `json:"key"`
	Kind    Kind        `json:"kind"`
	Raw     interface{} `json:"raw"`
	Display string      `json:"display"`
}

type field struct {
	key  string
	kind Kind
	// nested per-name sizes, expanded into one row each
	flatten bool
}

var collectionFields = []field{
	{key: "ns", kind: Text},
	{key: "count", kind: Count},
	{key: "size", kind: ByteSize},
	{key: "avgObjSize", kind: ByteSize},
	{key: "storageSize", kind: ByteSize},
	{key: "capped", kind: Boolean},
	{key: "nindexes", kind: Count},
	{key: "totalIndexSize", kind: ByteSize},
	{key: "indexSizes", kind: ByteSize, flatten: true},
}

var databaseFields = []field{
	{key: "db", kind: Text},
	{key: "collections", kind: Count},
	{key: "views", kind: Count},
	{key: "objects", kind: Count},
	{key: "avgObjSize", kind: ByteSize},
	{key: "dataSize", kind: ByteSize},
	{key: "storageSize", kind: ByteSize},
	{key: "indexes", kind: Count},
	{key: "indexSize", kind: ByteSize},
	{key: "fsUsedSize", kind: ByteSize},
	{key: "fsTotalSize", kind: ByteSize},
}

// AdaptCollectionStats maps a collStats reply to report rows.
func AdaptCollectionStats(raw bson.D) []Row {
	return adapt(raw, collectionFields)
}

// AdaptDatabaseStats maps a dbStats reply to report rows.
func AdaptDatabaseStats(raw bson.D) []Row {
	return adapt(raw, databaseFields)
}

// adapt emits one row per field in field order. Missing numbers read as 0,
// missing booleans as false, missing text as "".
func adapt(raw bson.D, fields []field) []Row {
	rows := make([]Row, 0, len(fields))
	for _, f := range fields {
		if f.flatten {
			rows = append(rows, Row{Key: f.key, Kind: f.kind})
			nested, _ := bsonutil.DocFromDoc(raw, f.key)
			for _, e := range nested {
				rows = append(rows, newRow(e.Key, f.kind, e.Value))
			}
			continue
		}
		v, _ := bsonutil.Lookup(raw, f.key)
		rows = append(rows, newRow(f.key, f.kind, v))
	}
	return rows
}

func newRow(key string, kind Kind, v interface{}) Row {
	switch kind {
	case Count:
		if !bsonutil.IsNumber(v) {
			v = int64(0)
		}
		return Row{Key: key, Kind: kind, Raw: v, Display: bsonutil.FormatNumber(v)}
	case ByteSize:
		if !bsonutil.IsNumber(v) {
			v = int64(0)
		}
		return Row{Key: key, Kind: kind, Raw: v, Display: FormatBytes(bsonutil.ToFloat64(v))}
	case Boolean:
		b := bsonutil.ToBool(v)
		return Row{Key: key, Kind: kind, Raw: b, Display: strconv.FormatBool(b)}
	default:
		s := bsonutil.ToString(v)
		return Row{Key: key, Kind: kind, Raw: s, Display: s}
	}
}

var byteUnits = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}

// FormatBytes renders a size with binary multiples: 2048 is "2 KB".
func FormatBytes(size float64) string {
	return units.CustomSize("%.4g %s", size, 1024.0, byteUnits)
}
