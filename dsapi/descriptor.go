package dsapi

import (
	"net/url"
	"sort"

	"github.com/warptools/dsmeta/pkg/partition"
)

// Format names the storage format of a dataset's data files.
type Format string

const (
	FormatAvro    Format = "avro"
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"

	DefaultFormat = FormatAvro
)

// KnownFormats lists the formats the tooling knows by name.
// Other values are carried through storage untouched.
var KnownFormats = []Format{FormatAvro, FormatParquet, FormatCSV}

// OrDefault returns the format, or DefaultFormat when unset.
func (f Format) OrDefault() Format {
	if f == "" {
		return DefaultFormat
	}
	return f
}

// IsKnown reports whether the format is one of KnownFormats.
func (f Format) IsKnown() bool {
	for _, k := range KnownFormats {
		if f == k {
			return true
		}
	}
	return false
}

// Descriptor is everything stored about a dataset.
//
// Schema is required for create and update.
// Location is optional on input; providers fill it in on output.
// Properties holds extended key/value pairs; reserved descriptor keys never appear in it.
//
// Descriptors are treated as values: the With* methods return modified copies.
type Descriptor struct {
	Schema            *Schema
	SchemaLocation    *url.URL
	Format            Format
	PartitionStrategy *partition.Strategy
	Location          *url.URL
	Properties        map[string]string
}

// Clone returns a copy that shares nothing mutable with the original.
// The schema and partition strategy are immutable and stay shared.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	c := *d
	c.SchemaLocation = cloneURL(d.SchemaLocation)
	c.Location = cloneURL(d.Location)
	if d.Properties != nil {
		c.Properties = make(map[string]string, len(d.Properties))
		for k, v := range d.Properties {
			c.Properties[k] = v
		}
	}
	return &c
}

// IsPartitioned reports whether the descriptor carries a partition strategy.
func (d *Descriptor) IsPartitioned() bool {
	return d.PartitionStrategy != nil
}

// WithLocation returns a copy with the given location.
func (d *Descriptor) WithLocation(location *url.URL) *Descriptor {
	c := d.Clone()
	c.Location = cloneURL(location)
	return c
}

// WithProperty returns a copy with one extended property set.
func (d *Descriptor) WithProperty(key, value string) *Descriptor {
	c := d.Clone()
	if c.Properties == nil {
		c.Properties = map[string]string{}
	}
	c.Properties[key] = value
	return c
}

// Property looks up an extended property.
func (d *Descriptor) Property(key string) (string, bool) {
	v, ok := d.Properties[key]
	return v, ok
}

// PropertyKeys returns the extended property keys in sorted order.
func (d *Descriptor) PropertyKeys() []string {
	keys := make([]string, 0, len(d.Properties))
	for k := range d.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks what create and update require of a descriptor.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- when the descriptor or its schema is missing
func (d *Descriptor) Validate() error {
	if d == nil {
		return ErrorInvalidArgument("descriptor cannot be nil")
	}
	if d.Schema == nil {
		return ErrorInvalidArgument("descriptor schema cannot be nil")
	}
	return nil
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	c := *u
	if u.User != nil {
		user := *u.User
		c.User = &user
	}
	return &c
}
