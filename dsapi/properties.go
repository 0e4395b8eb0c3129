package dsapi

import (
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/magiconair/properties"

	"github.com/warptools/dsmeta/pkg/partition"
)

// Reserved keys of a dataset's descriptor properties.
const (
	PropVersion             = "version"
	PropFormat              = "format"
	PropLocation            = "location"
	PropPartitionExpression = "partitionExpression"

	// PropFilesystemURI records the filesystem a dataset's metadata was written through.
	// It is an extended property rather than a reserved one: it shows up in Descriptor.Properties.
	PropFilesystemURI = "dsmeta.filesystem.uri"

	// MetadataVersion is the only layout version this build writes, and the newest it reads.
	MetadataVersion = "1"
)

var reservedKeys = []string{PropVersion, PropFormat, PropLocation, PropPartitionExpression}

// IsReservedProperty reports whether key is interpreted by the descriptor codec itself.
func IsReservedProperty(key string) bool {
	for _, k := range reservedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// EncodeProperties writes values in the key/value properties format, preceded by a comment line.
// Reserved keys come first in a fixed order, then the rest sorted, so output is stable.
//
// Errors:
//
//   - dsmeta-error-serialization -- when a value cannot be stored
//   - dsmeta-error-serialization -- when writing fails
func EncodeProperties(w io.Writer, comment string, values map[string]string) error {
	p := properties.NewProperties()
	p.DisableExpansion = true
	for _, key := range orderedKeys(values) {
		if _, _, err := p.Set(key, values[key]); err != nil {
			return ErrorSerialization(fmt.Sprintf("cannot store property %q", key), err)
		}
	}
	if comment != "" {
		comment = strings.ReplaceAll(comment, "\n", " ")
		if _, err := fmt.Fprintf(w, "#%s\n", comment); err != nil {
			return ErrorSerialization("cannot write properties", err)
		}
	}
	if _, err := p.Write(w, properties.UTF8); err != nil {
		return ErrorSerialization("cannot write properties", err)
	}
	return nil
}

// DecodeProperties reads the key/value properties format.
// Values are taken literally; ${...} references are not expanded.
//
// Errors:
//
//   - dsmeta-error-serialization -- when reading fails or the input is malformed
func DecodeProperties(r io.Reader) (map[string]string, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, ErrorSerialization("cannot read properties", err)
	}
	l := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := l.LoadBytes(buf)
	if err != nil {
		return nil, ErrorSerialization("cannot parse properties", err)
	}
	return p.Map(), nil
}

func orderedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for _, k := range reservedKeys {
		if _, ok := values[k]; ok {
			keys = append(keys, k)
		}
	}
	var rest []string
	for k := range values {
		if !IsReservedProperty(k) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// DescriptorProperties flattens everything but the schema into property values.
// The version is always written; location and partition expression only when set.
// Extended properties that collide with reserved keys are dropped.
func DescriptorProperties(d *Descriptor) map[string]string {
	values := map[string]string{
		PropVersion: MetadataVersion,
		PropFormat:  string(d.Format.OrDefault()),
	}
	if d.Location != nil {
		values[PropLocation] = d.Location.String()
	}
	if d.IsPartitioned() {
		values[PropPartitionExpression] = d.PartitionStrategy.Expression()
	}
	for k, v := range d.Properties {
		if IsReservedProperty(k) {
			continue
		}
		values[k] = v
	}
	return values
}

// DescriptorFromProperties rebuilds a descriptor from stored property values.
// The schema is left unset; it is stored separately.
// A missing version is read as the current one, and a missing format as DefaultFormat.
//
// Errors:
//
//   - dsmeta-error-datatoonew -- when the stored version is newer than MetadataVersion or unreadable
//   - dsmeta-error-partition-expression -- when the partition expression does not parse
//   - dsmeta-error-serialization -- when the location is not a valid URI
func DescriptorFromProperties(values map[string]string) (*Descriptor, error) {
	if v, ok := values[PropVersion]; ok && v != MetadataVersion {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		current, _ := strconv.Atoi(MetadataVersion)
		if err != nil || n > current {
			return nil, ErrorDataTooNew("cannot read descriptor", v)
		}
	}
	d := &Descriptor{Format: DefaultFormat}
	if f, ok := values[PropFormat]; ok && f != "" {
		d.Format = Format(f)
	}
	if loc, ok := values[PropLocation]; ok && loc != "" {
		u, err := url.Parse(loc)
		if err != nil {
			return nil, ErrorSerialization("cannot parse location", err)
		}
		d.Location = u
	}
	if expr, ok := values[PropPartitionExpression]; ok && expr != "" {
		strategy, err := partition.Parse(expr)
		if err != nil {
			return nil, err
		}
		d.PartitionStrategy = strategy
	}
	for k, v := range values {
		if IsReservedProperty(k) {
			continue
		}
		if d.Properties == nil {
			d.Properties = map[string]string{}
		}
		d.Properties[k] = v
	}
	return d, nil
}
