package dsapi

import (
	"net/url"
	"sort"

	"github.com/ipld/go-ipld-prime"
	"github.com/ipld/go-ipld-prime/codec/json"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/node/bindnode"

	"github.com/warptools/dsmeta/pkg/partition"
)

type StringMap struct {
	Keys   []string
	Values map[string]string
}

// NewStringMap builds a StringMap with sorted keys.  A nil or empty map gives nil.
func NewStringMap(m map[string]string) *StringMap {
	if len(m) == 0 {
		return nil
	}
	sm := &StringMap{Values: make(map[string]string, len(m))}
	for k, v := range m {
		sm.Keys = append(sm.Keys, k)
		sm.Values[k] = v
	}
	sort.Strings(sm.Keys)
	return sm
}

// DescriptorDocument is the single-file JSON form of a descriptor.
// The schema is carried inline as text.
type DescriptorDocument struct {
	Name                *string
	Schema              string
	Format              *string
	Location            *string
	PartitionExpression *string
	Properties          *StringMap
}

type DatasetList struct {
	Datasets []string
}

type ExistsResult struct {
	Name   string
	Exists bool
}

type DeleteResult struct {
	Name    string
	Deleted bool
}

type CheckProblem struct {
	Name    string
	Path    string
	Missing []string
}

type CheckReport struct {
	Problems []CheckProblem
}

// DocumentFromDescriptor renders a descriptor as a document.
// The name is optional; pass "" to leave it out.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- when the descriptor has no schema
//   - dsmeta-error-serialization -- when the schema cannot be rendered
func DocumentFromDescriptor(name string, d *Descriptor) (DescriptorDocument, error) {
	if err := d.Validate(); err != nil {
		return DescriptorDocument{}, err
	}
	text, err := d.Schema.CanonicalText()
	if err != nil {
		return DescriptorDocument{}, err
	}
	doc := DescriptorDocument{
		Schema:     text,
		Format:     strPtr(string(d.Format.OrDefault())),
		Properties: NewStringMap(d.Properties),
	}
	if name != "" {
		doc.Name = strPtr(name)
	}
	if d.Location != nil {
		doc.Location = strPtr(d.Location.String())
	}
	if d.IsPartitioned() {
		doc.PartitionExpression = strPtr(d.PartitionStrategy.Expression())
	}
	return doc, nil
}

// Descriptor converts the document back into a descriptor, parsing the schema and partition expression.
//
// Errors:
//
//   - dsmeta-error-schema-invalid -- when the schema does not parse
//   - dsmeta-error-partition-expression -- when the partition expression does not parse
//   - dsmeta-error-invalid-argument -- when the location is not a valid URI
func (doc DescriptorDocument) Descriptor() (*Descriptor, error) {
	schema, err := ParseSchema(doc.Schema)
	if err != nil {
		return nil, err
	}
	d := &Descriptor{Schema: schema, Format: DefaultFormat}
	if doc.Format != nil && *doc.Format != "" {
		d.Format = Format(*doc.Format)
	}
	if doc.Location != nil && *doc.Location != "" {
		u, err := url.Parse(*doc.Location)
		if err != nil {
			return nil, ErrorInvalidArgument("location is not a valid URI", [2]string{"location", *doc.Location})
		}
		d.Location = u
	}
	if doc.PartitionExpression != nil && *doc.PartitionExpression != "" {
		strategy, err := partition.Parse(*doc.PartitionExpression)
		if err != nil {
			return nil, err
		}
		d.PartitionStrategy = strategy
	}
	if doc.Properties != nil {
		for _, k := range doc.Properties.Keys {
			if IsReservedProperty(k) {
				continue
			}
			if d.Properties == nil {
				d.Properties = map[string]string{}
			}
			d.Properties[k] = doc.Properties.Values[k]
		}
	}
	return d, nil
}

// ParseDescriptorDocument decodes a document from JSON.
//
// Errors:
//
//   - dsmeta-error-serialization -- when the data does not match the document schema
func ParseDescriptorDocument(data []byte) (DescriptorDocument, error) {
	doc := DescriptorDocument{}
	_, err := ipld.Unmarshal(data, json.Decode, &doc, TypeSystem.TypeByName("DescriptorDocument"))
	if err != nil {
		return DescriptorDocument{}, ErrorSerialization("cannot deserialize descriptor document", err)
	}
	return doc, nil
}

// EncodeDescriptorDocument encodes a document as JSON.
//
// Errors:
//
//   - dsmeta-error-serialization -- when encoding fails
func EncodeDescriptorDocument(doc DescriptorDocument) ([]byte, error) {
	data, err := ipld.Marshal(json.Encode, &doc, TypeSystem.TypeByName("DescriptorDocument"))
	if err != nil {
		return nil, ErrorSerialization("cannot serialize descriptor document", err)
	}
	return data, nil
}

// Node wraps one of this package's document values as an IPLD node of the named type,
// for printing through an IPLD codec.
func Node(ptr interface{}, typeName string) datamodel.Node {
	return bindnode.Wrap(ptr, TypeSystem.TypeByName(typeName)).Representation()
}

func strPtr(s string) *string {
	return &s
}
