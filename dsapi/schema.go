package dsapi

import (
	"bytes"
	"encoding/hex"
	"encoding/json"

	"github.com/hamba/avro/v2"
)

// Schema is a parsed record schema.
// The metadata layer only stores and compares schemas; it never interprets records.
type Schema struct {
	avro avro.Schema
}

// ParseSchema parses a JSON schema document.
// Each parse uses its own name cache, so reusing a record name with a new definition is fine.
//
// Errors:
//
//   - dsmeta-error-schema-invalid -- when the text is not a valid schema
func ParseSchema(text string) (*Schema, error) {
	s, err := avro.ParseWithCache(text, "", &avro.SchemaCache{})
	if err != nil {
		return nil, ErrorSchemaInvalid(err)
	}
	return &Schema{avro: s}, nil
}

// MustParseSchema is ParseSchema, but panics on error.
func MustParseSchema(text string) *Schema {
	s, err := ParseSchema(text)
	if err != nil {
		panic(err)
	}
	return s
}

// Avro exposes the underlying schema for callers that read or write records.
func (s *Schema) Avro() avro.Schema {
	return s.avro
}

// CanonicalText is the full schema as indented JSON.
// This is what gets written to a dataset's schema file.
//
// Errors:
//
//   - dsmeta-error-serialization -- when the schema cannot be rendered
func (s *Schema) CanonicalText() (string, error) {
	raw, err := json.Marshal(s.avro)
	if err != nil {
		return "", ErrorSerialization("cannot render schema", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return "", ErrorSerialization("cannot render schema", err)
	}
	buf.WriteByte('\n')
	return buf.String(), nil
}

// Fingerprint is the hex SHA-256 of the schema's parsing canonical form.
// Two schemas with equal fingerprints describe the same record layout.
func (s *Schema) Fingerprint() string {
	fp := s.avro.Fingerprint()
	return hex.EncodeToString(fp[:])
}

// Equal compares schemas by fingerprint.
func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Fingerprint() == other.Fingerprint()
}

func (s *Schema) String() string {
	return s.avro.String()
}
