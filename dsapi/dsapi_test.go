package dsapi

import (
	"bytes"
	"net/url"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"

	"github.com/warptools/dsmeta/pkg/partition"
)

const userSchema = `{
	"type": "record",
	"name": "User",
	"namespace": "com.example",
	"fields": [
		{"name": "username", "type": "string"},
		{"name": "created_at", "type": "long"}
	]
}`

func TestValidateDatasetName(t *testing.T) {
	for _, name := range []string{"a", "a.b", "a.b.c", "events-2023", "x_y"} {
		qt.Check(t, ValidateDatasetName(name), qt.IsNil, qt.Commentf("name %q", name))
	}
	for _, name := range []string{"", ".a", "a.", "a..b", "a/b", `a\b`, "_a", "a._b"} {
		err := ValidateDatasetName(name)
		qt.Check(t, serum.Code(err), qt.Equals, ECodeInvalidArgument, qt.Commentf("name %q", name))
	}
}

func TestSchema(t *testing.T) {
	t.Run("invalid", func(t *testing.T) {
		_, err := ParseSchema(`{"type": "record"}`)
		qt.Assert(t, serum.Code(err), qt.Equals, ECodeSchemaInvalid)
	})
	t.Run("canonical text reads back", func(t *testing.T) {
		s := MustParseSchema(userSchema)
		text, err := s.CanonicalText()
		qt.Assert(t, err, qt.IsNil)
		again, err := ParseSchema(text)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, again.Equal(s), qt.IsTrue)
		qt.Check(t, again.Fingerprint(), qt.Equals, s.Fingerprint())
	})
	t.Run("different schemas differ", func(t *testing.T) {
		a := MustParseSchema(userSchema)
		b := MustParseSchema(strings.Replace(userSchema, `"long"`, `"int"`, 1))
		qt.Check(t, a.Equal(b), qt.IsFalse)
	})
}

func TestDescriptorClone(t *testing.T) {
	loc, _ := url.Parse("file:///data/users")
	d := &Descriptor{
		Schema:     MustParseSchema(userSchema),
		Location:   loc,
		Properties: map[string]string{"owner": "ops"},
	}
	c := d.WithProperty("owner", "dev").WithLocation(nil)
	qt.Check(t, d.Properties["owner"], qt.Equals, "ops")
	qt.Check(t, d.Location.String(), qt.Equals, "file:///data/users")
	qt.Check(t, c.Properties["owner"], qt.Equals, "dev")
	qt.Check(t, c.Location, qt.IsNil)
	qt.Check(t, c.Schema, qt.Equals, d.Schema)
}

func TestDescriptorValidate(t *testing.T) {
	var none *Descriptor
	qt.Check(t, serum.Code(none.Validate()), qt.Equals, ECodeInvalidArgument)
	qt.Check(t, serum.Code((&Descriptor{}).Validate()), qt.Equals, ECodeInvalidArgument)
	qt.Check(t, (&Descriptor{Schema: MustParseSchema(userSchema)}).Validate(), qt.IsNil)
}

func TestPropertiesCodec(t *testing.T) {
	values := map[string]string{
		PropVersion:       "1",
		PropFormat:        "parquet",
		PropLocation:      "s3://bucket/data/users",
		PropFilesystemURI: "s3://bucket",
		"note":            "spaces and = signs: ${not.expanded}",
	}
	var buf bytes.Buffer
	qt.Assert(t, EncodeProperties(&buf, "Dataset descriptor for users", values), qt.IsNil)
	qt.Check(t, strings.HasPrefix(buf.String(), "#Dataset descriptor for users\n"), qt.IsTrue)
	qt.Check(t, strings.Index(buf.String(), "version") < strings.Index(buf.String(), "note"), qt.IsTrue)

	decoded, err := DecodeProperties(&buf)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, decoded, qt.DeepEquals, values)
}

func TestDescriptorProperties(t *testing.T) {
	loc, _ := url.Parse("file:///data/users")
	d := &Descriptor{
		Schema:            MustParseSchema(userSchema),
		Format:            FormatParquet,
		Location:          loc,
		PartitionStrategy: partition.MustParse(`[hash("username", "username_part", 16)]`),
		Properties:        map[string]string{"owner": "ops", PropFormat: "csv"},
	}
	values := DescriptorProperties(d)
	qt.Check(t, values, qt.DeepEquals, map[string]string{
		PropVersion:             "1",
		PropFormat:              "parquet",
		PropLocation:            "file:///data/users",
		PropPartitionExpression: `[hash("username", "username_part", 16)]`,
		"owner":                 "ops",
	})

	back, err := DescriptorFromProperties(values)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, back.Format, qt.Equals, FormatParquet)
	qt.Check(t, back.Location.String(), qt.Equals, "file:///data/users")
	qt.Check(t, back.PartitionStrategy.Equal(d.PartitionStrategy), qt.IsTrue)
	qt.Check(t, back.Properties, qt.DeepEquals, map[string]string{"owner": "ops"})
	qt.Check(t, back.Schema, qt.IsNil)
}

func TestDescriptorFromProperties(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		d, err := DescriptorFromProperties(map[string]string{})
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, d.Format, qt.Equals, FormatAvro)
		qt.Check(t, d.Location, qt.IsNil)
		qt.Check(t, d.IsPartitioned(), qt.IsFalse)
	})
	t.Run("version too new", func(t *testing.T) {
		_, err := DescriptorFromProperties(map[string]string{PropVersion: "2"})
		qt.Check(t, serum.Code(err), qt.Equals, ECodeDataTooNew)
	})
	t.Run("version unreadable", func(t *testing.T) {
		_, err := DescriptorFromProperties(map[string]string{PropVersion: "two"})
		qt.Check(t, serum.Code(err), qt.Equals, ECodeDataTooNew)
	})
	t.Run("bad partition expression", func(t *testing.T) {
		_, err := DescriptorFromProperties(map[string]string{PropPartitionExpression: "[nope"})
		qt.Check(t, serum.Code(err), qt.Equals, partition.ECodeExpression)
	})
}

func TestDescriptorDocument(t *testing.T) {
	input := `{
		"name": "users",
		"schema": "{\"type\": \"record\", \"name\": \"User\", \"fields\": [{\"name\": \"id\", \"type\": \"long\"}]}",
		"format": "csv",
		"partitionExpression": "[hash(\"id\", 4)]",
		"properties": {"owner": "ops", "version": "9"}
	}`
	doc, err := ParseDescriptorDocument([]byte(input))
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, *doc.Name, qt.Equals, "users")

	d, err := doc.Descriptor()
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, d.Format, qt.Equals, FormatCSV)
	qt.Check(t, d.Location, qt.IsNil)
	qt.Check(t, d.PartitionStrategy.Expression(), qt.Equals, `[hash("id", "id_hash", 4)]`)
	qt.Check(t, d.Properties, qt.DeepEquals, map[string]string{"owner": "ops"})

	out, err := DocumentFromDescriptor("users", d)
	qt.Assert(t, err, qt.IsNil)
	encoded, err := EncodeDescriptorDocument(out)
	qt.Assert(t, err, qt.IsNil)
	again, err := ParseDescriptorDocument(encoded)
	qt.Assert(t, err, qt.IsNil)
	d2, err := again.Descriptor()
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, d2.Schema.Equal(d.Schema), qt.IsTrue)
	qt.Check(t, d2.PartitionStrategy.Equal(d.PartitionStrategy), qt.IsTrue)
}

func TestDescriptorDocumentRejects(t *testing.T) {
	_, err := ParseDescriptorDocument([]byte(`{"format": "csv"}`))
	qt.Check(t, serum.Code(err), qt.Equals, ECodeSerialization)

	doc, err := ParseDescriptorDocument([]byte(`{"schema": "not json"}`))
	qt.Assert(t, err, qt.IsNil)
	_, err = doc.Descriptor()
	qt.Check(t, serum.Code(err), qt.Equals, ECodeSchemaInvalid)
}
