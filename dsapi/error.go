package dsapi

import (
	"github.com/serum-errors/go-serum"
)

const (
	ECodeInvalidArgument     = "dsmeta-error-invalid-argument"
	ECodeNoSuchDataset       = "dsmeta-error-no-such-dataset"
	ECodeAlreadyExists       = "dsmeta-error-already-exists"
	ECodeMetadataAccess      = "dsmeta-error-metadata-access"
	ECodeSchemaInvalid       = "dsmeta-error-schema-invalid"
	ECodePartitionExpression = "dsmeta-error-partition-expression"
	ECodeDataTooNew          = "dsmeta-error-datatoonew"
	ECodeSerialization       = "dsmeta-error-serialization"
	ECodeConfig              = "dsmeta-error-config"
	ECodeInternal            = "dsmeta-error-internal"
	ECodeUnknown             = "dsmeta-error-unknown"
)

// ErrorUnknown is returned when an unknown error occurs
//
// Errors:
//
//   - dsmeta-error-unknown --
func ErrorUnknown(msgTmpl string, cause error) error {
	return serum.Errorf(ECodeUnknown, "%s: %w", msgTmpl, cause)
}

// ErrorInternal is for errors an end user is not expected to be able to do anything about.
//
// Errors:
//
//   - dsmeta-error-internal --
func ErrorInternal(msgTmpl string, cause error) error {
	return serum.Errorf(ECodeInternal, "%s: %w", msgTmpl, cause)
}

// ErrorInvalidArgument is returned when a caller supplies a value that can never work:
// a nil descriptor, a malformed dataset name, a location on a foreign filesystem.
// The caller must format the message string.
//
// Errors:
//
//   - dsmeta-error-invalid-argument --
func ErrorInvalidArgument(message string, deets ...[2]string) error {
	opts := make([]serum.WithConstruction, 0, len(deets)+1)
	for _, d := range deets {
		opts = append(opts, serum.WithDetail(d[0], d[1]))
	}
	opts = append(opts, serum.WithMessageLiteral(message))
	return serum.Error(ECodeInvalidArgument, opts...)
}

// ErrorNoSuchDataset is returned when the metadata directory for a dataset is absent.
//
// Errors:
//
//   - dsmeta-error-no-such-dataset --
func ErrorNoSuchDataset(name string, path string) error {
	return serum.Error(ECodeNoSuchDataset,
		serum.WithMessageTemplate("no such dataset {{name|q}}: missing metadata directory {{path|q}}"),
		serum.WithDetail("name", name),
		serum.WithDetail("path", path),
	)
}

// ErrorDatasetAlreadyExists is returned when creating a dataset whose metadata directory is already present.
//
// Errors:
//
//   - dsmeta-error-already-exists --
func ErrorDatasetAlreadyExists(name string, path string) error {
	return serum.Error(ECodeAlreadyExists,
		serum.WithMessageTemplate("dataset {{name|q}} already exists: metadata directory {{path|q}} is present"),
		serum.WithDetail("name", name),
		serum.WithDetail("path", path),
	)
}

// ErrorMetadataAccess wraps any failure of the underlying storage while reading,
// writing, listing, or deleting dataset metadata.
// The name may be empty for operations that do not concern a single dataset.
//
// Errors:
//
//   - dsmeta-error-metadata-access --
func ErrorMetadataAccess(context string, name string, path string, cause error) error {
	result := serum.Errorf(ECodeMetadataAccess,
		"metadata access error: %s: %w", context, cause)
	addDetails(result, [][2]string{
		{"context", context},
		{"dataset", name},
		{"path", path},
	})
	return result
}

// ErrorSchemaInvalid is returned when a schema document cannot be parsed.
//
// Errors:
//
//   - dsmeta-error-schema-invalid --
func ErrorSchemaInvalid(cause error) error {
	return serum.Error(ECodeSchemaInvalid,
		serum.WithMessageLiteral("invalid schema"),
		serum.WithCause(cause),
	)
}

// ErrorDataTooNew is returned when stored metadata declares a layout version this build does not understand.
//
// Errors:
//
//   - dsmeta-error-datatoonew --
func ErrorDataTooNew(context string, version string) error {
	return serum.Error(ECodeDataTooNew,
		serum.WithMessageTemplate("{{context}}: metadata version {{version|q}} is newer than supported version "+MetadataVersion),
		serum.WithDetail("context", context),
		serum.WithDetail("version", version),
	)
}

// ErrorSerialization is returned when a serialization or deserialization error occurs
//
// Errors:
//
//   - dsmeta-error-serialization --
func ErrorSerialization(context string, cause error) error {
	result := serum.Errorf(ECodeSerialization,
		"serialization error: %s: %w", context, cause)
	addDetails(result, [][2]string{
		{"context", context},
	})
	return result
}

// ErrorConfig is returned when a configuration value cannot be used.
//
// Errors:
//
//   - dsmeta-error-config --
func ErrorConfig(key string, reason string) error {
	return serum.Error(ECodeConfig,
		serum.WithMessageTemplate("invalid configuration for {{key}}: {{reason}}"),
		serum.WithDetail("key", key),
		serum.WithDetail("reason", reason),
	)
}

// addDetails is a helper method to get around the fact that doing a type coercion within
// the serum error constructor is a little unwieldy.
func addDetails(err error, details [][2]string) {
	s := err.(*serum.ErrorValue)
	s.Data.Details = append(s.Data.Details, details...)
}
