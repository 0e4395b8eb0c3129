package dsapi

import (
	"strings"
)

// DatasetNameSeparator splits a dataset name into nested directory segments.
const DatasetNameSeparator = "."

// ValidateDatasetName checks that a name maps onto a nested directory path and back again.
//
// A valid name is one or more non-empty segments joined by ".".
// Segments may not contain path separators, and may not begin with "." or "_",
// since entries with those prefixes are hidden from listing.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- if the name is invalid
func ValidateDatasetName(name string) error {
	if name == "" {
		return ErrorInvalidArgument("dataset name cannot be empty")
	}
	for _, seg := range strings.Split(name, DatasetNameSeparator) {
		switch {
		case seg == "":
			return ErrorInvalidArgument("dataset name has an empty segment", [2]string{"name", name})
		case strings.ContainsAny(seg, `/\`):
			return ErrorInvalidArgument("dataset name cannot contain path separators", [2]string{"name", name})
		case strings.HasPrefix(seg, "_"):
			return ErrorInvalidArgument("dataset name segments cannot begin with '_'", [2]string{"name", name})
		}
	}
	return nil
}

// DatasetNameSegments splits a dataset name into its directory segments.
func DatasetNameSegments(name string) []string {
	return strings.Split(name, DatasetNameSeparator)
}

// DatasetNameFromSegments is the inverse of DatasetNameSegments.
func DatasetNameFromSegments(segments []string) string {
	return strings.Join(segments, DatasetNameSeparator)
}

// IsHiddenEntry reports whether a directory entry is skipped when discovering datasets.
func IsHiddenEntry(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}
