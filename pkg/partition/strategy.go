/*
Package partition describes how the records of a dataset are split into partitions.

A Strategy is an ordered list of field partitioners.
Each partitioner derives one partition value from one source field of a record.
Strategies travel through storage as a textual expression, for example:

	[hash("username", "username_part", 16), year("created_at")]

Parse and Expression convert between the two forms, and
Expression(Parse(x)) describes the same strategy as x.
*/
package partition

import (
	"fmt"
	"strings"

	"github.com/serum-errors/go-serum"
)

// ECodeExpression is the error code for partition expressions that cannot be parsed or are inconsistent.
const ECodeExpression = "dsmeta-error-partition-expression"

// Kind names the function a FieldPartitioner applies to its source value.
type Kind string

const (
	KindIdentity Kind = "identity"
	KindHash     Kind = "hash"
	KindYear     Kind = "year"
	KindMonth    Kind = "month"
	KindDay      Kind = "day"
	KindHour     Kind = "hour"
	KindMinute   Kind = "minute"
)

var knownKinds = map[Kind]struct{}{
	KindIdentity: {},
	KindHash:     {},
	KindYear:     {},
	KindMonth:    {},
	KindDay:      {},
	KindHour:     {},
	KindMinute:   {},
}

// IsTime reports whether the kind extracts a calendar component from a timestamp.
func (k Kind) IsTime() bool {
	switch k {
	case KindYear, KindMonth, KindDay, KindHour, KindMinute:
		return true
	}
	return false
}

// FieldPartitioner derives the partition value Name from the record field Source.
// Buckets is the cardinality hint: required for hash, optional for identity, unused otherwise.
type FieldPartitioner struct {
	Kind    Kind
	Source  string
	Name    string
	Buckets int
}

func (fp FieldPartitioner) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s(%s, %s", fp.Kind, quote(fp.Source), quote(fp.Name))
	if fp.Buckets > 0 {
		fmt.Fprintf(&sb, ", %d", fp.Buckets)
	}
	sb.WriteString(")")
	return sb.String()
}

// defaultName is the partition name used when an expression gives only a source field.
func defaultName(kind Kind, source string) string {
	if kind == KindIdentity {
		return source
	}
	return source + "_" + string(kind)
}

// Strategy is an ordered, non-empty list of field partitioners with unique names.
// Strategies are immutable once built.
type Strategy struct {
	fields []FieldPartitioner
}

// New builds a Strategy from the given partitioners, in order.
//
// Errors:
//
//   - dsmeta-error-partition-expression -- when there are no partitioners
//   - dsmeta-error-partition-expression -- when a partitioner is malformed
//   - dsmeta-error-partition-expression -- when two partitioners share a name
func New(fields ...FieldPartitioner) (*Strategy, error) {
	if len(fields) == 0 {
		return nil, errorExpression("", "a partition strategy needs at least one field partitioner")
	}
	seen := make(map[string]struct{}, len(fields))
	for _, fp := range fields {
		if err := validate(fp); err != nil {
			return nil, err
		}
		if _, dup := seen[fp.Name]; dup {
			return nil, errorExpression(fp.String(), fmt.Sprintf("duplicate partition name %q", fp.Name))
		}
		seen[fp.Name] = struct{}{}
	}
	return &Strategy{fields: append([]FieldPartitioner(nil), fields...)}, nil
}

// MustNew is New, but panics on error.  Useful for tests and static strategies.
func MustNew(fields ...FieldPartitioner) *Strategy {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func validate(fp FieldPartitioner) error {
	if _, ok := knownKinds[fp.Kind]; !ok {
		return errorExpression(string(fp.Kind), fmt.Sprintf("unknown partitioner %q", fp.Kind))
	}
	if fp.Source == "" {
		return errorExpression(fp.String(), "source field cannot be empty")
	}
	if fp.Name == "" {
		return errorExpression(fp.String(), "partition name cannot be empty")
	}
	switch {
	case fp.Buckets < 0:
		return errorExpression(fp.String(), "bucket count cannot be negative")
	case fp.Kind == KindHash && fp.Buckets == 0:
		return errorExpression(fp.String(), "hash partitioner requires a bucket count")
	case fp.Kind.IsTime() && fp.Buckets != 0:
		return errorExpression(fp.String(), fmt.Sprintf("%s partitioner does not take a bucket count", fp.Kind))
	}
	return nil
}

// Fields returns a copy of the partitioners in order.
func (s *Strategy) Fields() []FieldPartitioner {
	return append([]FieldPartitioner(nil), s.fields...)
}

// Cardinality is the product of all known bucket counts, or zero when any partitioner's cardinality is unknown.
func (s *Strategy) Cardinality() int {
	total := 1
	for _, fp := range s.fields {
		if fp.Buckets == 0 {
			return 0
		}
		total *= fp.Buckets
	}
	return total
}

// Equal reports whether both strategies have the same partitioners in the same order.
func (s *Strategy) Equal(other *Strategy) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.fields) != len(other.fields) {
		return false
	}
	for i := range s.fields {
		if s.fields[i] != other.fields[i] {
			return false
		}
	}
	return true
}

// Expression renders the strategy in the textual form accepted by Parse.
// Every argument is written out, so the result does not depend on defaults.
func (s *Strategy) Expression() string {
	parts := make([]string, len(s.fields))
	for i, fp := range s.fields {
		parts[i] = fp.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (s *Strategy) String() string {
	return s.Expression()
}

// Identity partitions by the source value itself.  Buckets may be zero when unknown.
func Identity(source, name string, buckets int) FieldPartitioner {
	return FieldPartitioner{Kind: KindIdentity, Source: source, Name: name, Buckets: buckets}
}

// Hash partitions by the source value's hash modulo buckets.
func Hash(source, name string, buckets int) FieldPartitioner {
	return FieldPartitioner{Kind: KindHash, Source: source, Name: name, Buckets: buckets}
}

// Time partitions by one calendar component of a timestamp source field.
// An empty name selects the default of source + "_" + kind.
func Time(kind Kind, source, name string) FieldPartitioner {
	if name == "" {
		name = defaultName(kind, source)
	}
	return FieldPartitioner{Kind: kind, Source: source, Name: name}
}

// errorExpression
//
// Errors:
//
//   - dsmeta-error-partition-expression --
func errorExpression(expr string, reason string) error {
	return serum.Error(ECodeExpression,
		serum.WithMessageTemplate("invalid partition expression {{expression|q}}: {{reason}}"),
		serum.WithDetail("expression", expr),
		serum.WithDetail("reason", reason),
	)
}
