package partition

import (
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"
	"github.com/warpfork/go-testmark"
)

func TestExpressionFixtures(t *testing.T) {
	doc, err := testmark.ReadFile("testdata/expressions.md")
	qt.Assert(t, err, qt.IsNil)
	doc.BuildDirIndex()
	for _, dir := range doc.DirEnt.ChildrenList {
		dir := dir
		t.Run(dir.Name, func(t *testing.T) {
			exprEnt := dir.Children["expression"]
			qt.Assert(t, exprEnt, qt.IsNotNil)
			expr := strings.TrimSpace(string(exprEnt.Hunk.Body))

			strategy, err := Parse(expr)
			if errEnt, ok := dir.Children["error"]; ok {
				qt.Assert(t, err, qt.IsNotNil)
				qt.Assert(t, serum.Code(err), qt.Equals, strings.TrimSpace(string(errEnt.Hunk.Body)))
				return
			}
			qt.Assert(t, err, qt.IsNil)
			canonical := strings.TrimSpace(string(dir.Children["canonical"].Hunk.Body))
			qt.Check(t, strategy.Expression(), qt.Equals, canonical)

			// the canonical form must read back as the same strategy
			again, err := Parse(strategy.Expression())
			qt.Assert(t, err, qt.IsNil)
			qt.Check(t, again.Equal(strategy), qt.IsTrue)
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("keeps order", func(t *testing.T) {
		s, err := New(Hash("id", "id_part", 4), Time(KindDay, "ts", ""))
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, s.Fields(), qt.DeepEquals, []FieldPartitioner{
			{Kind: KindHash, Source: "id", Name: "id_part", Buckets: 4},
			{Kind: KindDay, Source: "ts", Name: "ts_day"},
		})
	})
	t.Run("rejects empty source", func(t *testing.T) {
		_, err := New(Identity("", "x", 0))
		qt.Check(t, serum.Code(err), qt.Equals, ECodeExpression)
	})
	t.Run("rejects negative buckets", func(t *testing.T) {
		_, err := New(Identity("a", "x", -1))
		qt.Check(t, serum.Code(err), qt.Equals, ECodeExpression)
	})
	t.Run("fields are a copy", func(t *testing.T) {
		s := MustNew(Identity("a", "a", 0))
		fields := s.Fields()
		fields[0].Name = "changed"
		qt.Check(t, s.Fields()[0].Name, qt.Equals, "a")
	})
}

func TestCardinality(t *testing.T) {
	qt.Check(t, MustParse(`[hash("a", 4), identity("b", "b", 3)]`).Cardinality(), qt.Equals, 12)
	qt.Check(t, MustParse(`[hash("a", 4), identity("b")]`).Cardinality(), qt.Equals, 0)
}

func TestEqual(t *testing.T) {
	a := MustParse(`[hash("a", 4)]`)
	qt.Check(t, a.Equal(MustParse(`[hash("a", "a_hash", 4)]`)), qt.IsTrue)
	qt.Check(t, a.Equal(MustParse(`[hash("a", 8)]`)), qt.IsFalse)
	qt.Check(t, a.Equal(nil), qt.IsFalse)
	var none *Strategy
	qt.Check(t, none.Equal(nil), qt.IsTrue)
}
