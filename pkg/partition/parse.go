package partition

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"
)

// Parse reads a partition expression as produced by Expression.
//
// The grammar is a bracketed, comma separated list of partitioner calls:
//
//	kind("source")
//	kind("source", "name")
//	kind("source", "name", buckets)
//	kind("source", buckets)
//
// When the name is omitted it defaults to the source for identity,
// and to source + "_" + kind for every other kind.
//
// Errors:
//
//   - dsmeta-error-partition-expression -- when the expression is malformed
//   - dsmeta-error-partition-expression -- when a partitioner's arguments are inconsistent
func Parse(expr string) (*Strategy, error) {
	p := &parser{expr: expr}
	p.s.Init(strings.NewReader(expr))
	p.s.Mode = scanner.ScanIdents | scanner.ScanStrings | scanner.ScanInts
	p.s.Error = func(s *scanner.Scanner, msg string) {
		if p.err == nil {
			p.err = errorExpression(expr, fmt.Sprintf("at offset %d: %s", s.Pos().Offset, msg))
		}
	}
	p.next()
	return p.parseStrategy()
}

// MustParse is Parse, but panics on error.
func MustParse(expr string) *Strategy {
	s, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return s
}

type parser struct {
	s    scanner.Scanner
	tok  rune
	expr string
	err  error
}

func (p *parser) next() {
	p.tok = p.s.Scan()
}

func (p *parser) fail(format string, args ...interface{}) error {
	if p.err != nil {
		return p.err
	}
	msg := fmt.Sprintf(format, args...)
	return errorExpression(p.expr, fmt.Sprintf("at offset %d: %s", p.s.Position.Offset, msg))
}

func (p *parser) found() string {
	if p.tok == scanner.EOF {
		return "end of expression"
	}
	return strconv.Quote(p.s.TokenText())
}

func (p *parser) expect(tok rune, what string) error {
	if p.tok != tok {
		return p.fail("expected %s, found %s", what, p.found())
	}
	p.next()
	return nil
}

func (p *parser) parseStrategy() (*Strategy, error) {
	if err := p.expect('[', "'['"); err != nil {
		return nil, err
	}
	var fields []FieldPartitioner
	for {
		fp, err := p.parseField()
		if err != nil {
			return nil, err
		}
		fields = append(fields, fp)
		if p.tok == ',' {
			p.next()
			continue
		}
		if err := p.expect(']', "',' or ']'"); err != nil {
			return nil, err
		}
		break
	}
	if p.tok != scanner.EOF {
		return nil, p.fail("unexpected %s after ']'", p.found())
	}
	if p.err != nil {
		return nil, p.err
	}
	return New(fields...)
}

func (p *parser) parseField() (FieldPartitioner, error) {
	if p.tok != scanner.Ident {
		return FieldPartitioner{}, p.fail("expected partitioner, found %s", p.found())
	}
	kind := Kind(p.s.TokenText())
	if _, ok := knownKinds[kind]; !ok {
		return FieldPartitioner{}, p.fail("unknown partitioner %q", kind)
	}
	p.next()
	if err := p.expect('(', "'('"); err != nil {
		return FieldPartitioner{}, err
	}
	source, err := p.parseString("source field")
	if err != nil {
		return FieldPartitioner{}, err
	}
	fp := FieldPartitioner{Kind: kind, Source: source, Name: defaultName(kind, source)}
	if p.tok == ',' {
		p.next()
		switch p.tok {
		case scanner.String:
			if fp.Name, err = p.parseString("partition name"); err != nil {
				return FieldPartitioner{}, err
			}
			if p.tok == ',' {
				p.next()
				if fp.Buckets, err = p.parseInt(); err != nil {
					return FieldPartitioner{}, err
				}
			}
		case scanner.Int:
			if fp.Buckets, err = p.parseInt(); err != nil {
				return FieldPartitioner{}, err
			}
		default:
			return FieldPartitioner{}, p.fail("expected partition name or bucket count, found %s", p.found())
		}
	}
	if err := p.expect(')', "')'"); err != nil {
		return FieldPartitioner{}, err
	}
	return fp, nil
}

func (p *parser) parseString(what string) (string, error) {
	if p.tok != scanner.String {
		return "", p.fail("expected quoted %s, found %s", what, p.found())
	}
	v, err := strconv.Unquote(p.s.TokenText())
	if err != nil {
		return "", p.fail("malformed %s %s", what, p.found())
	}
	p.next()
	return v, nil
}

func (p *parser) parseInt() (int, error) {
	if p.tok != scanner.Int {
		return 0, p.fail("expected bucket count, found %s", p.found())
	}
	v, err := strconv.Atoi(p.s.TokenText())
	if err != nil {
		return 0, p.fail("malformed bucket count %s", p.found())
	}
	p.next()
	return v, nil
}

func quote(s string) string {
	return strconv.Quote(s)
}
