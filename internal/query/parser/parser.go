package parser

import (
	"strconv"
	"strings"

	"github.com/dlfi/archive/internal/archiveerr"
	"github.com/dlfi/archive/internal/query/lexer"
)

var reservedKeys = map[string]bool{
	"tag": true, "inside": true, "path": true, "ext": true, "files": true,
	"size": true, "type": true, "limit": true, "sort": true, "preview": true,
}

var relationWord = func(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		isUpper := r >= 'A' && r <= 'Z'
		isDigit := r >= '0' && r <= '9'
		isUnderscore := r == '_'
		if i == 0 && !isUpper {
			return false
		}
		if !isUpper && !isDigit && !isUnderscore {
			return false
		}
	}
	return true
}

// Parser consumes a token stream and produces a Query AST.
type Parser struct {
	tokens []lexer.Token
	pos    int
}

// Parse lexes and parses src in one call.
func Parse(src string) (*Query, error) {
	tokens, err := lexer.Lex(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: tokens}
	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != lexer.EOF {
		return nil, &archiveerr.ParseError{Message: "unexpected trailing input", Position: p.cur().Pos}
	}
	return q, nil
}

func (p *Parser) cur() lexer.Token  { return p.tokens[p.pos] }
func (p *Parser) peek(n int) lexer.Token {
	idx := p.pos + n
	if idx >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[idx]
}
func (p *Parser) advance() lexer.Token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) parseQuery() (*Query, error) {
	q := &Query{}
	for p.cur().Kind != lexer.EOF && p.cur().Kind != lexer.RPAREN {
		g, err := p.parseOrGroup()
		if err != nil {
			return nil, err
		}
		q.Groups = append(q.Groups, g)
	}
	return q, nil
}

func (p *Parser) parseOrGroup() (*OrGroup, error) {
	g := &OrGroup{}
	t, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	g.Terms = append(g.Terms, t)
	for p.cur().Kind == lexer.PIPE {
		p.advance()
		t, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		g.Terms = append(g.Terms, t)
	}
	return g, nil
}

func (p *Parser) parseTerm() (*Term, error) {
	if p.cur().Kind == lexer.LPAREN {
		p.advance()
		sub, err := p.parseQuery()
		if err != nil {
			return nil, err
		}
		if p.cur().Kind != lexer.RPAREN {
			return nil, &archiveerr.ParseError{Message: "expected ')'", Position: p.cur().Pos}
		}
		p.advance()
		return &Term{Group: sub}, nil
	}

	term := &Term{}
	for {
		switch p.cur().Kind {
		case lexer.MINUS:
			if p.isKeyAbsentForm() {
				p.advance() // MINUS
				keyTok := p.advance()
				term.Atom = KeyAbsent{Key: keyTok.Text}
				return term, nil
			}
			p.advance()
			term.Negate = true
			continue
		case lexer.CARET:
			p.advance()
			term.Deep = true
			continue
		case lexer.PERCENT:
			p.advance()
			term.ReverseDeep = true
			continue
		}
		break
	}

	atom, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	term.Atom = atom
	return term, nil
}

// isKeyAbsentForm reports whether the MINUS at p.pos begins the
// dedicated "-key" form: MINUS TEXT with nothing compounding the key
// (no colon/eq/comparator/question immediately after).
func (p *Parser) isKeyAbsentForm() bool {
	if p.cur().Kind != lexer.MINUS {
		return false
	}
	next := p.peek(1)
	if next.Kind != lexer.TEXT {
		return false
	}
	after := p.peek(2)
	switch after.Kind {
	case lexer.COLON, lexer.EQ, lexer.GT, lexer.LT, lexer.GTE, lexer.LTE, lexer.QUESTION:
		return false
	default:
		return true
	}
}

func (p *Parser) parseAtom() (Atom, error) {
	tok := p.cur()
	switch tok.Kind {
	case lexer.QUOTED:
		p.advance()
		return PhraseAtom{Text: tok.Text}, nil
	case lexer.BANG:
		return p.parseRelationAtom()
	case lexer.TEXT, lexer.NUMBER:
		return p.parseKeyedOrWord()
	case lexer.EOF:
		return nil, &archiveerr.ParseError{Message: "unexpected end of query", Position: tok.Pos}
	default:
		return nil, &archiveerr.ParseError{Message: "unexpected token '" + tok.Text + "'", Position: tok.Pos}
	}
}

func (p *Parser) parseRelationAtom() (Atom, error) {
	bangPos := p.advance().Pos // BANG
	if p.cur().Kind != lexer.TEXT {
		return nil, &archiveerr.ParseError{Message: "expected path after '!'", Position: bangPos}
	}
	path := p.advance().Text

	atom := RelationAtom{Path: path}
	if p.cur().Kind == lexer.COLON {
		p.advance()
		if p.cur().Kind != lexer.TEXT {
			return nil, &archiveerr.ParseError{Message: "expected relation name after ':'", Position: p.cur().Pos}
		}
		atom.Relation = p.advance().Text
		switch p.cur().Kind {
		case lexer.GT:
			p.advance()
			atom.Direction = Outgoing
		case lexer.LT:
			p.advance()
			atom.Direction = Incoming
		}
	}
	return atom, nil
}

func (p *Parser) parseKeyedOrWord() (Atom, error) {
	keyTok := p.advance()
	key := keyTok.Text

	switch p.cur().Kind {
	case lexer.QUESTION:
		p.advance()
		return KeyExists{Key: key}, nil
	case lexer.COLON:
		p.advance()
		return p.parseColonValue(key)
	case lexer.EQ:
		p.advance()
		val, err := p.parseValueText()
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(key, "type") {
			return TypeAtom{NodeType: strings.ToUpper(val)}, nil
		}
		if strings.EqualFold(key, "tag") {
			return TagAtom{Value: val}, nil
		}
		return MetadataEquals{Key: key, Value: val}, nil
	case lexer.GT, lexer.LT, lexer.GTE, lexer.LTE:
		return p.parseCompare(key)
	default:
		if relationWord(key) {
			return RelationTypeAtom{Relation: key}, nil
		}
		return WordAtom{Text: key}, nil
	}
}

func (p *Parser) parseCompare(key string) (Atom, error) {
	opTok := p.advance()
	var op CompareOp
	switch opTok.Kind {
	case lexer.GT:
		op = GT
	case lexer.LT:
		op = LT
	case lexer.GTE:
		op = GTE
	case lexer.LTE:
		op = LTE
	}

	lower := strings.ToLower(key)
	switch lower {
	case "files":
		n, err := p.parseIntValue()
		if err != nil {
			return nil, err
		}
		return FilesAtom{Op: op, Value: n}, nil
	case "size":
		b, err := p.parseSizeValue()
		if err != nil {
			return nil, err
		}
		return SizeAtom{Op: op, Bytes: b}, nil
	default:
		f, err := p.parseFloatValue()
		if err != nil {
			return nil, err
		}
		return MetadataCompare{Key: key, Op: op, Value: f}, nil
	}
}

func (p *Parser) parseColonValue(key string) (Atom, error) {
	lower := strings.ToLower(key)
	if reservedKeys[lower] {
		switch lower {
		case "tag":
			val, err := p.parseValueText()
			if err != nil {
				return nil, err
			}
			return TagAtom{Value: val}, nil
		case "inside":
			val, err := p.parseValueText()
			if err != nil {
				return nil, err
			}
			return InsideAtom{Path: val}, nil
		case "path":
			// art/* lexes as TEXT "art/" then STAR; join tokens that touch.
			var b strings.Builder
			for end := -1; ; {
				t := p.cur()
				joinable := t.Kind == lexer.TEXT || t.Kind == lexer.NUMBER || t.Kind == lexer.STAR || t.Kind == lexer.DOUBLESTAR
				if !joinable || (end >= 0 && t.Pos != end) {
					break
				}
				b.WriteString(p.advance().Text)
				end = t.Pos + len(t.Text)
			}
			if b.Len() > 0 {
				return PathAtom{Pattern: b.String()}, nil
			}
			val, err := p.parseValueText()
			if err != nil {
				return nil, err
			}
			return PathAtom{Pattern: val}, nil
		case "ext":
			val, err := p.parseValueText()
			if err != nil {
				return nil, err
			}
			return ExtAtom{Value: strings.TrimPrefix(val, ".")}, nil
		case "type":
			val, err := p.parseValueText()
			if err != nil {
				return nil, err
			}
			return TypeAtom{NodeType: strings.ToUpper(val)}, nil
		case "sort":
			descending := false
			if p.cur().Kind == lexer.MINUS {
				p.advance()
				descending = true
			}
			val, err := p.parseValueText()
			if err != nil {
				return nil, err
			}
			return SortAtom{Field: val, Descending: descending}, nil
		case "limit":
			n, err := p.parseIntValue()
			if err != nil {
				return nil, err
			}
			return LimitAtom{N: n}, nil
		case "preview":
			val, err := p.parseValueText()
			if err != nil {
				return nil, err
			}
			return PreviewAtom{Value: val}, nil
		case "size":
			return p.parseSizeRange()
		case "files":
			return nil, &archiveerr.ParseError{Message: "files does not support ':' form, use a comparator", Position: p.cur().Pos}
		}
	}

	// non-reserved: numeric range or generic metadata contains.
	if p.cur().Kind == lexer.NUMBER && p.peek(1).Kind == lexer.DOTDOT {
		low, err := p.parseFloatValue()
		if err != nil {
			return nil, err
		}
		if p.cur().Kind != lexer.DOTDOT {
			return nil, &archiveerr.ParseError{Message: "expected '..'", Position: p.cur().Pos}
		}
		p.advance()
		high, err := p.parseFloatValue()
		if err != nil {
			return nil, err
		}
		return MetadataRange{Key: key, Low: low, High: high}, nil
	}

	val, err := p.parseValueText()
	if err != nil {
		return nil, err
	}
	return MetadataContains{Key: key, Value: val}, nil
}

func (p *Parser) parseSizeRange() (Atom, error) {
	low, err := p.parseSizeValue()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != lexer.DOTDOT {
		return nil, &archiveerr.ParseError{Message: "expected '..' in size range", Position: p.cur().Pos}
	}
	p.advance()
	high, err := p.parseSizeValue()
	if err != nil {
		return nil, err
	}
	return SizeRangeAtom{Low: low, High: high}, nil
}

// parseValueText consumes one TEXT, QUOTED, or NUMBER token as a value.
func (p *Parser) parseValueText() (string, error) {
	tok := p.cur()
	switch tok.Kind {
	case lexer.TEXT, lexer.QUOTED, lexer.NUMBER:
		p.advance()
		return tok.Text, nil
	default:
		return "", &archiveerr.ParseError{Message: "expected a value", Position: tok.Pos}
	}
}

// parseFloatValue consumes an optional leading MINUS then a NUMBER.
func (p *Parser) parseFloatValue() (float64, error) {
	negative := false
	if p.cur().Kind == lexer.MINUS {
		p.advance()
		negative = true
	}
	tok := p.cur()
	if tok.Kind != lexer.NUMBER {
		return 0, &archiveerr.ParseError{Message: "expected a number", Position: tok.Pos}
	}
	p.advance()
	f, err := strconv.ParseFloat(tok.Text, 64)
	if err != nil {
		return 0, &archiveerr.ParseError{Message: "invalid number '" + tok.Text + "'", Position: tok.Pos}
	}
	if negative {
		f = -f
	}
	return f, nil
}

func (p *Parser) parseIntValue() (int, error) {
	f, err := p.parseFloatValue()
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

var sizeSuffixes = map[string]int64{
	"b": 1,
	"kb": 1024,
	"mb": 1024 * 1024,
	"gb": 1024 * 1024 * 1024,
	"tb": 1024 * 1024 * 1024 * 1024,
}

// parseSizeValue consumes either a bare NUMBER (bytes) or a TEXT token
// combining digits with a `b|kb|mb|gb|tb` suffix (spec.md §4.8).
func (p *Parser) parseSizeValue() (int64, error) {
	negative := false
	if p.cur().Kind == lexer.MINUS {
		p.advance()
		negative = true
	}
	tok := p.cur()
	var bytes int64
	switch tok.Kind {
	case lexer.NUMBER:
		p.advance()
		f, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return 0, &archiveerr.ParseError{Message: "invalid size '" + tok.Text + "'", Position: tok.Pos}
		}
		bytes = int64(f)
	case lexer.TEXT:
		p.advance()
		parsed, err := parseSizeText(tok.Text)
		if err != nil {
			return 0, &archiveerr.ParseError{Message: err.Error(), Position: tok.Pos}
		}
		bytes = parsed
	default:
		return 0, &archiveerr.ParseError{Message: "expected a size value", Position: tok.Pos}
	}
	if negative {
		bytes = -bytes
	}
	return bytes, nil
}

func parseSizeText(text string) (int64, error) {
	lower := strings.ToLower(text)
	for _, suffixLen := range []int{2, 1} {
		if len(lower) <= suffixLen {
			continue
		}
		suffix := lower[len(lower)-suffixLen:]
		if mult, ok := sizeSuffixes[suffix]; ok {
			numPart := lower[:len(lower)-suffixLen]
			f, err := strconv.ParseFloat(numPart, 64)
			if err != nil {
				return 0, &archiveerr.ValidationError{Field: "size", Reason: "invalid size value '" + text + "'"}
			}
			return int64(f * float64(mult)), nil
		}
	}
	f, err := strconv.ParseFloat(lower, 64)
	if err != nil {
		return 0, &archiveerr.ValidationError{Field: "size", Reason: "invalid size value '" + text + "'"}
	}
	return int64(f), nil
}
