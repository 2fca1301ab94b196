package crs

import (
	"fmt"
	"strings"
)

// wktNode is one KEYWORD[...] element of a WKT string. Arguments are
// quoted strings, bare tokens (numbers, enums) or nested nodes.
type wktNode struct {
	keyword string
	args    []wktArg
}

type wktArg struct {
	quoted bool
	text   string
	node   *wktNode
}

func looksLikeWKT(s string) bool {
	i := 0
	for i < len(s) && isKeywordByte(s[i]) {
		i++
	}
	if i == 0 {
		return false
	}
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i < len(s) && (s[i] == '[' || s[i] == '(')
}

func isKeywordByte(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9') || b == '_'
}

func fromWKT(s string) (*CRS, error) {
	p := &wktParser{src: s}
	root, err := p.parseNode()
	if err != nil {
		return nil, invalidf("invalid WKT: %s", err)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, invalidf("invalid WKT: trailing characters at offset %d", p.pos)
	}

	kw := strings.ToUpper(root.keyword)
	if !strings.HasSuffix(kw, "CS") && !strings.HasSuffix(kw, "CRS") {
		return nil, invalidf("invalid WKT: %s is not a coordinate reference system", kw)
	}

	var name string
	if len(root.args) > 0 && root.args[0].quoted {
		name = root.args[0].text
	}

	// the CRS identifier is the last AUTHORITY or ID child of the root node
	for i := len(root.args) - 1; i >= 0; i-- {
		child := root.args[i].node
		if child == nil {
			continue
		}
		switch strings.ToUpper(child.keyword) {
		case "AUTHORITY", "ID":
			if len(child.args) < 2 {
				return nil, invalidf("invalid WKT: %s needs an authority and a code", child.keyword)
			}
			c, err := fromAuthority(child.args[0].text, child.args[1].text)
			if err != nil {
				return nil, err
			}
			if name != "" {
				c.name = name
			}
			return c, nil
		}
	}

	return &CRS{definition: root.String(), name: name}, nil
}

// String renders the node in a canonical form: upper case keywords, square
// brackets and no whitespace between elements.
func (n *wktNode) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *wktNode) write(b *strings.Builder) {
	b.WriteString(strings.ToUpper(n.keyword))
	b.WriteByte('[')
	for i, a := range n.args {
		if i > 0 {
			b.WriteByte(',')
		}
		switch {
		case a.node != nil:
			a.node.write(b)
		case a.quoted:
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(a.text, `"`, `""`))
			b.WriteByte('"')
		default:
			b.WriteString(a.text)
		}
	}
	b.WriteByte(']')
}

type wktParser struct {
	src string
	pos int
}

func (p *wktParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *wktParser) ident() string {
	start := p.pos
	for p.pos < len(p.src) && isKeywordByte(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *wktParser) parseNode() (*wktNode, error) {
	p.skipSpace()
	kw := p.ident()
	if kw == "" {
		return nil, fmt.Errorf("expected keyword at offset %d", p.pos)
	}
	p.skipSpace()
	if p.pos >= len(p.src) || (p.src[p.pos] != '[' && p.src[p.pos] != '(') {
		return nil, fmt.Errorf("expected '[' after %s", kw)
	}
	p.pos++
	return p.parseArgs(kw)
}

func (p *wktParser) parseArgs(kw string) (*wktNode, error) {
	n := &wktNode{keyword: kw}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, fmt.Errorf("unterminated %s", kw)
		}

		switch c := p.src[p.pos]; {
		case c == '"':
			text, err := p.quoted()
			if err != nil {
				return nil, err
			}
			n.args = append(n.args, wktArg{quoted: true, text: text})
		case isKeywordByte(c) && !isNumberStart(c):
			save := p.pos
			id := p.ident()
			p.skipSpace()
			if p.pos < len(p.src) && (p.src[p.pos] == '[' || p.src[p.pos] == '(') {
				p.pos = save
				child, err := p.parseNode()
				if err != nil {
					return nil, err
				}
				n.args = append(n.args, wktArg{node: child})
			} else {
				n.args = append(n.args, wktArg{text: id})
			}
		default:
			tok := p.token()
			if tok == "" {
				return nil, fmt.Errorf("unexpected %q at offset %d", c, p.pos)
			}
			n.args = append(n.args, wktArg{text: tok})
		}

		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, fmt.Errorf("unterminated %s", kw)
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case ']', ')':
			p.pos++
			return n, nil
		default:
			return nil, fmt.Errorf("unexpected %q at offset %d", p.src[p.pos], p.pos)
		}
	}
}

func isNumberStart(c byte) bool {
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.'
}

// quoted reads a double quoted string; "" escapes a quote.
func (p *wktParser) quoted() (string, error) {
	p.pos++ // opening quote
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		p.pos++
		if c != '"' {
			b.WriteByte(c)
			continue
		}
		if p.pos < len(p.src) && p.src[p.pos] == '"' {
			b.WriteByte('"')
			p.pos++
			continue
		}
		return b.String(), nil
	}
	return "", fmt.Errorf("unterminated string")
}

func (p *wktParser) token() string {
	start := p.pos
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ',', ']', ')', ' ', '\t', '\n', '\r', '[', '(', '"':
			return p.src[start:p.pos]
		}
		p.pos++
	}
	return p.src[start:p.pos]
}
