package filter

import "strings"

var classifierWords = map[string]bool{
	"application":      true,
	"library":          true,
	"framework":        true,
	"container":        true,
	"operating-system": true,
	"device":           true,
	"firmware":         true,
	"file":             true,
}

var scopeKinds = map[string]Kind{
	"package":     KindPackage,
	"supplier":    KindSupplier,
	"dependency":  KindDependency,
	"description": KindDescription,
	"license":     KindLicense,
	"version":     KindVersion,
	"type":        KindType,
	"namespace":   KindNamespace,
	"digest":      KindDigest,
}

var fieldKinds = map[string]Kind{
	"type":        KindType,
	"namespace":   KindNamespace,
	"version":     KindVersion,
	"desc":        KindDescription,
	"description": KindDescription,
	"digest":      KindDigest,
	"sha256":      KindDigest,
	"license":     KindLicense,
	"supplier":    KindSupplier,
	"dependency":  KindDependency,
	"created":     KindCreated,
	"package":     KindPackage,
}

// Parse parses a filter-language string into a compacted Tree.
func Parse(input string) (*Tree, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, &ParseError{Pos: p.cur().pos, Msg: "unexpected token " + p.cur().text}
	}
	return &Tree{Root: compact(root), Sort: p.sort}, nil
}

type parser struct {
	toks []token
	pos  int
	sort Sort
}

func (p *parser) cur() token { return p.toks[p.pos] }
func (p *parser) advance()   { p.pos++ }

func (p *parser) parseOr() (*Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	nodes := []*Node{left}
	for p.cur().kind == tokWord && strings.EqualFold(p.cur().text, "OR") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, right)
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return or(nodes...), nil
}

func (p *parser) parseAnd() (*Node, error) {
	var nodes []*Node
	for {
		switch p.cur().kind {
		case tokEOF, tokRParen:
			if len(nodes) == 0 {
				return nil, nil
			}
			if len(nodes) == 1 {
				return nodes[0], nil
			}
			return and(nodes...), nil
		case tokWord:
			if strings.EqualFold(p.cur().text, "OR") {
				if len(nodes) == 0 {
					return nil, &ParseError{Pos: p.cur().pos, Msg: "OR with no left operand"}
				}
				if len(nodes) == 1 {
					return nodes[0], nil
				}
				return and(nodes...), nil
			}
		}
		n, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		if n != nil {
			nodes = append(nodes, n)
		}
	}
}

func (p *parser) parseTerm() (*Node, error) {
	switch p.cur().kind {
	case tokLParen:
		p.advance()
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.cur().kind != tokRParen {
			return nil, &ParseError{Pos: p.cur().pos, Msg: "expected closing parenthesis"}
		}
		p.advance()
		return n, nil
	case tokQuoted:
		v := p.cur().text
		p.advance()
		return p.withScope(leaf(Leaf{Kind: KindPackage, Value: v})), nil
	case tokWord:
		w := p.cur().text
		if strings.EqualFold(w, "NOT") {
			p.advance()
			inner, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			if inner == nil {
				return nil, &ParseError{Pos: p.cur().pos, Msg: "NOT with no operand"}
			}
			return &Node{Not: inner}, nil
		}
		return p.parseWordTerm(w)
	default:
		return nil, &ParseError{Pos: p.cur().pos, Msg: "unexpected token"}
	}
}

// parseWordTerm handles a single bare word: sort directives, field/qualifier
// predicates, classifier bare words, or a plain free term.
func (p *parser) parseWordTerm(w string) (*Node, error) {
	pos := p.cur().pos
	p.advance()

	switch {
	case strings.HasPrefix(w, "-sort:"):
		p.setSort(strings.TrimPrefix(w, "-sort:"), true)
		return nil, nil
	case strings.HasPrefix(w, "sort:"):
		p.setSort(strings.TrimPrefix(w, "sort:"), false)
		return nil, nil
	case strings.HasPrefix(w, "qualifier:"):
		rest := strings.TrimPrefix(w, "qualifier:")
		k, v, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, &ParseError{Pos: pos, Msg: "malformed qualifier predicate " + w}
		}
		return leaf(Leaf{Kind: KindQualifier, QualifierKey: k, QualifierValue: v}), nil
	case strings.HasPrefix(w, "in:"):
		// "in:" with no preceding term to scope; treat the scope target as a
		// free term against the named scope with an empty value is
		// nonsensical, so surface a parse error instead.
		return nil, &ParseError{Pos: pos, Msg: "in: scope with no preceding term"}
	}

	if field, value, ok := strings.Cut(w, ":"); ok {
		if kind, known := fieldKinds[strings.ToLower(field)]; known {
			if kind == KindCreated {
				l, err := parseCreatedValue(value, pos)
				if err != nil {
					return nil, err
				}
				return leaf(*l), nil
			}
			return leaf(Leaf{Kind: kind, Value: value}), nil
		}
	}

	if classifierWords[strings.ToLower(w)] {
		return leaf(Leaf{Kind: KindClassifier, Value: strings.ToLower(w)}), nil
	}

	return p.withScope(leaf(Leaf{Kind: KindPackage, Value: w})), nil
}

// withScope checks for a following "in:SCOPE" token and, if present, rebinds
// the Leaf's Kind to the named scope.
func (p *parser) withScope(n *Node) *Node {
	if p.cur().kind != tokWord || !strings.HasPrefix(p.cur().text, "in:") {
		return n
	}
	scope := strings.ToLower(strings.TrimPrefix(p.cur().text, "in:"))
	kind, ok := scopeKinds[scope]
	if !ok {
		return n
	}
	p.advance()
	n.Leaf.Kind = kind
	return n
}

func (p *parser) setSort(field string, inverse bool) {
	if p.sort.Explicit {
		return // only the first sort directive is honored
	}
	p.sort = Sort{Field: field, Inverse: inverse, Explicit: true}
}
