package condition

import (
	"fmt"
	"strconv"
)

// Expression is a parsed progress condition or action guard. The grammar is a
// closed boolean language: and/or/not, comparisons, literals, named context
// fields, '$' jsonpath references and done(<nodeId>) completion checks.
type Expression struct {
	root expr
	src  string
}

func (e *Expression) String() string {
	return e.src
}

// NodeRefs returns every node id the expression checks via done(). Used at
// publish time to reject references outside the declaring node's subtree.
func (e *Expression) NodeRefs() []string {
	var refs []string
	collectNodeRefs(e.root, &refs)
	return refs
}

type expr interface{}

type binaryExpr struct {
	op  tokenType
	lhs expr
	rhs expr
}

type notExpr struct {
	operand expr
}

type literal struct {
	val any
}

type identExpr struct {
	name string
}

type pathExpr struct {
	path string
}

type doneExpr struct {
	nodeId string
}

func collectNodeRefs(e expr, refs *[]string) {
	switch v := e.(type) {
	case *binaryExpr:
		collectNodeRefs(v.lhs, refs)
		collectNodeRefs(v.rhs, refs)
	case *notExpr:
		collectNodeRefs(v.operand, refs)
	case *doneExpr:
		*refs = append(*refs, v.nodeId)
	}
}

type parser struct {
	lex  *lexer
	tok  token
	next token
}

// Parse compiles an expression once; evaluation never re-parses.
func Parse(input string) (*Expression, error) {
	p := &parser{lex: newLexer(input)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.typ != tokenEOF {
		return nil, fmt.Errorf("unexpected token %q at %d", p.tok.val, p.tok.pos)
	}
	return &Expression{root: root, src: input}, nil
}

func (p *parser) advance() error {
	p.tok = p.next
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.next = tok
	return nil
}

func (p *parser) parseOr() (expr, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.typ == tokenOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = &binaryExpr{op: tokenOr, lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseAnd() (expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.typ == tokenAnd {
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = &binaryExpr{op: tokenAnd, lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseUnary() (expr, error) {
	if p.tok.typ == tokenNot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notExpr{operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (expr, error) {
	lhs, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	switch p.tok.typ {
	case tokenEq, tokenNeq, tokenLt, tokenLte, tokenGt, tokenGte:
		op := p.tok.typ
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &binaryExpr{op: op, lhs: lhs, rhs: rhs}, nil
	}
	return lhs, nil
}

func (p *parser) parsePrimary() (expr, error) {
	tok := p.tok
	switch tok.typ {
	case tokenNumber:
		if err := p.advance(); err != nil {
			return nil, err
		}
		num, err := strconv.ParseFloat(tok.val, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q at %d", tok.val, tok.pos)
		}
		return &literal{val: num}, nil
	case tokenString:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &literal{val: tok.val}, nil
	case tokenPath:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &pathExpr{path: tok.val}, nil
	case tokenIdent:
		if tok.val == "true" || tok.val == "false" {
			if err := p.advance(); err != nil {
				return nil, err
			}
			return &literal{val: tok.val == "true"}, nil
		}
		if tok.val == "done" && p.next.typ == tokenLparen {
			return p.parseDone()
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &identExpr{name: tok.val}, nil
	case tokenLparen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.typ != tokenRparen {
			return nil, fmt.Errorf("missing ')' at %d", p.tok.pos)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return nil, fmt.Errorf("unexpected token %q at %d", tok.val, tok.pos)
}

func (p *parser) parseDone() (expr, error) {
	// consume 'done' and '('
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	arg := p.tok
	if arg.typ != tokenIdent && arg.typ != tokenString {
		return nil, fmt.Errorf("done() wants a node id at %d", arg.pos)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.typ != tokenRparen {
		return nil, fmt.Errorf("missing ')' after done(%s)", arg.val)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return &doneExpr{nodeId: arg.val}, nil
}
