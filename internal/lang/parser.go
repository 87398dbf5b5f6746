package lang

import (
	"fmt"

	"github.com/lattis-muon/muon-go/internal/diag"
)

// Parser consumes a token stream and produces an AST. On error it
// records a diagnostic, resynchronizes to the next newline, and
// continues — matching the "never stop at the first error" contract.
type Parser struct {
	lex      *Lexer
	source   string
	tok      Token
	peeked   *Token
	store    *diag.Store
	sourceID string
	mode     LexMode
}

// NewParser creates a parser over src, recording diagnostics into store
// under sourceID.
func NewParser(sourceID, src string, store *diag.Store, mode LexMode) *Parser {
	p := &Parser{lex: NewLexer(sourceID, src, mode), source: src, store: store, sourceID: sourceID, mode: mode}
	p.advance()
	return p
}

func (p *Parser) advance() {
	if p.peeked != nil {
		p.tok = *p.peeked
		p.peeked = nil
		return
	}
	p.tok = p.lex.Next()
}

func (p *Parser) peek() Token {
	if p.peeked == nil {
		t := p.lex.Next()
		p.peeked = &t
	}
	return *p.peeked
}

func (p *Parser) errorf(loc Location, format string, args ...interface{}) {
	p.store.Add(diag.Diagnostic{
		Loc:     diag.Location{Source: p.sourceID, Offset: loc.Offset, Length: loc.Length},
		Level:   diag.LevelError,
		Message: fmt.Sprintf(format, args...),
	})
}

// resync skips tokens until the next top-level newline (or EOF),
// matching the "resynchronize to the next newline" recovery contract.
func (p *Parser) resync() {
	for p.tok.Type != TokEOL && p.tok.Type != TokEOF {
		p.advance()
	}
	if p.tok.Type == TokEOL {
		p.advance()
	}
}

func (p *Parser) skipEOLs() {
	for p.tok.Type == TokEOL {
		p.advance()
	}
}

func (p *Parser) expect(t TokenType) bool {
	if p.tok.Type != t {
		p.errorf(p.tok.Loc, "expected %s, got %s", t, p.tok.Type)
		return false
	}
	p.advance()
	return true
}

// Parse parses the whole source into a top-level block node.
func (p *Parser) Parse() *Node {
	return p.parseBlock(terminatorEOF)
}

type terminatorSet map[TokenType]bool

var terminatorEOF = terminatorSet{TokEOF: true}
var terminatorIfEnd = terminatorSet{TokEndif: true, TokElif: true, TokElse: true}
var terminatorForeachEnd = terminatorSet{TokEndforeach: true}
var terminatorFuncEnd = terminatorSet{TokEndfunc: true}

func (p *Parser) parseBlock(term terminatorSet) *Node {
	block := &Node{Kind: NodeBlock}
	for {
		p.skipEOLs()
		if p.tok.Type == TokEOF || term[p.tok.Type] {
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			block.List = append(block.List, stmt)
		}
	}
	return block
}

func (p *Parser) parseStatement() *Node {
	switch p.tok.Type {
	case TokIf:
		return p.parseIf()
	case TokForeach:
		return p.parseForeach()
	case TokContinue:
		n := &Node{Kind: NodeContinue, Loc: p.tok.Loc}
		p.advance()
		p.expectEOLorEOF()
		return n
	case TokBreak:
		n := &Node{Kind: NodeBreak, Loc: p.tok.Loc}
		p.advance()
		p.expectEOLorEOF()
		return n
	case TokFunc:
		return p.parseFuncDef()
	case TokReturn:
		return p.parseReturn()
	default:
		return p.parseExprStatement()
	}
}

func (p *Parser) expectEOLorEOF() {
	if p.tok.Type != TokEOL && p.tok.Type != TokEOF {
		p.errorf(p.tok.Loc, "expected end of line, got %s", p.tok.Type)
		p.resync()
		return
	}
	if p.tok.Type == TokEOL {
		p.advance()
	}
}

func (p *Parser) parseIf() *Node {
	n := &Node{Kind: NodeIf, Loc: p.tok.Loc}
	p.advance() // if
	for {
		cond := p.parseExpr(precAssignment)
		p.expectEOLorEOF()
		body := p.parseBlock(terminatorIfEnd)
		n.IfArms = append(n.IfArms, IfArm{Cond: cond, Body: body})
		if p.tok.Type == TokElif {
			p.advance()
			continue
		}
		break
	}
	if p.tok.Type == TokElse {
		p.advance()
		p.expectEOLorEOF()
		body := p.parseBlock(terminatorIfEnd)
		n.IfArms = append(n.IfArms, IfArm{Cond: nil, Body: body})
	}
	if !p.expect(TokEndif) {
		p.resync()
		return n
	}
	p.expectEOLorEOF()
	return n
}

func (p *Parser) parseForeach() *Node {
	n := &Node{Kind: NodeForeach, Loc: p.tok.Loc}
	p.advance() // foreach
	for {
		if p.tok.Type != TokIdent {
			p.errorf(p.tok.Loc, "expected identifier in foreach")
			break
		}
		n.ForeachVars = append(n.ForeachVars, p.tok.Str)
		p.advance()
		if p.tok.Type == TokComma {
			p.advance()
			continue
		}
		break
	}
	if !p.expect(TokIn) {
		p.resync()
		return n
	}
	n.ForeachIter = p.parseExpr(precAssignment)
	p.expectEOLorEOF()
	n.ForeachBody = p.parseBlock(terminatorForeachEnd)
	if !p.expect(TokEndforeach) {
		p.resync()
		return n
	}
	p.expectEOLorEOF()
	return n
}

func (p *Parser) parseFuncDef() *Node {
	n := &Node{Kind: NodeFuncDef, Loc: p.tok.Loc}
	p.advance() // func
	if p.tok.Type != TokIdent {
		p.errorf(p.tok.Loc, "expected function name")
	} else {
		n.FuncName = p.tok.Str
		p.advance()
	}
	if !p.expect(TokLParen) {
		p.resync()
		return n
	}
	sawKw := false
	for p.tok.Type != TokRParen && p.tok.Type != TokEOF {
		if p.tok.Type != TokIdent {
			p.errorf(p.tok.Loc, "expected parameter name")
			break
		}
		name := p.tok.Str
		p.advance()
		kw := false
		if p.tok.Type == TokQuestion {
			// '?' marks this and every following parameter keyword-only.
			kw = true
			sawKw = true
			p.advance()
		}
		if p.tok.Type == TokColon {
			p.advance()
			typ := p.parseTypeExpr()
			if kw || sawKw {
				n.FuncKwargs = append(n.FuncKwargs, KwParamNode{Key: name, Type: typ, Required: true})
			} else {
				n.FuncParams = append(n.FuncParams, ParamNode{Name: name, Type: typ})
			}
		} else if kw || sawKw {
			n.FuncKwargs = append(n.FuncKwargs, KwParamNode{Key: name, Required: true})
		} else {
			n.FuncParams = append(n.FuncParams, ParamNode{Name: name})
		}
		if p.tok.Type == TokComma {
			p.advance()
			continue
		}
		break
	}
	p.expect(TokRParen)
	if p.tok.Type == TokArrow {
		p.advance()
		n.FuncReturn = p.parseTypeExpr()
	}
	p.expectEOLorEOF()
	n.FuncBody = p.parseBlock(terminatorFuncEnd)
	if !p.expect(TokEndfunc) {
		p.resync()
		return n
	}
	p.expectEOLorEOF()
	return n
}

func (p *Parser) parseTypeExpr() *TypeExpr {
	var name string
	if p.tok.Type == TokFunc {
		name = "func"
		p.advance()
	} else if p.tok.Type == TokIdent {
		name = p.tok.Str
		p.advance()
	} else {
		p.errorf(p.tok.Loc, "expected type name")
		return &TypeExpr{Name: "any"}
	}
	te := &TypeExpr{Name: name}
	if p.tok.Type == TokLBrack {
		p.advance()
		te.Inner = p.parseTypeExpr()
		p.expect(TokRBrack)
	}
	if p.tok.Type == TokPipe {
		p.advance()
		te.Or = p.parseTypeExpr()
	}
	return te
}

func (p *Parser) parseReturn() *Node {
	n := &Node{Kind: NodeReturn, Loc: p.tok.Loc}
	p.advance()
	if p.tok.Type != TokEOL && p.tok.Type != TokEOF {
		n.L = p.parseExpr(precAssignment)
	}
	p.expectEOLorEOF()
	return n
}

// parseExprStatement handles assignment (`name = expr`, `name += expr`)
// and bare expression statements.
func (p *Parser) parseExprStatement() *Node {
	expr := p.parseExpr(precAssignment)
	if p.tok.Type == TokAssign {
		loc := p.tok.Loc
		p.advance()
		rhs := p.parseExpr(precAssignment)
		p.expectEOLorEOF()
		return &Node{Kind: NodeAssignment, Loc: loc, L: expr, R: rhs}
	}
	if p.tok.Type == TokPlusAssign {
		loc := p.tok.Loc
		p.advance()
		rhs := p.parseExpr(precAssignment)
		p.expectEOLorEOF()
		return &Node{Kind: NodePlusAssign, Loc: loc, L: expr, R: rhs}
	}
	p.expectEOLorEOF()
	return expr
}

// Precedence levels, low to high.
const (
	precAssignment = iota
	precTernary
	precOr
	precAnd
	precEquality
	precComparison
	precAdditive
	precMultiplicative
	precUnary
	precCall
)

func (p *Parser) parseExpr(minPrec int) *Node {
	left := p.parseUnary()
	for {
		op, prec, rightAssoc := p.peekBinOp()
		if prec < minPrec {
			break
		}
		if op == TokQuestion {
			left = p.parseTernary(left)
			continue
		}
		loc := p.tok.Loc
		p.advance()
		nextMin := prec + 1
		if rightAssoc {
			nextMin = prec
		}
		right := p.parseExpr(nextMin)
		left = p.makeBinary(op, loc, left, right)
	}
	return left
}

func (p *Parser) peekBinOp() (TokenType, int, bool) {
	switch p.tok.Type {
	case TokQuestion:
		return TokQuestion, precTernary, true
	case TokOr:
		return TokOr, precOr, false
	case TokAnd:
		return TokAnd, precAnd, false
	case TokEq, TokNeq, TokIn, TokNotIn:
		return p.tok.Type, precEquality, false
	case TokLt, TokLeq, TokGt, TokGeq:
		return p.tok.Type, precComparison, false
	case TokPlus, TokMinus:
		return p.tok.Type, precAdditive, false
	case TokStar, TokSlash, TokPercent:
		return p.tok.Type, precMultiplicative, false
	default:
		return TokError, -1, false
	}
}

func (p *Parser) makeBinary(op TokenType, loc Location, l, r *Node) *Node {
	switch op {
	case TokOr:
		return &Node{Kind: NodeOr, Loc: loc, L: l, R: r}
	case TokAnd:
		return &Node{Kind: NodeAnd, Loc: loc, L: l, R: r}
	case TokEq:
		return &Node{Kind: NodeComparison, Loc: loc, L: l, R: r, CompareOp: CompEqual}
	case TokNeq:
		return &Node{Kind: NodeComparison, Loc: loc, L: l, R: r, CompareOp: CompNequal}
	case TokIn:
		return &Node{Kind: NodeComparison, Loc: loc, L: l, R: r, CompareOp: CompIn}
	case TokNotIn:
		return &Node{Kind: NodeComparison, Loc: loc, L: l, R: r, CompareOp: CompNotIn}
	case TokLt:
		return &Node{Kind: NodeComparison, Loc: loc, L: l, R: r, CompareOp: CompLt}
	case TokLeq:
		return &Node{Kind: NodeComparison, Loc: loc, L: l, R: r, CompareOp: CompLe}
	case TokGt:
		return &Node{Kind: NodeComparison, Loc: loc, L: l, R: r, CompareOp: CompGt}
	case TokGeq:
		return &Node{Kind: NodeComparison, Loc: loc, L: l, R: r, CompareOp: CompGe}
	case TokPlus:
		return &Node{Kind: NodeArithmetic, Loc: loc, L: l, R: r, ArithOp: ArithAdd}
	case TokMinus:
		return &Node{Kind: NodeArithmetic, Loc: loc, L: l, R: r, ArithOp: ArithSub}
	case TokStar:
		return &Node{Kind: NodeArithmetic, Loc: loc, L: l, R: r, ArithOp: ArithMul}
	case TokSlash:
		return &Node{Kind: NodeArithmetic, Loc: loc, L: l, R: r, ArithOp: ArithDiv}
	case TokPercent:
		return &Node{Kind: NodeArithmetic, Loc: loc, L: l, R: r, ArithOp: ArithMod}
	}
	return l
}

func (p *Parser) parseTernary(cond *Node) *Node {
	loc := p.tok.Loc
	p.advance() // ?
	thenBranch := p.parseExpr(precTernary)
	p.expect(TokColon)
	elseBranch := p.parseExpr(precTernary)
	return &Node{Kind: NodeTernary, Loc: loc, L: cond, R: thenBranch, C: elseBranch}
}

func (p *Parser) parseUnary() *Node {
	switch p.tok.Type {
	case TokMinus:
		loc := p.tok.Loc
		p.advance()
		operand := p.parseExpr(precUnary)
		return &Node{Kind: NodeUnaryMinus, Loc: loc, L: operand}
	case TokNot:
		loc := p.tok.Loc
		p.advance()
		operand := p.parseExpr(precUnary)
		return &Node{Kind: NodeNot, Loc: loc, L: operand}
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() *Node {
	n := p.parsePrimary()
	for {
		switch p.tok.Type {
		case TokDot:
			p.advance()
			if p.tok.Type != TokIdent {
				p.errorf(p.tok.Loc, "expected method name")
				return n
			}
			name := p.tok.Str
			loc := p.tok.Loc
			p.advance()
			var args []*Node
			if p.tok.Type == TokLParen {
				args = p.parseArgs()
			}
			n = &Node{Kind: NodeMethod, Loc: loc, L: n, Str: name, List: args}
		case TokLBrack:
			loc := p.tok.Loc
			p.advance()
			idx := p.parseExpr(precAssignment)
			p.expect(TokRBrack)
			n = &Node{Kind: NodeIndex, Loc: loc, L: n, R: idx}
		case TokLParen:
			if n.Kind != NodeID {
				return n
			}
			args := p.parseArgs()
			n = &Node{Kind: NodeCall, Loc: n.Loc, L: n, List: args}
		default:
			return n
		}
	}
}

func (p *Parser) parseArgs() []*Node {
	p.expect(TokLParen)
	var args []*Node
	sawKw := false
	for p.tok.Type != TokRParen && p.tok.Type != TokEOF {
		p.skipEOLs()
		if p.tok.Type == TokRParen {
			break
		}
		var kw string
		start := p.parseExpr(precTernary)
		if p.tok.Type == TokColon && start.Kind == NodeID {
			kw = start.Str
			sawKw = true
			p.advance()
			start = p.parseExpr(precTernary)
		} else if sawKw {
			p.errorf(start.Loc, "positional argument after keyword argument")
		}
		args = append(args, &Node{Kind: NodeArgument, Loc: start.Loc, L: start, ArgKeyword: kw})
		p.skipEOLs()
		if p.tok.Type == TokComma {
			p.advance()
			p.skipEOLs()
			continue
		}
		break
	}
	p.skipEOLs()
	p.expect(TokRParen)
	return args
}

func (p *Parser) parsePrimary() *Node {
	tok := p.tok
	switch tok.Type {
	case TokTrue:
		p.advance()
		return &Node{Kind: NodeBool, Loc: tok.Loc, Bool: true}
	case TokFalse:
		p.advance()
		return &Node{Kind: NodeBool, Loc: tok.Loc, Bool: false}
	case TokNumber:
		p.advance()
		return &Node{Kind: NodeNumber, Loc: tok.Loc, Num: tok.Num}
	case TokString:
		p.advance()
		return &Node{Kind: NodeString, Loc: tok.Loc, Str: tok.Str}
	case TokFString:
		p.advance()
		return p.expandFString(tok)
	case TokIdent:
		p.advance()
		return &Node{Kind: NodeID, Loc: tok.Loc, Str: tok.Str}
	case TokLParen:
		p.advance()
		p.skipEOLs()
		inner := p.parseExpr(precAssignment)
		p.skipEOLs()
		p.expect(TokRParen)
		return inner
	case TokLBrack:
		return p.parseArrayLiteral()
	case TokLCurl:
		return p.parseDictLiteral()
	default:
		p.errorf(tok.Loc, "unexpected token %s", tok.Type)
		p.advance()
		return &Node{Kind: NodeString, Loc: tok.Loc, Str: ""}
	}
}

func (p *Parser) parseArrayLiteral() *Node {
	loc := p.tok.Loc
	p.advance() // [
	n := &Node{Kind: NodeArray, Loc: loc}
	for p.tok.Type != TokRBrack && p.tok.Type != TokEOF {
		p.skipEOLs()
		if p.tok.Type == TokRBrack {
			break
		}
		n.List = append(n.List, p.parseExpr(precTernary))
		p.skipEOLs()
		if p.tok.Type == TokComma {
			p.advance()
			p.skipEOLs()
			continue
		}
		break
	}
	p.skipEOLs()
	p.expect(TokRBrack)
	return n
}

func (p *Parser) parseDictLiteral() *Node {
	loc := p.tok.Loc
	p.advance() // {
	n := &Node{Kind: NodeDict, Loc: loc}
	for p.tok.Type != TokRCurl && p.tok.Type != TokEOF {
		p.skipEOLs()
		if p.tok.Type == TokRCurl {
			break
		}
		key := p.parseExpr(precTernary)
		p.expect(TokColon)
		val := p.parseExpr(precTernary)
		n.List = append(n.List, key, val)
		p.skipEOLs()
		if p.tok.Type == TokComma {
			p.advance()
			p.skipEOLs()
			continue
		}
		break
	}
	p.skipEOLs()
	p.expect(TokRCurl)
	return n
}

// expandFString synthesizes `'text' + stringify(id) + 'text' + ...` from
// an f-string literal whose `@identifier@` substitutions are parsed at
// this point, matching the spec's "the lexer emits a single fstring
// token; substitution is expanded at parse time" contract.
func (p *Parser) expandFString(tok Token) *Node {
	text := tok.Str
	var chain *Node
	appendStr := func(s string) {
		n := &Node{Kind: NodeString, Loc: tok.Loc, Str: s}
		if chain == nil {
			chain = n
			return
		}
		chain = &Node{Kind: NodeArithmetic, Loc: tok.Loc, L: chain, R: n, ArithOp: ArithAdd}
	}
	appendID := func(name string) {
		id := &Node{Kind: NodeID, Loc: tok.Loc, Str: name}
		sf := &Node{Kind: NodeStringify, Loc: tok.Loc, L: id}
		if chain == nil {
			chain = sf
			return
		}
		chain = &Node{Kind: NodeArithmetic, Loc: tok.Loc, L: chain, R: sf, ArithOp: ArithAdd}
	}

	i := 0
	var lit []byte
	for i < len(text) {
		if text[i] == '@' {
			j := i + 1
			for j < len(text) && text[j] != '@' {
				j++
			}
			if j < len(text) {
				if len(lit) > 0 {
					appendStr(string(lit))
					lit = nil
				}
				appendID(text[i+1 : j])
				i = j + 1
				continue
			}
		}
		lit = append(lit, text[i])
		i++
	}
	if len(lit) > 0 || chain == nil {
		appendStr(string(lit))
	}
	return chain
}
