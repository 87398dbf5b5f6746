package ninjabuild

import (
	"fmt"
	"os"
	"path/filepath"
)

// ParseOptions controls manifest-parser leniency, mirroring the
// teacher's ErrOnDupeEdge/Quiet knobs.
type ParseOptions struct {
	ErrOnDupeEdge bool
	Quiet         bool
}

// parser parses .ninja-format manifests into a Graph, resolving
// include/subninja statements synchronously as they're encountered.
type parser struct {
	lex     *lexer
	graph   *Graph
	env     *BindingEnv
	opts    ParseOptions
	baseDir string
}

// ParseManifest reads path (resolved relative to baseDir) into graph.
func ParseManifest(graph *Graph, baseDir, path string, opts ParseOptions) error {
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(baseDir, path)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return fmt.Errorf("loading %q: %w", path, err)
	}
	p := &parser{
		lex:     newLexer(path, string(data)),
		graph:   graph,
		env:     graph.Bindings,
		opts:    opts,
		baseDir: baseDir,
	}
	return p.parse()
}

func (p *parser) parse() error {
	for {
		t, word, err := p.lex.next()
		if err != nil {
			return err
		}
		switch t {
		case tokPool:
			err = p.parsePool()
		case tokBuild:
			err = p.parseEdge()
		case tokRule:
			err = p.parseRule()
		case tokDefault:
			err = p.parseDefault()
		case tokInclude:
			err = p.parseInclude()
		case tokSubninja:
			err = p.parseSubninja()
		case tokIdent:
			err = p.parseAssignment(word)
		case tokNewline:
			continue
		case tokEOF:
			return nil
		default:
			err = p.lex.errorf("unexpected %s", t)
		}
		if err != nil {
			return err
		}
	}
}

func (p *parser) expect(want tok) error {
	t, _, err := p.lex.next()
	if err != nil {
		return err
	}
	if t != want {
		return p.lex.errorf("expected %s, got %s", want, t)
	}
	return nil
}

// peekIndent reports (and consumes) whether the next token is an INDENT,
// i.e. whether another key=value line follows in the current block.
func (p *parser) peekIndent() bool {
	save := *p.lex
	t, _, err := p.lex.next()
	if err != nil || t != tokIndent {
		*p.lex = save
		return false
	}
	return true
}

func (p *parser) parseLet() (string, EvalString, error) {
	_, name, err := p.lex.next()
	if err != nil {
		return "", EvalString{}, err
	}
	if name == "" {
		return "", EvalString{}, p.lex.errorf("expected variable name")
	}
	if err := p.expect(tokEquals); err != nil {
		return "", EvalString{}, err
	}
	val, err := p.lex.readEvalString(false)
	if err != nil {
		return "", EvalString{}, err
	}
	if err := p.expect(tokNewline); err != nil {
		return "", EvalString{}, err
	}
	return name, val, nil
}

func (p *parser) parsePool() error {
	_, name, err := p.lex.next()
	if err != nil {
		return err
	}
	if name == "" {
		return p.lex.errorf("expected pool name")
	}
	if err := p.expect(tokNewline); err != nil {
		return err
	}
	if _, ok := p.graph.Pools[name]; ok {
		return p.lex.errorf("duplicate pool %q", name)
	}
	depth := -1
	for p.peekIndent() {
		key, val, err := p.parseLet()
		if err != nil {
			return err
		}
		if key != "depth" {
			return p.lex.errorf("unexpected variable %q in pool", key)
		}
		n := 0
		if _, err := fmt.Sscanf(val.Evaluate(p.env), "%d", &n); err != nil || n < 0 {
			return p.lex.errorf("invalid pool depth")
		}
		depth = n
	}
	if depth < 0 {
		return p.lex.errorf("expected 'depth =' line")
	}
	p.graph.Pools[name] = NewPool(name, depth)
	return nil
}

func (p *parser) parseRule() error {
	_, name, err := p.lex.next()
	if err != nil {
		return err
	}
	if name == "" {
		return p.lex.errorf("expected rule name")
	}
	if err := p.expect(tokNewline); err != nil {
		return err
	}
	if p.env.LookupRuleCurrentScope(name) != nil {
		return p.lex.errorf("duplicate rule %q", name)
	}
	rule := NewRule(name)
	for p.peekIndent() {
		key, val, err := p.parseLet()
		if err != nil {
			return err
		}
		if !IsReservedBinding(key) {
			return p.lex.errorf("unexpected variable %q in rule", key)
		}
		v := val
		rule.Bindings[key] = &v
	}
	cmd := rule.GetBinding("command")
	if cmd == nil || cmd.Empty() {
		return p.lex.errorf("expected 'command =' line")
	}
	rsp, rspOK := rule.Bindings["rspfile"]
	content, contentOK := rule.Bindings["rspfile_content"]
	if rspOK != contentOK || (rspOK && rsp.Empty() != content.Empty()) {
		return p.lex.errorf("rspfile and rspfile_content need to be both specified")
	}
	p.env.Rules[name] = rule
	return nil
}

func (p *parser) parseAssignment(firstWord string) error {
	if err := p.expect(tokEquals); err != nil {
		return err
	}
	val, err := p.lex.readEvalString(false)
	if err != nil {
		return err
	}
	if err := p.expect(tokNewline); err != nil {
		return err
	}
	value := val.Evaluate(p.env)
	if firstWord == "ninja_required_version" {
		// The engine speaks the manifest grammar described by the muon
		// backend itself, so there is no separate version to reconcile
		// against; accept any value.
		_ = value
	}
	p.env.Bindings[firstWord] = value
	return nil
}

func (p *parser) parseDefault() error {
	for {
		ev, err := p.lex.readEvalString(true)
		if err != nil {
			return err
		}
		if ev.Empty() {
			break
		}
		path := ev.Evaluate(p.env)
		if path == "" {
			return p.lex.errorf("empty path")
		}
		p.graph.Defaults = append(p.graph.Defaults, CanonicalizePath(path))
		p.skipPathSpaces()
	}
	return p.expect(tokNewline)
}

// skipPathSpaces consumes the run of literal spaces the lexer's
// path-mode readEvalString leaves unconsumed between paths.
func (p *parser) skipPathSpaces() {
	for p.lex.peekByte() == ' ' {
		p.lex.pos++
	}
}

func (p *parser) readPaths() ([]EvalString, error) {
	var out []EvalString
	for {
		p.skipPathSpaces()
		ev, err := p.lex.readEvalString(true)
		if err != nil {
			return nil, err
		}
		if ev.Empty() {
			return out, nil
		}
		out = append(out, ev)
	}
}

func (p *parser) peekPipe2() bool {
	p.skipPathSpaces()
	if p.lex.peekByte() == '|' && p.lex.pos+1 < len(p.lex.input) && p.lex.input[p.lex.pos+1] == '|' {
		p.lex.pos += 2
		return true
	}
	return false
}

func (p *parser) peekPipe() bool {
	p.skipPathSpaces()
	if p.lex.peekByte() == '|' && !(p.lex.pos+1 < len(p.lex.input) && p.lex.input[p.lex.pos+1] == '|') {
		p.lex.pos++
		return true
	}
	return false
}

func (p *parser) parseEdge() error {
	outs, err := p.readPaths()
	if err != nil {
		return err
	}
	implicitOuts := 0
	if p.peekPipe() {
		more, err := p.readPaths()
		if err != nil {
			return err
		}
		outs = append(outs, more...)
		implicitOuts = len(more)
	}
	if len(outs) == 0 {
		return p.lex.errorf("expected path")
	}
	p.skipPathSpaces()
	if err := p.expect(tokColon); err != nil {
		return err
	}
	p.skipSpaces()
	_, ruleName, err := p.lex.next()
	if err != nil {
		return err
	}
	if ruleName == "" {
		return p.lex.errorf("expected build command name")
	}
	rule := p.env.LookupRule(ruleName)
	if rule == nil {
		return p.lex.errorf("unknown build rule %q", ruleName)
	}

	ins, err := p.readPaths()
	if err != nil {
		return err
	}
	implicit := 0
	if p.peekPipe() {
		more, err := p.readPaths()
		if err != nil {
			return err
		}
		ins = append(ins, more...)
		implicit = len(more)
	}
	orderOnly := 0
	if p.peekPipe2() {
		more, err := p.readPaths()
		if err != nil {
			return err
		}
		ins = append(ins, more...)
		orderOnly = len(more)
	}
	if err := p.expect(tokNewline); err != nil {
		return err
	}

	env := p.env
	if p.peekIndent() {
		env = NewBindingEnv(p.env)
		for {
			key, val, err := p.parseLet()
			if err != nil {
				return err
			}
			env.Bindings[key] = val.Evaluate(p.env)
			if !p.peekIndent() {
				break
			}
		}
	}

	edge := p.graph.addEdge(rule)
	edge.Env = env
	if poolName := edge.GetBinding("pool"); poolName != "" {
		pool, ok := p.graph.Pools[poolName]
		if !ok {
			return p.lex.errorf("unknown pool name %q", poolName)
		}
		edge.Pool = pool
	}

	edge.Outputs = make([]*Node, 0, len(outs))
	for i := range outs {
		path := outs[i].Evaluate(env)
		if path == "" {
			return p.lex.errorf("empty path")
		}
		path = CanonicalizePath(path)
		if !p.graph.addOut(edge, path) {
			if p.opts.ErrOnDupeEdge {
				return p.lex.errorf("multiple rules generate %s", path)
			}
			if len(outs)-i <= implicitOuts {
				implicitOuts--
			}
		}
	}
	if len(edge.Outputs) == 0 {
		p.graph.Edges = p.graph.Edges[:len(p.graph.Edges)-1]
		return nil
	}
	edge.ImplicitOuts = implicitOuts

	edge.Inputs = make([]*Node, 0, len(ins))
	for _, in := range ins {
		path := in.Evaluate(env)
		if path == "" {
			return p.lex.errorf("empty path")
		}
		p.graph.addIn(edge, CanonicalizePath(path))
	}
	edge.ImplicitDeps = implicit
	edge.OrderOnlyDeps = orderOnly
	return nil
}

func (p *parser) skipSpaces() {
	for p.lex.peekByte() == ' ' {
		p.lex.pos++
	}
}

func (p *parser) parseInclude() error {
	ev, err := p.lex.readEvalString(true)
	if err != nil {
		return err
	}
	if err := p.expect(tokNewline); err != nil {
		return err
	}
	path := ev.Evaluate(p.env)
	sub := &parser{
		lex:     newLexer(path, mustRead(p.baseDir, path)),
		graph:   p.graph,
		env:     p.env,
		opts:    p.opts,
		baseDir: p.baseDir,
	}
	return sub.parse()
}

func (p *parser) parseSubninja() error {
	ev, err := p.lex.readEvalString(true)
	if err != nil {
		return err
	}
	if err := p.expect(tokNewline); err != nil {
		return err
	}
	path := ev.Evaluate(p.env)
	sub := &parser{
		lex:     newLexer(path, mustRead(p.baseDir, path)),
		graph:   p.graph,
		env:     NewBindingEnv(p.env),
		opts:    p.opts,
		baseDir: p.baseDir,
	}
	return sub.parse()
}

func mustRead(baseDir, path string) string {
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(baseDir, path)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return ""
	}
	return string(data)
}

// LookupRuleCurrentScope reports a rule defined directly in b, ignoring
// parent scopes — used to detect duplicate rule definitions.
func (b *BindingEnv) LookupRuleCurrentScope(name string) *Rule {
	return b.Rules[name]
}
