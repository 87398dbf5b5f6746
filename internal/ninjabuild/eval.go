// Package ninjabuild implements a Samurai/ninja-compatible build graph
// executor: manifest parsing, dependency graph, dirty analysis, the
// .ninja_deps and .ninja_log logs, and a cooperative job scheduler.
package ninjabuild

import "strings"

// tokenKind distinguishes literal text from a variable reference inside
// an EvalString.
type tokenKind int

const (
	tokRaw tokenKind = iota
	tokVar
)

type evalToken struct {
	text string
	kind tokenKind
}

// EvalString is a tokenized string that may contain $var references,
// evaluated lazily against an Env at the point of use.
type EvalString struct {
	parsed []evalToken
}

// Empty reports whether the string has no tokens at all.
func (e *EvalString) Empty() bool { return len(e.parsed) == 0 }

// AddText appends (or extends) a literal run.
func (e *EvalString) AddText(s string) {
	if n := len(e.parsed); n > 0 && e.parsed[n-1].kind == tokRaw {
		e.parsed[n-1].text += s
		return
	}
	e.parsed = append(e.parsed, evalToken{text: s, kind: tokRaw})
}

// AddVar appends a variable reference.
func (e *EvalString) AddVar(name string) {
	e.parsed = append(e.parsed, evalToken{text: name, kind: tokVar})
}

// Evaluate resolves every variable reference against env and concatenates
// the result.
func (e *EvalString) Evaluate(env Env) string {
	if len(e.parsed) == 1 && e.parsed[0].kind == tokRaw {
		return e.parsed[0].text
	}
	var b strings.Builder
	for _, t := range e.parsed {
		if t.kind == tokRaw {
			b.WriteString(t.text)
		} else {
			b.WriteString(env.LookupVariable(t.text))
		}
	}
	return b.String()
}

// Env is the lookup interface an EvalString evaluates against.
type Env interface {
	LookupVariable(name string) string
}

// Rule is a named, invocable build command template.
type Rule struct {
	Name     string
	Bindings map[string]*EvalString
}

// NewRule returns an empty rule named name.
func NewRule(name string) *Rule {
	return &Rule{Name: name, Bindings: map[string]*EvalString{}}
}

// GetBinding returns the raw (unevaluated) binding for key, or nil.
func (r *Rule) GetBinding(key string) *EvalString {
	return r.Bindings[key]
}

// IsReservedBinding reports whether name is one of the rule-level
// variables the manifest grammar treats specially rather than as an
// arbitrary user binding.
func IsReservedBinding(name string) bool {
	switch name {
	case "command", "depfile", "dyndep", "description", "deps",
		"generator", "pool", "restat", "rspfile", "rspfile_content",
		"msvc_deps_prefix":
		return true
	}
	return false
}

// BindingEnv is a scope for $var lookups: a flat string->string map plus
// a chain of rules, with an optional parent scope.
type BindingEnv struct {
	Bindings map[string]string
	Rules    map[string]*Rule
	Parent   *BindingEnv
}

// NewBindingEnv returns a scope chained to parent (nil for the root).
func NewBindingEnv(parent *BindingEnv) *BindingEnv {
	return &BindingEnv{
		Bindings: map[string]string{},
		Rules:    map[string]*Rule{},
		Parent:   parent,
	}
}

// LookupVariable implements Env, searching outward through parent scopes.
func (b *BindingEnv) LookupVariable(name string) string {
	if v, ok := b.Bindings[name]; ok {
		return v
	}
	if b.Parent != nil {
		return b.Parent.LookupVariable(name)
	}
	return ""
}

// LookupRule searches this scope and its parents for a rule.
func (b *BindingEnv) LookupRule(name string) *Rule {
	if r, ok := b.Rules[name]; ok {
		return r
	}
	if b.Parent != nil {
		return b.Parent.LookupRule(name)
	}
	return nil
}

// Pool is a named concurrency limit shared by a group of edges. Depth 0
// means unlimited (the implicit default pool).
type Pool struct {
	Name  string
	Depth int

	queue []*Edge
}

// NewPool returns a pool with the given concurrency cap.
func NewPool(name string, depth int) *Pool {
	return &Pool{Name: name, Depth: depth}
}
