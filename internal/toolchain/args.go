package toolchain

import "fmt"

// Arity names the shape of one argument-generator function, matching
// the original toolchain header's TOOLCHAIN_SIG_* family: a fixed set
// of parameter shapes every generator is one of, so call sites can
// invoke by name without knowing which toolchain backs them.
type Arity string

const (
	Arity0    Arity = "0"    // no extra params, returns argv
	Arity1I   Arity = "1i"   // one int param, returns argv
	Arity1S   Arity = "1s"   // one string param, returns argv
	Arity2S   Arity = "2s"   // two string params, returns argv
	Arity1S1B Arity = "1s1b" // one string, one bool, returns argv
	ArityNS   Arity = "ns"   // one args-list param, returns argv
	Arity0RB  Arity = "0rb"  // no extra params, returns bool
	Arity1SRB Arity = "1srb" // one string param, returns bool
)

// Args is the generated argv for one argument-generator call.
type Args []string

// ArgFunc is the uniform call shape every generator is invoked through;
// the concrete parameters for its declared Arity are packed into in
// and unpacked by the generator itself, the same way the original
// dispatches through a tagged function-pointer union rather than one
// signature per arity.
type ArgFunc func(in Invocation) (Args, bool, error)

// Invocation carries every possible generator parameter; a given Arity
// only reads the fields that apply to it.
type Invocation struct {
	Int    int
	Str1   string
	Str2   string
	Bool1  bool
	ArgsIn Args
}

// Generators is the named dispatch table a single compiler, linker, or
// archiver entry fills in. Overrides lets a specific toolchain replace
// or add an entry without subclassing; a call site that doesn't find a
// name here treats it as unsupported rather than failing the build.
type Generators map[string]ArgFunc

// Call invokes name with in, reporting ok=false if name isn't
// registered (the 0rb/1srb "capability query" convention: an
// unregistered capability is simply unsupported, not an error).
func (g Generators) Call(name string, in Invocation) (Args, bool, error) {
	fn, ok := g[name]
	if !ok {
		return nil, false, nil
	}
	return fn(in)
}

// MustBool calls a 0rb/1srb-arity generator and collapses it to a bool,
// treating an unregistered capability as false.
func (g Generators) MustBool(name string, in Invocation) bool {
	_, ok := g[name]
	if !ok {
		return false
	}
	args, _, err := g[name](in)
	if err != nil {
		return false
	}
	return len(args) > 0 && args[0] == "true"
}

func boolArgs(v bool) (Args, bool, error) {
	if v {
		return Args{"true"}, true, nil
	}
	return Args{"false"}, true, nil
}

func fmtErr(name string, err error) error {
	return fmt.Errorf("toolchain: %s: %w", name, err)
}
