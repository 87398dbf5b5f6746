package lang

import (
	"fmt"
	"strconv"
	"strings"
)

// RegisterBuiltins installs the free functions and built-in methods
// every build definition can call: string/array/dict/number utility
// methods, plus the free conversion and message functions. Domain
// packages (toolchain, workspace, backend) register their own
// project()/executable()/dependency() style functions separately with
// the same registry so bytecode compiled against one registry resolves
// both layers identically.
func RegisterBuiltins(r *Registry, diags diagSink) {
	r.RegisterFree("message", func(vm *VM, a Args) (Handle, error) {
		diags.logInfo(joinStringify(vm, a.Pos))
		return HandleNull, nil
	})
	r.RegisterFree("warning", func(vm *VM, a Args) (Handle, error) {
		diags.logWarning(joinStringify(vm, a.Pos))
		return HandleNull, nil
	})
	r.RegisterFree("error", func(vm *VM, a Args) (Handle, error) {
		return HandleNull, fmt.Errorf("%s", joinStringify(vm, a.Pos))
	})
	r.RegisterFree("assert", func(vm *VM, a Args) (Handle, error) {
		if len(a.Pos) == 0 {
			return HandleNull, fmt.Errorf("assert() requires a condition")
		}
		b, ok := IsTruthy(a.Pos[0])
		if !ok {
			return HandleNull, fmt.Errorf("assert() condition must be a bool")
		}
		if !b {
			msg := "assertion failed"
			if len(a.Pos) > 1 {
				msg = vm.stringify(a.Pos[1])
			}
			return HandleNull, fmt.Errorf("%s", msg)
		}
		return HandleNull, nil
	})
	r.RegisterFree("str", func(vm *VM, a Args) (Handle, error) {
		if len(a.Pos) != 1 {
			return HandleNull, fmt.Errorf("str() takes exactly one argument")
		}
		return vm.heap.String(vm.stringify(a.Pos[0])), nil
	})
	r.RegisterFree("int", func(vm *VM, a Args) (Handle, error) {
		if len(a.Pos) != 1 || vm.heap.Kind(a.Pos[0]) != KindString {
			return HandleNull, fmt.Errorf("int() takes exactly one string argument")
		}
		n, err := strconv.ParseInt(strings.TrimSpace(vm.heap.StringValue(a.Pos[0])), 10, 64)
		if err != nil {
			return HandleNull, fmt.Errorf("int(): %v", err)
		}
		return vm.heap.NewNumber(n), nil
	})
	r.RegisterFree("get_variable", func(vm *VM, a Args) (Handle, error) {
		if len(a.Pos) == 0 || vm.heap.Kind(a.Pos[0]) != KindString {
			return HandleNull, fmt.Errorf("get_variable() requires a string name")
		}
		v, ok := vm.scopes.Load(vm.heap, vm.heap.StringValue(a.Pos[0]))
		if !ok {
			if len(a.Pos) > 1 {
				return a.Pos[1], nil
			}
			return HandleNull, fmt.Errorf("unknown variable %q", vm.heap.StringValue(a.Pos[0]))
		}
		return v, nil
	})
	r.RegisterFree("is_disabler", func(vm *VM, a Args) (Handle, error) {
		return Bool(len(a.Pos) == 1 && a.Pos[0] == HandleDisabler), nil
	})
	r.RegisterFree("disabler", func(vm *VM, a Args) (Handle, error) {
		return HandleDisabler, nil
	})
	r.RegisterFree("typeof", func(vm *VM, a Args) (Handle, error) {
		if len(a.Pos) != 1 {
			return HandleNull, fmt.Errorf("typeof() takes exactly one argument")
		}
		return vm.heap.String(vm.heap.Kind(a.Pos[0]).String()), nil
	})

	registerStringMethods(r)
	registerArrayMethods(r)
	registerDictMethods(r)
	registerNumberMethods(r)
}

// diagSink is the narrow logging surface natives need, implemented by
// the host (the workspace package wraps its logrus logger in it) so
// this package stays independent of any particular logging library.
type diagSink interface {
	logInfo(msg string)
	logWarning(msg string)
}

func joinStringify(vm *VM, args []Handle) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = vm.stringify(a)
	}
	return strings.Join(parts, " ")
}

func registerStringMethods(r *Registry) {
	r.RegisterMethod(KindString, "strip", func(vm *VM, a Args) (Handle, error) {
		s := vm.heap.StringValue(a.Recv)
		if len(a.Pos) == 1 {
			cut := vm.heap.StringValue(a.Pos[0])
			return vm.heap.String(strings.Trim(s, cut)), nil
		}
		return vm.heap.String(strings.TrimSpace(s)), nil
	})
	r.RegisterMethod(KindString, "to_upper", func(vm *VM, a Args) (Handle, error) {
		return vm.heap.String(strings.ToUpper(vm.heap.StringValue(a.Recv))), nil
	})
	r.RegisterMethod(KindString, "to_lower", func(vm *VM, a Args) (Handle, error) {
		return vm.heap.String(strings.ToLower(vm.heap.StringValue(a.Recv))), nil
	})
	r.RegisterMethod(KindString, "contains", func(vm *VM, a Args) (Handle, error) {
		if len(a.Pos) != 1 {
			return HandleNull, fmt.Errorf("contains() takes one argument")
		}
		return Bool(strings.Contains(vm.heap.StringValue(a.Recv), vm.heap.StringValue(a.Pos[0]))), nil
	})
	r.RegisterMethod(KindString, "startswith", func(vm *VM, a Args) (Handle, error) {
		if len(a.Pos) != 1 {
			return HandleNull, fmt.Errorf("startswith() takes one argument")
		}
		return Bool(strings.HasPrefix(vm.heap.StringValue(a.Recv), vm.heap.StringValue(a.Pos[0]))), nil
	})
	r.RegisterMethod(KindString, "endswith", func(vm *VM, a Args) (Handle, error) {
		if len(a.Pos) != 1 {
			return HandleNull, fmt.Errorf("endswith() takes one argument")
		}
		return Bool(strings.HasSuffix(vm.heap.StringValue(a.Recv), vm.heap.StringValue(a.Pos[0]))), nil
	})
	r.RegisterMethod(KindString, "split", func(vm *VM, a Args) (Handle, error) {
		s := vm.heap.StringValue(a.Recv)
		sep := " "
		if len(a.Pos) == 1 {
			sep = vm.heap.StringValue(a.Pos[0])
		}
		var parts []string
		if len(a.Pos) == 0 {
			parts = strings.Fields(s)
		} else {
			parts = strings.Split(s, sep)
		}
		out := vm.heap.NewArray()
		for _, p := range parts {
			vm.heap.ArrayPush(out, vm.heap.String(p))
		}
		return out, nil
	})
	r.RegisterMethod(KindString, "replace", func(vm *VM, a Args) (Handle, error) {
		if len(a.Pos) != 2 {
			return HandleNull, fmt.Errorf("replace() takes two arguments")
		}
		s := vm.heap.StringValue(a.Recv)
		from := vm.heap.StringValue(a.Pos[0])
		to := vm.heap.StringValue(a.Pos[1])
		return vm.heap.String(strings.ReplaceAll(s, from, to)), nil
	})
	r.RegisterMethod(KindString, "format", func(vm *VM, a Args) (Handle, error) {
		s := vm.heap.StringValue(a.Recv)
		for i, arg := range a.Pos {
			s = strings.ReplaceAll(s, fmt.Sprintf("@%d@", i), vm.stringify(arg))
		}
		return vm.heap.String(s), nil
	})
	r.RegisterMethod(KindString, "to_int", func(vm *VM, a Args) (Handle, error) {
		n, err := strconv.ParseInt(strings.TrimSpace(vm.heap.StringValue(a.Recv)), 10, 64)
		if err != nil {
			return HandleNull, fmt.Errorf("to_int(): %v", err)
		}
		return vm.heap.NewNumber(n), nil
	})
	r.RegisterMethod(KindString, "version_compare", func(vm *VM, a Args) (Handle, error) {
		if len(a.Pos) != 1 {
			return HandleNull, fmt.Errorf("version_compare() takes one argument")
		}
		return Bool(compareVersionExpr(vm.heap.StringValue(a.Recv), vm.heap.StringValue(a.Pos[0]))), nil
	})
}

func registerArrayMethods(r *Registry) {
	r.RegisterMethod(KindArray, "length", func(vm *VM, a Args) (Handle, error) {
		return vm.heap.NewNumber(int64(vm.heap.ArrayLen(a.Recv))), nil
	})
	r.RegisterMethod(KindArray, "contains", func(vm *VM, a Args) (Handle, error) {
		if len(a.Pos) != 1 {
			return HandleNull, fmt.Errorf("contains() takes one argument")
		}
		for _, e := range vm.heap.ArrayValues(a.Recv) {
			if vm.equal(e, a.Pos[0]) {
				return HandleTrue, nil
			}
		}
		return HandleFalse, nil
	})
	r.RegisterMethod(KindArray, "get", func(vm *VM, a Args) (Handle, error) {
		if len(a.Pos) == 0 {
			return HandleNull, fmt.Errorf("get() requires an index")
		}
		n, ok := vm.heap.Number(a.Pos[0])
		if !ok {
			return HandleNull, fmt.Errorf("get() index must be a number")
		}
		v, ok := vm.heap.ArrayGet(a.Recv, int(n))
		if !ok {
			if len(a.Pos) > 1 {
				return a.Pos[1], nil
			}
			return HandleNull, fmt.Errorf("array index %d out of bounds", n)
		}
		return v, nil
	})
}

func registerDictMethods(r *Registry) {
	r.RegisterMethod(KindDict, "keys", func(vm *VM, a Args) (Handle, error) {
		out := vm.heap.NewArray()
		for _, k := range vm.heap.DictKeys(a.Recv) {
			vm.heap.ArrayPush(out, k)
		}
		return out, nil
	})
	r.RegisterMethod(KindDict, "has_key", func(vm *VM, a Args) (Handle, error) {
		if len(a.Pos) != 1 {
			return HandleNull, fmt.Errorf("has_key() takes one argument")
		}
		_, ok := vm.heap.DictGet(a.Recv, a.Pos[0])
		return Bool(ok), nil
	})
	r.RegisterMethod(KindDict, "get", func(vm *VM, a Args) (Handle, error) {
		if len(a.Pos) == 0 {
			return HandleNull, fmt.Errorf("get() requires a key")
		}
		v, ok := vm.heap.DictGet(a.Recv, a.Pos[0])
		if !ok {
			if len(a.Pos) > 1 {
				return a.Pos[1], nil
			}
			return HandleNull, fmt.Errorf("key not present in dictionary")
		}
		return v, nil
	})
}

func registerNumberMethods(r *Registry) {
	r.RegisterMethod(KindNumber, "to_string", func(vm *VM, a Args) (Handle, error) {
		n, _ := vm.heap.Number(a.Recv)
		return vm.heap.String(strconv.FormatInt(n, 10)), nil
	})
	r.RegisterMethod(KindNumber, "is_odd", func(vm *VM, a Args) (Handle, error) {
		n, _ := vm.heap.Number(a.Recv)
		return Bool(n%2 != 0), nil
	})
	r.RegisterMethod(KindNumber, "is_even", func(vm *VM, a Args) (Handle, error) {
		n, _ := vm.heap.Number(a.Recv)
		return Bool(n%2 == 0), nil
	})
}

// compareVersionExpr implements the `'1.2.3'.version_compare('>=1.0.0')`
// comparator: a leading operator (>=, <=, ==, !=, >, <) followed by a
// dotted version, comparing numerically component by component.
func compareVersionExpr(version, expr string) bool {
	ops := []string{">=", "<=", "==", "!=", ">", "<"}
	op := "=="
	rhs := expr
	for _, candidate := range ops {
		if strings.HasPrefix(expr, candidate) {
			op = candidate
			rhs = strings.TrimSpace(expr[len(candidate):])
			break
		}
	}
	cmp := compareVersions(version, rhs)
	switch op {
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	default:
		return false
	}
}

func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv int64
		if i < len(as) {
			av, _ = strconv.ParseInt(as[i], 10, 64)
		}
		if i < len(bs) {
			bv, _ = strconv.ParseInt(bs[i], 10, 64)
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}
