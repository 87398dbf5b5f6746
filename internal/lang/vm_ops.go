package lang

import (
	"fmt"
	"strconv"
	"strings"
)

// arith implements the four arithmetic operators plus '+' overloaded
// for string concatenation and array/dict merging, mirroring the value
// semantics a build-definition language needs: numbers add/subtract/
// multiply/divide/mod, strings and arrays concatenate with '+', and
// dicts merge with '+' (right-hand keys win).
func (vm *VM) arith(op Op, l, r Handle) (Handle, error) {
	lk, rk := vm.heap.Kind(l), vm.heap.Kind(r)

	if op == OpAdd {
		switch {
		case lk == KindString && rk == KindString:
			return vm.heap.String(vm.heap.StringValue(l) + vm.heap.StringValue(r)), nil
		case lk == KindArray:
			out := vm.heap.DuplicateArrayFull(l)
			if rk == KindArray {
				for _, v := range vm.heap.ArrayValues(r) {
					vm.heap.ArrayPush(out, v)
				}
			} else {
				vm.heap.ArrayPush(out, r)
			}
			return out, nil
		case lk == KindDict && rk == KindDict:
			out := vm.heap.DuplicateDictFull(l)
			for _, k := range vm.heap.DictKeys(r) {
				v, _ := vm.heap.DictGet(r, k)
				vm.heap.DictSet(out, k, v)
			}
			return out, nil
		}
	}

	ln, lok := vm.heap.Number(l)
	rn, rok := vm.heap.Number(r)
	if !lok || !rok {
		return HandleNull, fmt.Errorf("cannot apply operator to %s and %s", lk, rk)
	}
	switch op {
	case OpAdd:
		return vm.heap.NewNumber(ln + rn), nil
	case OpSub:
		return vm.heap.NewNumber(ln - rn), nil
	case OpMul:
		return vm.heap.NewNumber(ln * rn), nil
	case OpDiv:
		if rn == 0 {
			return HandleNull, fmt.Errorf("division by zero")
		}
		return vm.heap.NewNumber(ln / rn), nil
	case OpMod:
		if rn == 0 {
			return HandleNull, fmt.Errorf("modulo by zero")
		}
		return vm.heap.NewNumber(ln % rn), nil
	default:
		return HandleNull, fmt.Errorf("unsupported arithmetic opcode %d", op)
	}
}

// equal implements value equality: identical handles are always equal
// (covers null/true/false/disabler singletons), numbers and strings
// compare by value, arrays and dicts compare structurally and
// recursively, everything else falls back to handle identity.
func (vm *VM) equal(l, r Handle) bool {
	if l == r {
		return true
	}
	lk, rk := vm.heap.Kind(l), vm.heap.Kind(r)
	if lk != rk {
		return false
	}
	switch lk {
	case KindNumber:
		ln, _ := vm.heap.Number(l)
		rn, _ := vm.heap.Number(r)
		return ln == rn
	case KindString:
		return vm.heap.StringValue(l) == vm.heap.StringValue(r)
	case KindArray:
		lv, rv := vm.heap.ArrayValues(l), vm.heap.ArrayValues(r)
		if len(lv) != len(rv) {
			return false
		}
		for i := range lv {
			if !vm.equal(lv[i], rv[i]) {
				return false
			}
		}
		return true
	case KindDict:
		lkeys := vm.heap.DictKeys(l)
		if len(lkeys) != vm.heap.DictLen(r) {
			return false
		}
		for _, k := range lkeys {
			lv, _ := vm.heap.DictGet(l, k)
			rv, ok := vm.heap.DictGet(r, k)
			if !ok || !vm.equal(lv, rv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// contains implements the 'in' operator: substring search for strings,
// membership for arrays, key presence for dicts.
func (vm *VM) contains(container, needle Handle) (bool, error) {
	switch vm.heap.Kind(container) {
	case KindString:
		if vm.heap.Kind(needle) != KindString {
			return false, fmt.Errorf("'in' on a string requires a string operand")
		}
		return strings.Contains(vm.heap.StringValue(container), vm.heap.StringValue(needle)), nil
	case KindArray:
		for _, v := range vm.heap.ArrayValues(container) {
			if vm.equal(v, needle) {
				return true, nil
			}
		}
		return false, nil
	case KindDict:
		for _, k := range vm.heap.DictKeys(container) {
			if vm.equal(k, needle) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("'in' requires a string, array or dict, got %s", vm.heap.Kind(container))
	}
}

// index implements the subscript operator: array indexing (negative
// indices count from the end) and dict key lookup.
func (vm *VM) index(base, idx Handle) (Handle, error) {
	switch vm.heap.Kind(base) {
	case KindArray:
		n, ok := vm.heap.Number(idx)
		if !ok {
			return HandleNull, fmt.Errorf("array index must be a number")
		}
		v, ok := vm.heap.ArrayGet(base, int(n))
		if !ok {
			return HandleNull, fmt.Errorf("array index %d out of bounds", n)
		}
		return v, nil
	case KindDict:
		v, ok := vm.heap.DictGet(base, idx)
		if !ok {
			return HandleNull, fmt.Errorf("key not present in dictionary")
		}
		return v, nil
	case KindString:
		n, ok := vm.heap.Number(idx)
		if !ok {
			return HandleNull, fmt.Errorf("string index must be a number")
		}
		s := vm.heap.StringValue(base)
		i := int(n)
		if i < 0 {
			i += len(s)
		}
		if i < 0 || i >= len(s) {
			return HandleNull, fmt.Errorf("string index %d out of bounds", n)
		}
		return vm.heap.String(string(s[i])), nil
	default:
		return HandleNull, fmt.Errorf("%s is not indexable", vm.heap.Kind(base))
	}
}

// stringify renders v for string interpolation (f-strings) and for the
// str() conversion native function.
func (vm *VM) stringify(v Handle) string {
	switch vm.heap.Kind(v) {
	case KindNull:
		return "null"
	case KindBool:
		b, _ := IsTruthy(v)
		if b {
			return "true"
		}
		return "false"
	case KindNumber:
		n, _ := vm.heap.Number(v)
		return strconv.FormatInt(n, 10)
	case KindString:
		return vm.heap.StringValue(v)
	case KindArray:
		vals := vm.heap.ArrayValues(v)
		parts := make([]string, len(vals))
		for i, e := range vals {
			parts[i] = vm.quoteStringify(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindDict:
		keys := vm.heap.DictKeys(v)
		parts := make([]string, len(keys))
		for i, k := range keys {
			val, _ := vm.heap.DictGet(v, k)
			parts[i] = vm.quoteStringify(k) + " : " + vm.quoteStringify(val)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindFile:
		return vm.heap.FileValue(v)
	case KindDisabler:
		return "<disabler>"
	default:
		return fmt.Sprintf("<%s>", vm.heap.Kind(v))
	}
}

// quoteStringify matches the original language's repr-style rendering
// of nested values: strings gain quotes when embedded inside an array
// or dict literal's textual form, but not at the top level.
func (vm *VM) quoteStringify(v Handle) string {
	if vm.heap.Kind(v) == KindString {
		return "'" + vm.heap.StringValue(v) + "'"
	}
	return vm.stringify(v)
}
