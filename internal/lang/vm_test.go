package lang

import (
	"testing"

	"github.com/lattis-muon/muon-go/internal/diag"
)

func compileAndRun(t *testing.T, heap *Heap, reg *Registry, src string) (Handle, *VM) {
	t.Helper()
	store := diag.NewStore(false)
	p := NewParser("t", src, store, ModeFunctions)
	block := p.Parse()
	if store.HasErrors() {
		for _, d := range store.Sorted() {
			t.Fatalf("parse error: %s", d.Message)
		}
	}
	vm := NewVM(heap, reg)
	c := NewCompiler(vm, 0)
	if err := c.Compile(block); err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if _, err := vm.Run(); err != nil {
		t.Fatalf("run error: %v", err)
	}
	return HandleNull, vm
}

// lookup runs src and returns the value bound to name afterward. Build
// scripts execute for side effects only, so tests assert on a named
// variable instead of a top-level "return value".
func lookup(t *testing.T, heap *Heap, reg *Registry, src, name string) (Handle, *VM) {
	t.Helper()
	_, vm := compileAndRun(t, heap, reg, src)
	v, ok := vm.Scopes().Load(heap, name)
	if !ok {
		t.Fatalf("variable %q was never bound", name)
	}
	return v, vm
}

func registerDisablerNative(reg *Registry) {
	reg.RegisterFree("disabler", func(vm *VM, a Args) (Handle, error) {
		return HandleDisabler, nil
	})
}

func TestDisablerPropagatesThroughArithmeticAndCalls(t *testing.T) {
	heap := NewHeap()
	reg := NewRegistry()
	registerDisablerNative(reg)
	reg.RegisterFree("identity", func(vm *VM, a Args) (Handle, error) {
		if len(a.Pos) != 1 {
			return HandleNull, nil
		}
		return a.Pos[0], nil
	})
	v, _ := lookup(t, heap, reg, "d = disabler()\nx = d + 1\nresult = identity(x)\n", "result")
	if v != HandleDisabler {
		t.Fatalf("expected disabler to propagate through '+' and a call, got kind %s", heap.Kind(v))
	}
}

func TestDisablerShortCircuitsAndOr(t *testing.T) {
	heap := NewHeap()
	reg := NewRegistry()
	registerDisablerNative(reg)
	v, _ := lookup(t, heap, reg, "d = disabler()\nresult = d and true\n", "result")
	if v != HandleDisabler {
		t.Fatalf("expected disabler through 'and', got kind %s", heap.Kind(v))
	}
}

func TestClosureCaptureIsIndependentOfLaterMutation(t *testing.T) {
	heap := NewHeap()
	reg := NewRegistry()
	v, vm := lookup(t, heap, reg, `
x = 1
func make_adder()
  y = x
  func adder(n)
    return n + y
  endfunc
  return adder
endfunc
f = make_adder()
x = 100
result = f(1)
`, "result")
	n, ok := vm.heap.Number(v)
	if !ok {
		t.Fatalf("expected a number result, got kind %s", vm.heap.Kind(v))
	}
	if n != 2 {
		t.Errorf("closure should have captured x=1 at definition time, got adder(1)=%d (want 2)", n)
	}
}

func TestForeachOverArrayBindsElement(t *testing.T) {
	heap := NewHeap()
	reg := NewRegistry()
	v, vm := lookup(t, heap, reg, `
total = 0
foreach e : [1, 2, 3]
  total = total + e
endforeach
`, "total")
	n, ok := vm.heap.Number(v)
	if !ok || n != 6 {
		t.Fatalf("expected total=6, got %v (ok=%v)", n, ok)
	}
}

func TestForeachBreakAndContinue(t *testing.T) {
	heap := NewHeap()
	reg := NewRegistry()
	v, _ := lookup(t, heap, reg, `
total = 0
foreach e : [1, 2, 3, 4, 5]
  if e == 2
    continue
  endif
  if e == 4
    break
  endif
  total = total + e
endforeach
`, "total")
	if got, _ := heap.Number(v); got != 4 {
		t.Errorf("expected total=4 (1+3, skipping 2, stopping before 4+5), got %d", got)
	}
}

func TestTernaryExpression(t *testing.T) {
	heap := NewHeap()
	reg := NewRegistry()
	v, _ := lookup(t, heap, reg, "x = 5\nresult = x > 3 ? 'big' : 'small'\n", "result")
	if got := heap.StringValue(v); got != "big" {
		t.Errorf("got %q, want %q", got, "big")
	}
}

func TestArrayAndDictAddMerge(t *testing.T) {
	heap := NewHeap()
	reg := NewRegistry()
	v, _ := lookup(t, heap, reg, "result = [1, 2] + [3]\n", "result")
	vals := heap.ArrayValues(v)
	if len(vals) != 3 {
		t.Fatalf("expected 3 elements after array '+', got %d", len(vals))
	}
}
