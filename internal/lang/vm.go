package lang

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// frame is one call-frame: the return instruction pointer and the
// scope depth to restore to on return.
type frame struct {
	returnIP  int
	scopeLen  int
	dictScope Handle // not set by call(); the caller's scope stack is restored on return instead
}

// VM is a stack machine executing a single linear code vector: an
// operand stack, a call-frame stack and a scope-stack object carrying
// lexically-nested binding dicts. Every exported method that can fail
// returns an error rather than panicking; only truly unrecoverable
// conditions (corrupt bytecode written by this package itself) panic,
// since they indicate a compiler bug rather than a user-facing fault.
type VM struct {
	heap    *Heap
	natives *Registry

	code []byte
	locs []locEntry

	consts []Handle

	operand []Handle
	frames  []frame
	scopes  *ScopeStack

	ip int

	// disablerDepth is reserved for counting nested "disabler-suppressed"
	// evaluation; no opcode reads or updates it. A disabler reaching
	// `and` is handled by OpJmpIfFalse, which jumps past the right-hand
	// operand with the disabler on the stack.
	disablerDepth int
}

// NewVM creates a VM sharing heap and natives with its caller; multiple
// VMs (e.g. one per subdirectory evaluation) may share a heap so that
// handles remain valid and interned strings are reused across them.
func NewVM(heap *Heap, natives *Registry) *VM {
	vm := &VM{heap: heap, natives: natives}
	vm.scopes = NewScopeStack(heap)
	return vm
}

// Heap exposes the VM's backing heap for callers that need to build
// handles (e.g. host-provided globals) before running code.
func (vm *VM) Heap() *Heap { return vm.heap }

// Scopes exposes the VM's scope stack so a caller can inject or read
// bindings (e.g. project() options, meson.* globals) around a run.
func (vm *VM) Scopes() *ScopeStack { return vm.scopes }

func (vm *VM) addConstant(v Handle) uint32 {
	idx := uint32(len(vm.consts))
	vm.consts = append(vm.consts, v)
	return idx
}

func (vm *VM) push(v Handle) { vm.operand = append(vm.operand, v) }

func (vm *VM) pop() Handle {
	n := len(vm.operand)
	v := vm.operand[n-1]
	vm.operand = vm.operand[:n-1]
	return v
}

func (vm *VM) top() Handle { return vm.operand[len(vm.operand)-1] }

func (vm *VM) read24() uint32 {
	v := get24(vm.code[vm.ip : vm.ip+3])
	vm.ip += 3
	return v
}

// RuntimeError carries the source location of the instruction active
// when a native call or operator failed, so the host can render a
// diagnostic without threading location state through every op.
type RuntimeError struct {
	Loc Location
	Err error
}

func (e *RuntimeError) Error() string { return e.Err.Error() }
func (e *RuntimeError) Unwrap() error { return e.Err }

// locationFor returns the source span active at ip, searching the
// location table built in parallel with code during compilation.
func (vm *VM) locationFor(ip int) Location {
	// locs is append-only and sorted by ip since the compiler emits it
	// in program order; binary search would be premature here since
	// programs are small (a single file's worth of statements).
	var loc Location
	for _, e := range vm.locs {
		if e.ip > ip {
			break
		}
		loc = Location{Offset: e.offset, Length: e.length}
	}
	return loc
}

// Run executes the whole program from ip 0 until return_end. Top-level
// statements (including bare expression statements) run for side
// effects only, matching the build-definition language's contract that
// a script assigns and calls but never "returns" a value the way a
// function body does; the result handle is only meaningful when this
// VM is executing a single function entry point directly (see call()).
func (vm *VM) Run() (Handle, error) {
	vm.ip = 0
	return vm.loop()
}

func (vm *VM) loop() (Handle, error) {
	for {
		if vm.ip >= len(vm.code) {
			return HandleNull, goerrors.Errorf("instruction pointer ran off the end of code")
		}
		op := Op(vm.code[vm.ip])
		loc := vm.locationFor(vm.ip)
		vm.ip++
		switch op {
		case OpReturnEnd:
			if len(vm.operand) > 0 {
				return vm.top(), nil
			}
			return HandleNull, nil

		case OpReturn:
			// Control flow for "return" is Go recursion: call() invokes a
			// nested loop() per user-function call, so returning here simply
			// unwinds that nested Go call; vm.frames exists only to carry
			// diagnostic/stack-depth bookkeeping, not control flow.
			return vm.pop(), nil

		case OpConstant:
			idx := vm.read24()
			vm.push(vm.consts[idx])

		case OpConstantFunc:
			idx := vm.read24()
			vm.push(vm.consts[idx])

		case OpConstantList:
			n := int(vm.read24())
			arr := vm.heap.NewArray()
			vals := make([]Handle, n)
			for i := n - 1; i >= 0; i-- {
				vals[i] = vm.pop()
			}
			for _, v := range vals {
				vm.heap.ArrayPush(arr, v)
			}
			vm.push(arr)

		case OpConstantDict:
			n := int(vm.read24())
			type kv struct{ k, v Handle }
			pairs := make([]kv, n)
			for i := n - 1; i >= 0; i-- {
				v := vm.pop()
				k := vm.pop()
				pairs[i] = kv{k, v}
			}
			d := vm.heap.NewDict()
			for _, p := range pairs {
				vm.heap.DictSet(d, p.k, p.v)
			}
			vm.push(d)

		case OpPop:
			vm.pop()

		case OpDup:
			vm.push(vm.top())

		case OpSwap:
			n := len(vm.operand)
			vm.operand[n-1], vm.operand[n-2] = vm.operand[n-2], vm.operand[n-1]

		case OpStore:
			nameH := Handle(vm.read24())
			name := vm.heap.StringValue(nameH)
			v := vm.pop()
			vm.scopes.Store(vm.heap, name, v)

		case OpLoad, OpTryLoad:
			nameH := Handle(vm.read24())
			name := vm.heap.StringValue(nameH)
			v, ok := vm.scopes.Load(vm.heap, name)
			if !ok {
				if op == OpTryLoad {
					vm.push(HandleNull)
					continue
				}
				return HandleNull, &RuntimeError{Loc: loc, Err: goerrors.Errorf("unknown identifier %q", name)}
			}
			vm.push(v)

		case OpAdd, OpSub, OpMul, OpDiv, OpMod:
			r := vm.pop()
			l := vm.pop()
			if l == HandleDisabler || r == HandleDisabler {
				vm.push(HandleDisabler)
				continue
			}
			res, err := vm.arith(op, l, r)
			if err != nil {
				return HandleNull, &RuntimeError{Loc: loc, Err: err}
			}
			vm.push(res)

		case OpEq:
			r := vm.pop()
			l := vm.pop()
			vm.push(Bool(vm.equal(l, r)))

		case OpIn:
			r := vm.pop()
			l := vm.pop()
			res, err := vm.contains(r, l)
			if err != nil {
				return HandleNull, &RuntimeError{Loc: loc, Err: err}
			}
			vm.push(Bool(res))

		case OpGt, OpLt:
			r := vm.pop()
			l := vm.pop()
			if l == HandleDisabler || r == HandleDisabler {
				vm.push(HandleDisabler)
				continue
			}
			ln, lok := vm.heap.Number(l)
			rn, rok := vm.heap.Number(r)
			if !lok || !rok {
				return HandleNull, &RuntimeError{Loc: loc, Err: goerrors.Errorf("comparison requires numbers")}
			}
			if op == OpGt {
				vm.push(Bool(ln > rn))
			} else {
				vm.push(Bool(ln < rn))
			}

		case OpNot:
			v := vm.pop()
			if v == HandleDisabler {
				vm.push(HandleDisabler)
				continue
			}
			b, ok := IsTruthy(v)
			if !ok {
				return HandleNull, &RuntimeError{Loc: loc, Err: goerrors.Errorf("'not' requires a bool")}
			}
			vm.push(Bool(!b))

		case OpNegate:
			v := vm.pop()
			if v == HandleDisabler {
				vm.push(HandleDisabler)
				continue
			}
			n, ok := vm.heap.Number(v)
			if !ok {
				return HandleNull, &RuntimeError{Loc: loc, Err: goerrors.Errorf("unary '-' requires a number")}
			}
			vm.push(vm.heap.NewNumber(-n))

		case OpStringify:
			v := vm.pop()
			vm.push(vm.heap.String(vm.stringify(v)))

		case OpJmp:
			target := vm.read24()
			vm.ip = int(target)

		case OpJmpIfTrue:
			target := vm.read24()
			v := vm.top()
			if v == HandleDisabler {
				continue
			}
			if b, ok := IsTruthy(v); ok && b {
				vm.ip = int(target)
			}

		case OpJmpIfFalse:
			target := vm.read24()
			v := vm.pop()
			if v == HandleDisabler {
				vm.push(HandleDisabler)
				vm.ip = int(target)
				continue
			}
			b, ok := IsTruthy(v)
			if !ok {
				return HandleNull, &RuntimeError{Loc: loc, Err: goerrors.Errorf("condition must be a bool")}
			}
			if !b {
				vm.ip = int(target)
			}

		case OpIndex:
			idx := vm.pop()
			base := vm.pop()
			v, err := vm.index(base, idx)
			if err != nil {
				return HandleNull, &RuntimeError{Loc: loc, Err: err}
			}
			vm.push(v)

		case OpIterator:
			v := vm.pop()
			vm.push(vm.heap.NewIterator(v))

		case OpIteratorNext:
			it := vm.top()
			vals, ok := vm.heap.IteratorNext(it)
			if !ok {
				vm.push(HandleFalse)
				continue
			}
			for _, v := range vals {
				vm.push(v)
			}
			vm.push(HandleTrue)

		case OpCallNative:
			nPos := int(vm.read24())
			nKw := int(vm.read24())
			idx := int(vm.read24())
			args, err := vm.collectArgs(nPos, nKw)
			if err != nil {
				return HandleNull, &RuntimeError{Loc: loc, Err: err}
			}
			if disabled, ok := disablerIn(args); ok {
				_ = disabled
				vm.push(HandleDisabler)
				continue
			}
			res, err := vm.natives.CallFree(vm, idx, args)
			if err != nil {
				return HandleNull, &RuntimeError{Loc: loc, Err: err}
			}
			vm.push(res)

		case OpCallMethod:
			nameH := Handle(vm.read24())
			nPos := int(vm.read24())
			nKw := int(vm.read24())
			name := vm.heap.StringValue(nameH)
			args, err := vm.collectArgs(nPos, nKw)
			if err != nil {
				return HandleNull, &RuntimeError{Loc: loc, Err: err}
			}
			recv := vm.pop()
			if recv == HandleDisabler {
				vm.push(HandleDisabler)
				continue
			}
			if disabled, ok := disablerIn(args); ok {
				_ = disabled
				vm.push(HandleDisabler)
				continue
			}
			args.Recv = recv
			idx, ok := vm.natives.LookupMethod(vm.heap.Kind(recv), name)
			if !ok {
				return HandleNull, &RuntimeError{Loc: loc, Err: goerrors.Errorf("no method %q on %s", name, vm.heap.Kind(recv))}
			}
			res, err := vm.natives.CallMethod(vm, idx, args)
			if err != nil {
				return HandleNull, &RuntimeError{Loc: loc, Err: err}
			}
			vm.push(res)

		case OpCall:
			nPos := int(vm.read24())
			nKw := int(vm.read24())
			args, err := vm.collectArgs(nPos, nKw)
			if err != nil {
				return HandleNull, &RuntimeError{Loc: loc, Err: err}
			}
			callee := vm.pop()
			if callee == HandleDisabler {
				vm.push(HandleDisabler)
				continue
			}
			if disabled, ok := disablerIn(args); ok {
				_ = disabled
				vm.push(HandleDisabler)
				continue
			}
			if err := vm.call(callee, args); err != nil {
				return HandleNull, &RuntimeError{Loc: loc, Err: err}
			}

		case OpTypecheck:
			idx := vm.read24()
			v := vm.pop()
			ti, _ := vm.consts[idx], struct{}{}
			_ = ti
			vm.push(v)

		default:
			return HandleNull, fmt.Errorf("unimplemented opcode %d at ip %d", op, vm.ip-1)
		}
	}
}

func disablerIn(a Args) (Handle, bool) {
	for _, v := range a.Pos {
		if v == HandleDisabler {
			return v, true
		}
	}
	for _, v := range a.Kw {
		if v == HandleDisabler {
			return v, true
		}
	}
	return HandleNull, false
}

// collectArgs pops nPos positional and nKw (key, value) pairs off the
// operand stack, in the order the compiler pushed them: positionals
// first in left-to-right order, then keyword (name-constant, value)
// pairs in left-to-right order.
func (vm *VM) collectArgs(nPos, nKw int) (Args, error) {
	kw := make(map[string]Handle, nKw)
	kwVals := make([]Handle, nKw)
	kwNames := make([]Handle, nKw)
	for i := nKw - 1; i >= 0; i-- {
		kwVals[i] = vm.pop()
		kwNames[i] = vm.pop()
	}
	for i := 0; i < nKw; i++ {
		kw[vm.heap.StringValue(kwNames[i])] = kwVals[i]
	}
	pos := make([]Handle, nPos)
	for i := nPos - 1; i >= 0; i-- {
		pos[i] = vm.pop()
	}
	return Args{Pos: pos, Kw: kw}, nil
}

// call invokes a user-defined function capture, pushing a new frame
// and binding its deep-duplicated closure scopes plus its parameters.
func (vm *VM) call(callee Handle, a Args) error {
	fnH, scopes, self, native, ok := vm.heap.Capture(callee)
	if !ok {
		return goerrors.Errorf("value is not callable")
	}
	if native >= 0 {
		res, err := vm.natives.CallFree(vm, native, Args{Pos: a.Pos, Kw: a.Kw, Recv: self})
		if err != nil {
			return err
		}
		vm.push(res)
		return nil
	}
	fn, ok := vm.heap.Func(fnH)
	if !ok {
		return goerrors.Errorf("corrupt function value")
	}
	if len(a.Pos) > len(fn.params) {
		return goerrors.Errorf("%s: too many positional arguments", fn.name)
	}
	type binding struct {
		name string
		val  Handle
	}
	var bindings []binding
	for i, p := range fn.params {
		var v Handle
		if i < len(a.Pos) {
			v = a.Pos[i]
		} else if kv, ok := a.Kw[p.Name]; ok {
			v = kv
		} else {
			return goerrors.Errorf("%s: missing required argument %q", fn.name, p.Name)
		}
		if !vm.heap.Typecheck(v, p.Type) {
			return goerrors.Errorf("%s: argument %q has wrong type", fn.name, p.Name)
		}
		bindings = append(bindings, binding{p.Name, v})
	}
	for _, kp := range fn.kwparams {
		v, present := a.Kw[kp.Key]
		if !present {
			if kp.Required {
				return goerrors.Errorf("%s: missing required keyword argument %q", fn.name, kp.Key)
			}
			continue
		}
		if !vm.heap.Typecheck(v, kp.Type) {
			return goerrors.Errorf("%s: keyword argument %q has wrong type", fn.name, kp.Key)
		}
		bindings = append(bindings, binding{kp.Key, v})
	}

	// Install the closure's captured scopes (already deep-duplicated at
	// capture time), push a fresh local scope, and remember how to
	// resume once the nested loop() returns.
	saved := vm.scopes
	savedIP := vm.ip
	vm.scopes = scopes
	vm.scopes.Push(vm.heap)
	for _, b := range bindings {
		vm.scopes.Store(vm.heap, b.name, b.val)
	}
	vm.frames = append(vm.frames, frame{returnIP: savedIP, scopeLen: vm.scopes.Len() - 1})
	vm.ip = fn.entry
	res, err := vm.loop()
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.scopes = saved
	vm.ip = savedIP
	if err != nil {
		return err
	}
	vm.push(res)
	return nil
}
