package lang

// ScopeStack is an ordered list of variable-binding dicts, outer to
// inner. store writes to the innermost dict; load searches outward.
type ScopeStack struct {
	dicts []Handle
}

// NewScopeStack creates a scope stack with one empty binding dict.
func NewScopeStack(h *Heap) *ScopeStack {
	return &ScopeStack{dicts: []Handle{h.NewDict()}}
}

// Push adds a new innermost binding dict, used when entering a
// function body.
func (s *ScopeStack) Push(h *Heap) {
	s.dicts = append(s.dicts, h.NewDict())
}

// Pop removes the innermost binding dict.
func (s *ScopeStack) Pop() {
	if len(s.dicts) > 0 {
		s.dicts = s.dicts[:len(s.dicts)-1]
	}
}

// Store writes name->val into the innermost dict.
func (s *ScopeStack) Store(h *Heap, name string, val Handle) {
	inner := s.dicts[len(s.dicts)-1]
	h.DictSet(inner, h.String(name), val)
}

// Load searches outward from the innermost dict for name.
func (s *ScopeStack) Load(h *Heap, name string) (Handle, bool) {
	key := h.String(name)
	for i := len(s.dicts) - 1; i >= 0; i-- {
		if v, ok := h.DictGet(s.dicts[i], key); ok {
			return v, true
		}
	}
	return HandleNull, false
}

// DeepDuplicate copies every binding dict in the stack, matching the
// "capture deep-duplicates the scope stack at capture time" invariant:
// later mutation of the enclosing scope must not alter a previously
// taken capture.
func (s *ScopeStack) DeepDuplicate(h *Heap) *ScopeStack {
	out := make([]Handle, len(s.dicts))
	for i, d := range s.dicts {
		out[i] = h.DuplicateDictFull(d)
	}
	return &ScopeStack{dicts: out}
}

// Len reports the current scope depth.
func (s *ScopeStack) Len() int { return len(s.dicts) }

// NewCapture records fn's scope stack (deep-duplicated) as a closure
// value.
func (h *Heap) NewCapture(fn Handle, scopes *ScopeStack, self Handle) Handle {
	idx := len(h.captures)
	h.captures = append(h.captures, captureData{funcHandle: fn, scopes: scopes.DeepDuplicate(h), self: self, native: -1})
	return h.alloc(KindCapture, idx)
}

// NewNativeCapture wraps a bound native-method receiver as a capture.
func (h *Heap) NewNativeCapture(nativeIdx int, self Handle) Handle {
	idx := len(h.captures)
	h.captures = append(h.captures, captureData{native: nativeIdx, self: self})
	return h.alloc(KindCapture, idx)
}

// Capture returns the capture data for v.
func (h *Heap) Capture(v Handle) (fn Handle, scopes *ScopeStack, self Handle, native int, ok bool) {
	if h.Kind(v) != KindCapture {
		return HandleNull, nil, HandleNull, -1, false
	}
	c := h.captures[h.slot(v)]
	return c.funcHandle, c.scopes, c.self, c.native, true
}

// NewFunc registers a user-defined function's signature and entry point.
func (h *Heap) NewFunc(name string, entry int, params []Param, kwparams []KwParam, ret Type) Handle {
	idx := len(h.funcs)
	h.funcs = append(h.funcs, funcData{name: name, entry: entry, params: params, kwparams: kwparams, returnType: ret})
	return h.alloc(KindFunc, idx)
}

// Func returns the function record for v.
func (h *Heap) Func(v Handle) (funcData, bool) {
	if h.Kind(v) != KindFunc {
		return funcData{}, false
	}
	return h.funcs[h.slot(v)], true
}

// NewIterator creates an iterator positioned at the start of container
// (an array or dict).
func (h *Heap) NewIterator(container Handle) Handle {
	it := iteratorData{container: container}
	switch h.Kind(container) {
	case KindArray:
		it.cell = h.arr(container).head
	case KindDict:
		it.pos = 0
	}
	idx := len(h.iters)
	h.iters = append(h.iters, it)
	return h.alloc(KindIterator, idx)
}

// IteratorNext advances v and returns the next value(s) packed as a
// 1 or 2 element slice (key,value for dicts; just value for arrays),
// or ok=false when exhausted.
func (h *Heap) IteratorNext(v Handle) (vals []Handle, ok bool) {
	if h.Kind(v) != KindIterator {
		return nil, false
	}
	it := &h.iters[h.slot(v)]
	switch h.Kind(it.container) {
	case KindArray:
		if it.cell == -1 {
			return nil, false
		}
		cell := h.arrayCells[it.cell]
		it.cell = cell.next
		return []Handle{cell.val}, true
	case KindDict:
		keys := h.DictKeys(it.container)
		if it.pos >= len(keys) {
			return nil, false
		}
		k := keys[it.pos]
		it.pos++
		val, _ := h.DictGet(it.container, k)
		return []Handle{k, val}, true
	default:
		return nil, false
	}
}

// NewTypeInfo wraps a type value as a first-class typeinfo object.
func (h *Heap) NewTypeInfo(t Type) Handle {
	idx := len(h.typeinfo)
	h.typeinfo = append(h.typeinfo, t)
	return h.alloc(KindTypeInfo, idx)
}

// TypeInfoValue returns the type tag carried by v.
func (h *Heap) TypeInfoValue(v Handle) (Type, bool) {
	if h.Kind(v) != KindTypeInfo {
		return 0, false
	}
	return h.typeinfo[h.slot(v)], true
}
