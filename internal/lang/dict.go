package lang

// NewDict allocates an empty dict in its small linked-list layout.
func (h *Heap) NewDict() Handle {
	idx := len(h.dicts)
	h.dicts = append(h.dicts, dictData{head: -1, tail: -1})
	return h.alloc(KindDict, idx)
}

func (h *Heap) dict(v Handle) *dictData {
	if h.Kind(v) != KindDict {
		return nil
	}
	return &h.dicts[h.slot(v)]
}

// DictLen returns the number of keys in v.
func (h *Heap) DictLen(v Handle) int {
	d := h.dict(v)
	if d == nil {
		return 0
	}
	return d.length
}

// keyEqual compares two dict keys. Keys may be string (interned, so
// handle equality suffices) or integer (compare by value).
func (h *Heap) keyEqual(a, b Handle) bool {
	if a == b {
		return true
	}
	if h.Kind(a) == KindNumber && h.Kind(b) == KindNumber {
		av, _ := h.Number(a)
		bv, _ := h.Number(b)
		return av == bv
	}
	return false
}

// DictSet inserts or overwrites key->val in v, promoting to the hash
// layout once the cell count crosses dictPromoteThreshold.
func (h *Heap) DictSet(v, key, val Handle) {
	d := h.dict(v)
	if d == nil {
		return
	}
	if d.layout == dictLayoutHash {
		if _, exists := d.hash[key]; !exists {
			d.order = append(d.order, key)
			d.length++
		}
		d.hash[key] = val
		return
	}

	for c := d.head; c != -1; c = h.dictCells[c].next {
		if h.keyEqual(h.dictCells[c].key, key) {
			h.dictCells[c].val = val
			return
		}
	}
	idx := int32(len(h.dictCells))
	h.dictCells = append(h.dictCells, dictCell{key: key, val: val, next: -1})
	if d.tail == -1 {
		d.head = idx
	} else {
		h.dictCells[d.tail].next = idx
	}
	d.tail = idx
	d.length++

	if d.length > dictPromoteThreshold {
		h.promoteDict(d)
	}
}

func (h *Heap) promoteDict(d *dictData) {
	hash := make(map[Handle]Handle, d.length)
	order := make([]Handle, 0, d.length)
	for c := d.head; c != -1; c = h.dictCells[c].next {
		cell := h.dictCells[c]
		if _, exists := hash[cell.key]; !exists {
			order = append(order, cell.key)
		}
		hash[cell.key] = cell.val
	}
	d.layout = dictLayoutHash
	d.hash = hash
	d.order = order
	d.head, d.tail = -1, -1
}

// DictGet looks up key in v.
func (h *Heap) DictGet(v, key Handle) (Handle, bool) {
	d := h.dict(v)
	if d == nil {
		return HandleNull, false
	}
	if d.layout == dictLayoutHash {
		val, ok := d.hash[key]
		return val, ok
	}
	for c := d.head; c != -1; c = h.dictCells[c].next {
		if h.keyEqual(h.dictCells[c].key, key) {
			return h.dictCells[c].val, true
		}
	}
	return HandleNull, false
}

// DictKeys returns the keys of v in insertion order.
func (h *Heap) DictKeys(v Handle) []Handle {
	d := h.dict(v)
	if d == nil {
		return nil
	}
	if d.layout == dictLayoutHash {
		out := make([]Handle, len(d.order))
		copy(out, d.order)
		return out
	}
	out := make([]Handle, 0, d.length)
	for c := d.head; c != -1; c = h.dictCells[c].next {
		out = append(out, h.dictCells[c].key)
	}
	return out
}

// DuplicateDictFull deep-copies all entries into a new dict handle.
func (h *Heap) DuplicateDictFull(v Handle) Handle {
	out := h.NewDict()
	for _, k := range h.DictKeys(v) {
		val, _ := h.DictGet(v, k)
		h.DictSet(out, k, val)
	}
	return out
}
