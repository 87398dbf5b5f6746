package lang

// kindType maps a heap Kind to its simple Type flag, for the common
// case of typechecking a value that isn't listified or complex.
func kindType(k Kind) Type {
	switch k {
	case KindNull:
		return TypeNull
	case KindDisabler:
		return TypeDisabler
	case KindBool:
		return TypeBool
	case KindFile:
		return TypeFile
	case KindFeatureOpt:
		return TypeFeatureOpt
	case KindMachine:
		return TypeMachine
	case KindNumber:
		return TypeNumber
	case KindString:
		return TypeString
	case KindArray:
		return TypeArray
	case KindDict:
		return TypeDict
	case KindFunc:
		return TypeFunc
	case KindCapture:
		return TypeFunc
	case KindIterator:
		return TypeIterator
	case KindTypeInfo:
		return TypeTypeInfo
	case KindCompiler:
		return TypeCompiler
	case KindBuildTarget:
		return TypeBuildTarget
	case KindCustomTarget:
		return TypeCustomTarget
	case KindDependency:
		return TypeDependency
	case KindExternalProgram:
		return TypeExternalProgram
	case KindRunResult:
		return TypeRunResult
	case KindConfigurationData:
		return TypeConfigurationData
	case KindTest:
		return TypeTest
	case KindModule:
		return TypeModule
	case KindInstallTarget:
		return TypeInstallTarget
	case KindEnvironment:
		return TypeEnvironment
	case KindIncludeDirectory:
		return TypeIncludeDirectory
	case KindOption:
		return TypeOption
	case KindGenerator:
		return TypeGenerator
	case KindGeneratedList:
		return TypeGeneratedList
	case KindAliasTarget:
		return TypeAliasTarget
	case KindBothLibs:
		return TypeBothLibs
	case KindSourceSet:
		return TypeSourceSet
	case KindSourceConfiguration:
		return TypeSourceConfiguration
	default:
		return 0
	}
}

// Typecheck reports whether v satisfies declared type tag, recursing
// into complex types and handling the listify modifier (a bare value
// is accepted wherever a list is declared, and vice versa is not
// implied: listify only relaxes a single value into acceptance, it does
// not make arrays accept where a scalar was required outright — it
// always means "single-or-array").
func (h *Heap) Typecheck(v Handle, tag Type) bool {
	if tag&TypeAny != 0 {
		return true
	}
	if v == HandleDisabler {
		// disablers propagate through everything; treated as satisfying
		// any type so the caller's short-circuit logic can react to it.
		return true
	}

	if HasComplex(tag) {
		ct, ok := h.typeTable.Lookup(tag)
		if !ok {
			return false
		}
		switch ct.Kind {
		case ComplexNested:
			if h.Kind(v) == KindArray && ct.Container&TypeArray != 0 {
				for _, e := range h.ArrayValues(v) {
					if !h.Typecheck(e, ct.Inner) {
						return false
					}
				}
				return true
			}
			if h.Kind(v) == KindDict && ct.Container&TypeDict != 0 {
				for _, k := range h.DictKeys(v) {
					val, _ := h.DictGet(v, k)
					if !h.Typecheck(val, ct.Inner) {
						return false
					}
				}
				return true
			}
			return false
		case ComplexOr:
			for _, alt := range ct.Alternatives {
				if h.Typecheck(v, alt) {
					return true
				}
			}
			return false
		case ComplexEnum:
			if h.Kind(v) != KindString {
				return false
			}
			sv := h.StringValue(v)
			for _, want := range ct.Values {
				if sv == want {
					return true
				}
			}
			return false
		}
		return false
	}

	simple := tag &^ (flagListify | flagGlob)

	if IsListify(tag) && h.Kind(v) == KindArray {
		for _, e := range h.ArrayValues(v) {
			if !h.typecheckSimple(e, simple) {
				return false
			}
		}
		return true
	}

	return h.typecheckSimple(v, simple)
}

func (h *Heap) typecheckSimple(v Handle, simple Type) bool {
	kt := kindType(h.Kind(v))
	return kt != 0 && simple&kt != 0
}

// Listify collapses v into a single-element array if it is a scalar,
// or returns v unchanged if it is already an array. Used when binding
// a parameter declared with the listify modifier.
func (h *Heap) Listify(v Handle) Handle {
	if h.Kind(v) == KindArray {
		return v
	}
	out := h.NewArray()
	h.ArrayPush(out, v)
	return out
}
