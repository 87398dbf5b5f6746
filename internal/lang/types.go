package lang

// Type is the 64-bit type-tag bitset described in the data model: a set
// of simple type flags plus reserved bits for "listify" (accept a
// single value or a flat array), "glob" (variadic), and an index into
// the complex-type table for nested/union/enum types.
type Type uint64

// Simple type flags. Each occupies its own bit so a parameter can
// declare a union by OR-ing flags together (e.g. string|number).
const (
	TypeNull Type = 1 << iota
	TypeDisabler
	TypeBool
	TypeFile
	TypeFeatureOpt
	TypeMachine
	TypeNumber
	TypeString
	TypeArray
	TypeDict
	TypeCompiler
	TypeBuildTarget
	TypeCustomTarget
	TypeDependency
	TypeExternalProgram
	TypeRunResult
	TypeConfigurationData
	TypeTest
	TypeModule
	TypeInstallTarget
	TypeEnvironment
	TypeIncludeDirectory
	TypeOption
	TypeGenerator
	TypeGeneratedList
	TypeAliasTarget
	TypeBothLibs
	TypeSourceSet
	TypeSourceConfiguration
	TypeIterator
	TypeFunc
	TypeCapture
	TypeTypeInfo
	TypeAny // matches every kind; used for untyped natives

	// Reserved modifier bits, kept above the last simple flag.
	flagListify Type = 1 << 62
	flagGlob    Type = 1 << 61
)

// complexTypeIndexMask reserves the 17 bits 40..56 for an index into a
// per-VM complex-type table (nested/or/enum). Simple
// flags and modifier flags never collide with it because they occupy
// distinct, disjoint bits below bit 61.
const complexTypeIndexMask Type = 0x1FFFF << 40

// Listify marks t as "accept single value or flat array of values".
func Listify(t Type) Type { return t | flagListify }

// IsListify reports whether t carries the listify modifier.
func IsListify(t Type) bool { return t&flagListify != 0 }

// Glob marks t as a variadic ("glob") parameter.
func Glob(t Type) Type { return t | flagGlob }

// IsGlob reports whether t carries the glob modifier.
func IsGlob(t Type) bool { return t&flagGlob != 0 }

// ComplexKind distinguishes the three complex type shapes.
type ComplexKind int

const (
	ComplexNested ComplexKind = iota // container(inner), e.g. array[string]
	ComplexOr                        // a|b
	ComplexEnum                       // one of a fixed set of string values
)

// ComplexType describes a nested/union/enum type referenced from a
// complex-type table entry. Container and Inner are only meaningful for
// ComplexNested; Alternatives only for ComplexOr; Values only for
// ComplexEnum.
type ComplexType struct {
	Kind         ComplexKind
	Container    Type
	Inner        Type
	Alternatives []Type
	Values       []string
}

// TypeTable holds the complex-type entries a workspace's types
// reference by index, analogous to the object heap's typed buckets.
type TypeTable struct {
	entries []ComplexType
}

// Intern registers ct and returns a Type tag carrying its index. The
// stored index is biased by one so that an all-zero index field (the
// zero Type value, meaning "no complex type") never aliases entry 0.
func (t *TypeTable) Intern(ct ComplexType) Type {
	idx := Type(len(t.entries)) + 1
	t.entries = append(t.entries, ct)
	return (idx << 40) & complexTypeIndexMask
}

// Lookup returns the complex type referenced by t's index bits.
func (t *TypeTable) Lookup(tag Type) (ComplexType, bool) {
	idx := int((tag&complexTypeIndexMask)>>40) - 1
	if idx < 0 || idx >= len(t.entries) {
		return ComplexType{}, false
	}
	return t.entries[idx], true
}

// HasComplex reports whether tag carries a complex-type index.
func HasComplex(tag Type) bool {
	return tag&complexTypeIndexMask != 0
}
