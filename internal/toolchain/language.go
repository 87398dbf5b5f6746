// Package toolchain models the compiler/linker/archiver registry:
// detection of installed toolchains, a cached compiler-check facility,
// and an argument-generator dispatch table each toolchain entry fills
// in for the handful of operations the backend needs (compile-only,
// include paths, output naming, and so on).
package toolchain

// Language is the source language a compiler entry can be invoked
// against. The _hdr variants exist purely so dependency-scanning rule
// selection can tell a header from its compilable counterpart.
type Language int

const (
	LangNone Language = iota
	LangC
	LangCPP
	LangObjC
	LangObjCPP
	LangAssembly
	LangLLVMIR
	LangNASM
	LangRust
	LangCHeader
	LangCPPHeader
	LangObjCHeader
	LangObjCPPHeader
	LangCObject
	langCount
)

var languageNames = map[Language]string{
	LangNone:         "none",
	LangC:            "c",
	LangCPP:          "cpp",
	LangObjC:         "objc",
	LangObjCPP:       "objcpp",
	LangAssembly:     "assembly",
	LangLLVMIR:       "llvm_ir",
	LangNASM:         "nasm",
	LangRust:         "rust",
	LangCHeader:      "c_hdr",
	LangCPPHeader:    "cpp_hdr",
	LangObjCHeader:   "objc_hdr",
	LangObjCPPHeader: "objcpp_hdr",
	LangCObject:      "c_obj",
}

func (l Language) String() string {
	if s, ok := languageNames[l]; ok {
		return s
	}
	return "unknown"
}

// properties describes a language's role in dependency scanning and
// linking, mirroring the original's per-language `is_header`/
// `is_linkable` flags.
type properties struct {
	header   bool
	linkable bool
}

var languageProperties = map[Language]properties{
	LangC:            {linkable: true},
	LangCPP:          {linkable: true},
	LangObjC:         {linkable: true},
	LangObjCPP:       {linkable: true},
	LangAssembly:     {linkable: true},
	LangLLVMIR:       {linkable: true},
	LangNASM:         {linkable: true},
	LangRust:         {linkable: true},
	LangCHeader:      {header: true},
	LangCPPHeader:    {header: true},
	LangObjCHeader:   {header: true},
	LangObjCPPHeader: {header: true},
	LangCObject:      {},
}

// IsHeader reports whether l is a header-only pseudo-language used for
// dependency scanning, never compiled on its own.
func (l Language) IsHeader() bool { return languageProperties[l].header }

// IsLinkable reports whether an object produced from l participates in
// the final link step.
func (l Language) IsLinkable() bool { return languageProperties[l].linkable }

// LanguageByExt guesses a source language from a file extension
// (without the leading dot), the same lookup a build backend uses to
// pick which compiler entry handles a given source file.
func LanguageByExt(ext string) Language {
	switch ext {
	case "c":
		return LangC
	case "cc", "cpp", "cxx", "c++":
		return LangCPP
	case "m":
		return LangObjC
	case "mm":
		return LangObjCPP
	case "s", "S":
		return LangAssembly
	case "ll":
		return LangLLVMIR
	case "asm":
		return LangNASM
	case "rs":
		return LangRust
	case "h":
		return LangCHeader
	case "hh", "hpp", "hxx":
		return LangCPPHeader
	default:
		return LangNone
	}
}

// OptimizationLevel is one of the closed set of -O equivalents every
// compiler entry's "optimization" argument generator accepts.
type OptimizationLevel int

const (
	OptNone OptimizationLevel = iota
	Opt0
	Opt1
	Opt2
	Opt3
	OptG
	OptS
)

// PGOStage selects between profile-generation and profile-use builds.
type PGOStage int

const (
	PGOGenerate PGOStage = iota
	PGOUse
)

// WarningLevel is the closed set of -W equivalents every compiler
// entry's "warning_lvl" argument generator accepts.
type WarningLevel int

const (
	Warn0 WarningLevel = iota
	Warn1
	Warn2
	Warn3
	WarnEverything
)
