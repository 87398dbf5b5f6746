package toolchain

// ComponentKind distinguishes the three roles a toolchain entry can
// fill; a single compiler binary can itself also act as the linker
// driver (the common "cc is also ld" case), which is why entries carry
// a Kind rather than being split into three unrelated registries.
type ComponentKind int

const (
	KindCompiler ComponentKind = iota
	KindLinker
	KindStaticLinker
)

func (k ComponentKind) String() string {
	switch k {
	case KindCompiler:
		return "compiler"
	case KindLinker:
		return "linker"
	case KindStaticLinker:
		return "static_linker"
	default:
		return "unknown"
	}
}

// detectFn scores a candidate's probe output (its combined stdout and
// stderr from a version-query invocation). A positive score means the
// candidate matches this entry; entries are tried in registry order and
// the highest-scoring match wins, mirroring the original detector's
// highest-score-wins resolution.
type detectFn func(output string) (score int64, ok bool)

// Entry is one registered compiler, linker, or archiver implementation:
// its identity, what languages/kind it serves, how to recognize it from
// probe output, and the argument-generator table driving code
// generation uses to invoke it.
type Entry struct {
	ID            string
	Kind          ComponentKind
	Languages     []Language
	ExeCandidates []string
	VersionArgs   []string
	Detect        detectFn
	Generators    Generators
	// LinkerID and StaticLinkerID name the default sub-component this
	// compiler entry pairs with, consulted when the manifest doesn't
	// force a specific linker/archiver of its own.
	LinkerID       string
	StaticLinkerID string
}

func (e Entry) supportsLanguage(l Language) bool {
	for _, x := range e.Languages {
		if x == l {
			return true
		}
	}
	return false
}

// Registry is the ordered list of known toolchain entries. Order
// matters: it is the tie-break and probe order, matching the original
// registry's "registration order is the fallback" behavior.
type Registry struct {
	entries []Entry
}

// NewRegistry builds the built-in registry: GCC and Clang as compilers
// (each also usable as its own linker driver) plus GNU ar as the
// default static linker. Real installs add to this via Register; it is
// never mutated globally.
func NewRegistry() *Registry {
	r := &Registry{}
	langs := []Language{LangC, LangCPP, LangObjC, LangObjCPP, LangAssembly}

	r.Register(Entry{
		ID:             "gcc",
		Kind:           KindCompiler,
		Languages:      langs,
		ExeCandidates:  []string{"gcc", "cc"},
		VersionArgs:    []string{"--version"},
		Detect:         detectByMarker("gcc", 10, "clang"),
		Generators:     newGCCGenerators(),
		LinkerID:       "gcc",
		StaticLinkerID: "ar",
	})
	r.Register(Entry{
		ID:             "clang",
		Kind:           KindCompiler,
		Languages:      langs,
		ExeCandidates:  []string{"clang", "cc"},
		VersionArgs:    []string{"--version"},
		Detect:         detectByMarker("clang", 10, ""),
		Generators:     newClangGenerators(),
		LinkerID:       "clang",
		StaticLinkerID: "ar",
	})
	r.Register(Entry{
		ID:            "gcc-cpp",
		Kind:          KindCompiler,
		Languages:     []Language{LangCPP},
		ExeCandidates: []string{"g++"},
		VersionArgs:   []string{"--version"},
		Detect:        detectByMarker("g++", 11, "clang"),
		Generators:    newGCCGenerators(),
		LinkerID:      "gcc-cpp",
	})
	r.Register(Entry{
		ID:            "clang-cpp",
		Kind:          KindCompiler,
		Languages:     []Language{LangCPP},
		ExeCandidates: []string{"clang++"},
		VersionArgs:   []string{"--version"},
		Detect:        detectByMarker("clang", 11, ""),
		Generators:    newClangGenerators(),
		LinkerID:      "clang-cpp",
	})
	r.Register(Entry{
		ID:            "ar",
		Kind:          KindStaticLinker,
		ExeCandidates: []string{"ar", "gcc-ar"},
		VersionArgs:   []string{"--version"},
		Detect:        detectByMarker("GNU ar", 10, ""),
		Generators:    newArGenerators(),
	})
	return r
}

// Register appends e to the registry; later entries are lower
// priority than earlier ones when scores tie.
func (r *Registry) Register(e Entry) { r.entries = append(r.entries, e) }

// All returns every registered entry.
func (r *Registry) All() []Entry { return r.entries }

// ForLanguage returns every compiler entry that can build l.
func (r *Registry) ForLanguage(l Language) []Entry {
	var out []Entry
	for _, e := range r.entries {
		if e.Kind == KindCompiler && e.supportsLanguage(l) {
			out = append(out, e)
		}
	}
	return out
}

// ByID looks up a registered entry by its exact ID, used for
// sub-component resolution (a compiler's default LinkerID/StaticLinkerID).
func (r *Registry) ByID(id string) (Entry, bool) {
	for _, e := range r.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// detectByMarker builds a detectFn that scores output containing
// marker unless it also contains excludeMarker, the same
// substring-sniffing approach real `--version` banners are detected
// with (GCC's banner never says "clang", and vice versa, but both
// share enough boilerplate that exclusion beats a strict match).
func detectByMarker(marker string, score int64, excludeMarker string) detectFn {
	return func(output string) (int64, bool) {
		if excludeMarker != "" && containsFold(output, excludeMarker) {
			return 0, false
		}
		if !containsFold(output, marker) {
			return 0, false
		}
		return score, true
	}
}
