package toolchain

import "testing"

func TestGuessVersion(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"gcc (Ubuntu 13.2.0-4ubuntu3) 13.2.0", "13.2.0"},
		{"clang version 18.1.3", "18.1.3"},
		{"GNU ar (GNU Binutils) 2.42", "2.42"},
		{"no version here", "unknown"},
	}
	for _, c := range cases {
		if got := guessVersion(c.in); got != c.want {
			t.Errorf("guessVersion(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCompareVersions(t *testing.T) {
	if compareVersions("9", "10") >= 0 {
		t.Fatal("9 should sort before 10 numerically")
	}
	if compareVersions("13.2.0", "13.2.0") != 0 {
		t.Fatal("equal versions should compare equal")
	}
	if compareVersions("13.10.0", "13.2.0") <= 0 {
		t.Fatal("13.10.0 should be greater than 13.2.0")
	}
}

func TestDetectByMarker(t *testing.T) {
	detect := detectByMarker("gcc", 10, "clang")
	if score, ok := detect("gcc (Ubuntu) 13.2.0"); !ok || score != 10 {
		t.Fatalf("gcc banner: score=%d ok=%v", score, ok)
	}
	if _, ok := detect("Apple clang version 15.0.0"); ok {
		t.Fatal("clang banner should not match the gcc detector")
	}
}

func TestRegistryForLanguage(t *testing.T) {
	r := NewRegistry()
	cCompilers := r.ForLanguage(LangC)
	if len(cCompilers) == 0 {
		t.Fatal("expected at least one registered C compiler")
	}
	for _, e := range cCompilers {
		if e.Kind != KindCompiler {
			t.Fatalf("ForLanguage returned a non-compiler entry: %s", e.ID)
		}
	}
}

func TestRegistryByID(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.ByID("gcc"); !ok {
		t.Fatal("expected built-in gcc entry")
	}
	if _, ok := r.ByID("nonexistent"); ok {
		t.Fatal("unexpected match for unregistered id")
	}
}
