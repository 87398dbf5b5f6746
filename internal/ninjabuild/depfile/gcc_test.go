package depfile

import "testing"

func TestParseGCCBasic(t *testing.T) {
	p, err := ParseGCC([]byte("build/ninja.o: ninja.cc ninja.h eval_env.h manifest_parser.h\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Outs) != 1 || p.Outs[0] != "build/ninja.o" {
		t.Fatalf("outs = %v", p.Outs)
	}
	if len(p.Ins) != 4 {
		t.Fatalf("ins = %v", p.Ins)
	}
}

func TestParseGCCContinuation(t *testing.T) {
	p, err := ParseGCC([]byte("foo.o: \\\n  bar.h baz.h\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Outs) != 1 || p.Outs[0] != "foo.o" {
		t.Fatalf("outs = %v", p.Outs)
	}
	if len(p.Ins) != 2 || p.Ins[0] != "bar.h" || p.Ins[1] != "baz.h" {
		t.Fatalf("ins = %v", p.Ins)
	}
}

func TestParseGCCEscapedSpace(t *testing.T) {
	p, err := ParseGCC([]byte("foo.o: a\\ b.h\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Ins) != 1 || p.Ins[0] != "a b.h" {
		t.Fatalf("ins = %v", p.Ins)
	}
}

func TestParseGCCEscapedHash(t *testing.T) {
	p, err := ParseGCC([]byte("foo.o: a\\#b.h\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Ins) != 1 || p.Ins[0] != "a#b.h" {
		t.Fatalf("ins = %v", p.Ins)
	}
}

func TestParseGCCMultipleRules(t *testing.T) {
	p, err := ParseGCC([]byte("foo.o: foo.c foo.h\nfoo.h:\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Outs) != 1 || p.Outs[0] != "foo.o" {
		t.Fatalf("outs = %v", p.Outs)
	}
	if len(p.Ins) != 2 {
		t.Fatalf("ins = %v", p.Ins)
	}
}

func TestParseGCCTruncatedBackslash(t *testing.T) {
	if _, err := ParseGCC([]byte("foo.o: foo.c \\")); err == nil {
		t.Fatal("expected error for malformed trailing backslash")
	}
}

func TestParseGCCMissingColon(t *testing.T) {
	if _, err := ParseGCC([]byte("foo.c foo.h\n")); err == nil {
		t.Fatal("expected error for missing ':'")
	}
}
