package depfile

import "testing"

func TestParseMSVCShowIncludesBasic(t *testing.T) {
	input := "foo.cc\n" +
		"Note: including file: C:\\foo.h\n" +
		"Note: including file:  C:\\Program Files\\Microsoft Visual Studio\\include\\bar.h\n" +
		"foo.cc(1): warning C4101: unreferenced local variable\n"

	res := ParseMSVCShowIncludes(input, "")
	if len(res.Includes) != 1 || res.Includes[0] != `C:\foo.h` {
		t.Fatalf("includes = %v", res.Includes)
	}
	if got := res.FilteredOutput; got != "foo.cc(1): warning C4101: unreferenced local variable\n" {
		t.Fatalf("filtered output = %q", got)
	}
}

func TestParseMSVCShowIncludesCustomPrefix(t *testing.T) {
	input := "bar.cc\nINCLUDE: D:\\inc\\a.h\n"
	res := ParseMSVCShowIncludes(input, "INCLUDE:")
	if len(res.Includes) != 1 || res.Includes[0] != `D:\inc\a.h` {
		t.Fatalf("includes = %v", res.Includes)
	}
}

func TestIsSystemInclude(t *testing.T) {
	cases := map[string]bool{
		`C:\Program Files\foo.h`:                   true,
		`C:\Microsoft Visual Studio\VC\include\x.h`: true,
		`C:\project\foo.h`:                          false,
	}
	for path, want := range cases {
		if got := isSystemInclude(path); got != want {
			t.Errorf("isSystemInclude(%q) = %v, want %v", path, got, want)
		}
	}
}
