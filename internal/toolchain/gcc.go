package toolchain

import "fmt"

// newGCCGenerators builds the argument-generator table shared by GCC
// and Clang: both speak the same unix-compiler argument dialect, so a
// single table serves as the base and individual entries only override
// what genuinely differs (see newClangGenerators).
func newGCCGenerators() Generators {
	g := Generators{}
	g["compile_only"] = func(Invocation) (Args, bool, error) { return Args{"-c"}, true, nil }
	g["preprocess_only"] = func(Invocation) (Args, bool, error) { return Args{"-E"}, true, nil }
	g["debug"] = func(Invocation) (Args, bool, error) { return Args{"-g"}, true, nil }
	g["pic"] = func(Invocation) (Args, bool, error) { return Args{"-fPIC"}, true, nil }
	g["pie"] = func(Invocation) (Args, bool, error) { return Args{"-fPIE"}, true, nil }
	g["coverage"] = func(Invocation) (Args, bool, error) { return Args{"--coverage"}, true, nil }
	g["werror"] = func(Invocation) (Args, bool, error) { return Args{"-Werror"}, true, nil }
	g["permissive"] = func(Invocation) (Args, bool, error) { return Args{"-fpermissive"}, true, nil }
	g["enable_lto"] = func(Invocation) (Args, bool, error) { return Args{"-flto"}, true, nil }
	g["winvalid_pch"] = func(Invocation) (Args, bool, error) { return Args{"-Winvalid-pch"}, true, nil }
	g["warn_everything"] = func(Invocation) (Args, bool, error) { return Args{"-Wall", "-Wextra", "-Wpedantic"}, true, nil }
	g["dumpmachine"] = func(Invocation) (Args, bool, error) { return Args{"-dumpmachine"}, true, nil }
	g["print_search_dirs"] = func(Invocation) (Args, bool, error) { return Args{"-print-search-dirs"}, true, nil }
	g["version"] = func(Invocation) (Args, bool, error) { return Args{"--version"}, true, nil }
	g["linker_delimiter"] = func(Invocation) (Args, bool, error) { return Args{"-Wl,"}, true, nil }

	g["include"] = func(in Invocation) (Args, bool, error) { return Args{"-I" + in.Str1}, true, nil }
	g["include_system"] = func(in Invocation) (Args, bool, error) { return Args{"-isystem", in.Str1}, true, nil }
	g["include_dirafter"] = func(in Invocation) (Args, bool, error) { return Args{"-idirafter", in.Str1}, true, nil }
	g["define"] = func(in Invocation) (Args, bool, error) { return Args{"-D" + in.Str1}, true, nil }
	g["output"] = func(in Invocation) (Args, bool, error) { return Args{"-o", in.Str1}, true, nil }
	g["set_std"] = func(in Invocation) (Args, bool, error) { return Args{"-std=" + in.Str1}, true, nil }
	g["sanitize"] = func(in Invocation) (Args, bool, error) { return Args{"-fsanitize=" + in.Str1}, true, nil }
	g["color_output"] = func(in Invocation) (Args, bool, error) { return Args{"-fdiagnostics-color=" + in.Str1}, true, nil }
	g["debugfile"] = func(in Invocation) (Args, bool, error) { return Args{"-gsplit-dwarf", "-o", in.Str1}, true, nil }
	g["force_language"] = func(in Invocation) (Args, bool, error) { return Args{"-x", in.Str1}, true, nil }

	g["deps"] = func(in Invocation) (Args, bool, error) {
		return Args{"-MD", "-MQ", in.Str1, "-MF", in.Str2}, true, nil
	}
	g["optimization"] = func(in Invocation) (Args, bool, error) {
		lvl, ok := gccOptFlags[OptimizationLevel(in.Int)]
		if !ok {
			return nil, false, fmt.Errorf("unknown optimization level %d", in.Int)
		}
		return Args{lvl}, true, nil
	}
	g["warning_lvl"] = func(in Invocation) (Args, bool, error) {
		lvl, ok := gccWarnFlags[WarningLevel(in.Int)]
		if !ok {
			return nil, false, fmt.Errorf("unknown warning level %d", in.Int)
		}
		return Args{lvl}, true, nil
	}
	g["pgo"] = func(in Invocation) (Args, bool, error) {
		switch PGOStage(in.Int) {
		case PGOGenerate:
			return Args{"-fprofile-generate"}, true, nil
		case PGOUse:
			return Args{"-fprofile-use"}, true, nil
		default:
			return nil, false, fmt.Errorf("unknown pgo stage %d", in.Int)
		}
	}
	g["crt"] = func(in Invocation) (Args, bool, error) {
		if in.Bool1 {
			return Args{"-static-libgcc", "-static-libstdc++"}, true, nil
		}
		return Args{}, true, nil
	}

	g["can_compile_llvm_ir"] = func(Invocation) (Args, bool, error) { return boolArgs(false) }
	g["do_linker_passthrough"] = func(Invocation) (Args, bool, error) { return boolArgs(true) }
	g["do_archiver_passthrough"] = func(Invocation) (Args, bool, error) { return boolArgs(false) }
	g["std_unsupported"] = func(Invocation) (Args, bool, error) { return boolArgs(false) }
	g["check_ignored_option"] = func(Invocation) (Args, bool, error) { return boolArgs(false) }

	g["linker_passthrough"] = func(in Invocation) (Args, bool, error) {
		out := make(Args, 0, len(in.ArgsIn))
		for _, a := range in.ArgsIn {
			out = append(out, "-Wl,"+a)
		}
		return out, true, nil
	}
	return g
}

var gccOptFlags = map[OptimizationLevel]string{
	OptNone: "-O0",
	Opt0:    "-O0",
	Opt1:    "-O1",
	Opt2:    "-O2",
	Opt3:    "-O3",
	OptG:    "-Og",
	OptS:    "-Os",
}

var gccWarnFlags = map[WarningLevel]string{
	Warn0:          "-w",
	Warn1:          "-Wall",
	Warn2:          "-Wall -Wextra",
	Warn3:          "-Wall -Wextra -Wpedantic",
	WarnEverything: "-Wall -Wextra -Wpedantic",
}

// newClangGenerators starts from the GCC table and overrides the few
// spellings Clang diverges on, rather than duplicating the whole table
// — the two toolchains share almost all of their command-line grammar.
func newClangGenerators() Generators {
	g := newGCCGenerators()
	g["can_compile_llvm_ir"] = func(Invocation) (Args, bool, error) { return boolArgs(true) }
	g["warning_lvl"] = func(in Invocation) (Args, bool, error) {
		if WarningLevel(in.Int) == WarnEverything {
			return Args{"-Weverything"}, true, nil
		}
		lvl, ok := gccWarnFlags[WarningLevel(in.Int)]
		if !ok {
			return nil, false, fmt.Errorf("unknown warning level %d", in.Int)
		}
		return Args{lvl}, true, nil
	}
	return g
}
