package toolchain

// newArGenerators is the small argument table GNU ar needs: it only
// ever runs as "ar rcs output inputs...", so there is no optimization,
// warning, or language-selection machinery to speak of.
func newArGenerators() Generators {
	g := Generators{}
	g["input_output"] = func(in Invocation) (Args, bool, error) {
		args := Args{"rcs", in.Str1}
		return append(args, in.ArgsIn...), true, nil
	}
	g["do_archiver_passthrough"] = func(Invocation) (Args, bool, error) { return boolArgs(true) }
	g["version"] = func(Invocation) (Args, bool, error) { return Args{"--version"}, true, nil }
	return g
}
