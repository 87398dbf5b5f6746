//go:build linux

package toolchain

import (
	"bytes"

	"golang.org/x/sys/unix"
)

// KernelRelease reports the running kernel's release string (e.g.
// "6.18.5-generic"), as surfaced by uname(2). It's informational only
// — logged alongside the detected host triple, never parsed for
// toolchain-selection decisions.
func KernelRelease() (string, error) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "", err
	}
	return cstr(u.Release[:]), nil
}

func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
