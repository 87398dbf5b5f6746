//go:build !linux

package toolchain

import "runtime"

// KernelRelease is informational-only on platforms where we don't call
// uname(2) directly; see hostinfo_unix.go for the linux implementation.
func KernelRelease() (string, error) {
	return runtime.GOOS, nil
}
