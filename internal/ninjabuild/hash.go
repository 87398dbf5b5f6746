package ninjabuild

import "github.com/spaolacci/murmur3"

// murmur3Sum64 hashes command fingerprints for dirty comparison. Upstream
// ninja uses its own inline MurmurHash64A; we get the same
// collision-resistance property from the well-tested murmur3 package
// instead of hand-porting the 64-bit MurmurHash2 variant bundled in the
// C++ sources.
func murmur3Sum64(data []byte) uint64 {
	return murmur3.Sum64(data)
}
