// Package security implements the seed->key transformations for UDS service
// 0x27 (SecurityAccess). Each level is a pure, stateless function of the
// 4-byte seed the ECU returns and a caller-supplied constant; there is no
// per-call state beyond the iteration count baked into the algorithm itself.
package security

import (
	"fmt"
	"math/bits"
)

// Level identifies one of the four key-submission levels (the even levels
// 2/4/6/8 a caller sends in the 0x27 key-compare request). Each odd
// seed-request level (1/3/5/7) pairs with the key level one above it
// (see SeedLevelFor).
type Level uint8

const (
	Level1 Level = 2
	Level2 Level = 4
	Level3 Level = 6
	Level4 Level = 8

	iterations = 32
)

// ErrUnsupportedLevel is returned by Compute when the level selector is not
// one of 2, 4, 6, 8.
var ErrUnsupportedLevel = fmt.Errorf("unsupported security access level")

// Compute derives the key token for the given level selector, seed, and
// constant. seed is the big-endian interpretation of the 4 seed bytes the
// ECU returned; constant is the caller-supplied per-level secret.
func Compute(level Level, seed, constant uint32) (uint32, error) {
	switch level {
	case Level1:
		return computeLevel1(seed, constant), nil
	case Level2:
		return computeLevel2(seed, constant), nil
	case Level3:
		return computeLevel3(seed, constant), nil
	case Level4:
		return computeLevel4(seed, constant), nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedLevel, level)
	}
}

// computeLevel1 implements security access level 1 (selector 2):
// t = seed ^ constant; 32 rounds of a bit-0-conditioned rotate-and-XOR.
func computeLevel1(seed, constant uint32) uint32 {
	t := seed ^ constant
	for range iterations {
		if t&0x01 != 0 {
			t = bits.RotateLeft32(t, 3)
			t ^= seed
		} else {
			t = bits.RotateLeft32(t, -7) // rotate right 7
			t ^= constant
		}
	}
	return t
}

// computeLevel2 implements security access level 2 (selector 4):
// t = seed ^ constant; 32 rounds of a bit-0-conditioned logical right shift
// and XOR (no rotation, no sign extension).
func computeLevel2(seed, constant uint32) uint32 {
	t := seed ^ constant
	for range iterations {
		if t&0x01 != 0 {
			t = (t >> 1) ^ seed
		} else {
			t = (t >> 1) ^ constant
		}
	}
	return t
}

// computeLevel3 implements security access level 3 (selector 6).
//
// The branch predicate and the transformed value both read from the
// original seed, never from the running t, and t is reassigned from seed
// before the trailing XOR with constant, so nothing accumulates across
// iterations. Every iteration but the last computes the same t and is
// immediately overwritten;
// the loop is preserved anyway because it is almost certainly a
// transcription bug in the original ECU tooling, and some deployed ECUs may
// depend on its exact (bugged) observable output. See DESIGN.md.
func computeLevel3(seed, constant uint32) uint32 {
	t := seed ^ constant
	for range iterations {
		if seed&0x80000000 != 0 {
			t = (((seed >> 1) ^ seed) << 3) ^ (seed >> 3)
		} else {
			t = (seed >> 3) ^ (seed << 9)
		}
		t ^= constant
	}
	return bits.RotateLeft32(t, 15)
}

// computeLevel4 implements security access level 4 (selector 8):
// t = seed ^ constant; 32 rounds of rotate-left-7 then XOR constant.
func computeLevel4(seed, constant uint32) uint32 {
	t := seed ^ constant
	for range iterations {
		t = bits.RotateLeft32(t, 7)
		t ^= constant
	}
	return t
}

// SeedLevelFor returns the odd seed-request level that precedes the given
// even key-submission level (e.g. Level1's seed request uses level 1, its
// key submission uses level 2).
func SeedLevelFor(keyLevel Level) uint8 {
	return uint8(keyLevel) - 1
}
