package wire

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

// Base58Alphabet is the alphabet for UID strings. It omits 0, O, I and l.
const Base58Alphabet = "123456789abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"

// ErrInvalidUID indicates a UID string that does not name a device.
var ErrInvalidUID = errors.New("invalid uid")

// DecodeBase58 decodes a base-58 string into its (up to) 64-bit value.
func DecodeBase58(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidUID)
	}

	var value uint64
	base := uint64(1)
	baseOverflow := false

	for i := len(s) - 1; i >= 0; i-- {
		k := strings.IndexByte(Base58Alphabet, s[i])
		if k < 0 {
			return 0, fmt.Errorf("%w: %q contains invalid character %q", ErrInvalidUID, s, s[i])
		}

		if k != 0 {
			if baseOverflow {
				return 0, fmt.Errorf("%w: %q exceeds 64 bits", ErrInvalidUID, s)
			}
			hi, lo := bits.Mul64(uint64(k), base)
			if hi != 0 {
				return 0, fmt.Errorf("%w: %q exceeds 64 bits", ErrInvalidUID, s)
			}
			var carry uint64
			value, carry = bits.Add64(value, lo, 0)
			if carry != 0 {
				return 0, fmt.Errorf("%w: %q exceeds 64 bits", ErrInvalidUID, s)
			}
		}

		hi, lo := bits.Mul64(base, 58)
		if hi != 0 {
			baseOverflow = true
		}
		base = lo
	}

	return value, nil
}

// EncodeBase58 encodes a value as a base-58 string.
func EncodeBase58(value uint64) string {
	var reverse [16]byte
	i := 0
	for value >= 58 {
		reverse[i] = Base58Alphabet[value%58]
		value /= 58
		i++
	}
	reverse[i] = Base58Alphabet[value]

	out := make([]byte, i+1)
	for j := 0; j <= i; j++ {
		out[j] = reverse[i-j]
	}
	return string(out)
}

// RemapUID64 folds a 64-bit UID into the legacy 32-bit ID space:
//
//	lo bits  0-11 -> id bits  0-11
//	lo bits 24-27 -> id bits 12-15
//	hi bits  0-5  -> id bits 16-21
//	hi bits 16-19 -> id bits 22-25
//	hi bits 24-29 -> id bits 26-31
//
// Values that already fit in 32 bits are returned unchanged.
func RemapUID64(value uint64) uint32 {
	if value <= 0xFFFFFFFF {
		return uint32(value)
	}

	lo := uint32(value & 0xFFFFFFFF)
	hi := uint32((value >> 32) & 0xFFFFFFFF)

	id := lo & 0x00000FFF
	id |= (lo & 0x0F000000) >> 12
	id |= (hi & 0x0000003F) << 16
	id |= (hi & 0x000F0000) << 6
	id |= (hi & 0x3F000000) << 2
	return id
}

// DecodeUID converts a UID string to the numeric device ID used on the wire.
//
// An empty string, a character outside Base58Alphabet, a value wider than
// 64 bits, or a result of 0 (the broadcast ID) yield ID 0 and ErrInvalidUID.
func DecodeUID(s string) (uint32, error) {
	value, err := DecodeBase58(s)
	if err != nil {
		return 0, err
	}
	id := RemapUID64(value)
	if id == BroadcastUID {
		return 0, fmt.Errorf("%w: %q maps to broadcast id", ErrInvalidUID, s)
	}
	return id, nil
}

// EncodeUID converts a numeric device ID to its UID string.
func EncodeUID(id uint32) string {
	return EncodeBase58(uint64(id))
}
