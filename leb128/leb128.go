package leb128

import "errors"

var (
	ErrUnexpectedEOF = errors.New("unexpected end of input")
	ErrMalformed     = errors.New("malformed varint")
	ErrOverflow      = errors.New("integer overflow")
)

// maxBytes returns how many bytes an encoding of an integer of the given bit
// width may occupy.
func maxBytes(bits uint) int {
	return int((bits + 6) / 7)
}

// DecodeU decodes an unsigned LEB128 integer of at most bits bits from the
// front of b. It returns the value and the number of bytes consumed.
func DecodeU(b []byte, bits uint) (uint64, int, error) {
	limit := maxBytes(bits)
	var result uint64
	for i := 0; i < limit; i++ {
		if i >= len(b) {
			return 0, i, ErrUnexpectedEOF
		}
		c := b[i]
		shift := uint(7 * i)
		if i == limit-1 {
			if c&0x80 != 0 {
				return 0, i + 1, ErrMalformed
			}
			// Bits above the target width must be zero.
			used := bits - shift
			if c&0x7F>>used != 0 {
				return 0, i + 1, ErrOverflow
			}
		}
		result |= uint64(c&0x7F) << shift
		if c&0x80 == 0 {
			return result, i + 1, nil
		}
	}
	panic("unreachable")
}

// DecodeS decodes a signed LEB128 integer of at most bits bits from the front
// of b. It returns the value and the number of bytes consumed.
func DecodeS(b []byte, bits uint) (int64, int, error) {
	limit := maxBytes(bits)
	var result int64
	for i := 0; i < limit; i++ {
		if i >= len(b) {
			return 0, i, ErrUnexpectedEOF
		}
		c := b[i]
		shift := uint(7 * i)
		if i == limit-1 {
			if c&0x80 != 0 {
				return 0, i + 1, ErrMalformed
			}
			// The sign bit and every bit above it must agree.
			used := bits - shift
			mask := byte(0x7F) &^ (byte(1)<<(used-1) - 1)
			if top := c & mask; top != 0 && top != mask {
				return 0, i + 1, ErrOverflow
			}
		}
		result |= int64(c&0x7F) << shift
		if c&0x80 == 0 {
			shift += 7
			if shift < 64 && c&0x40 != 0 {
				result |= -1 << shift
			}
			return result, i + 1, nil
		}
	}
	panic("unreachable")
}

func DecodeU32(b []byte) (uint32, int, error) {
	v, n, err := DecodeU(b, 32)
	return uint32(v), n, err
}

func DecodeU64(b []byte) (uint64, int, error) {
	return DecodeU(b, 64)
}

func DecodeS32(b []byte) (int32, int, error) {
	v, n, err := DecodeS(b, 32)
	return int32(v), n, err
}

// DecodeS33 decodes the 33-bit signed form used by heap types and block types.
func DecodeS33(b []byte) (int64, int, error) {
	return DecodeS(b, 33)
}

func DecodeS64(b []byte) (int64, int, error) {
	return DecodeS(b, 64)
}

func EncodeU64(v uint64) []byte {
	var res []byte
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		res = append(res, c)
		if v == 0 {
			return res
		}
	}
}

func EncodeS64(v int64) []byte {
	var res []byte
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(res, c)
		}
		res = append(res, c|0x80)
	}
}
