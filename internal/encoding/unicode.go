// Strings are UTF-16LE once Unicode is negotiated and OEM (code page 437) before that.

package encoding

import (
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"
)

// ToUTF16LE converts a Go string to UTF-16LE encoded bytes.
func ToUTF16LE(s string) []byte {
	runes := utf16.Encode([]rune(s))

	b := make([]byte, len(runes)*2)
	for i, r := range runes {
		b[i*2] = byte(r)
		b[i*2+1] = byte(r >> 8)
	}
	return b
}

// FromUTF16LE converts UTF-16LE encoded bytes to a Go string.
func FromUTF16LE(b []byte) string {
	if len(b) == 0 {
		return ""
	}

	// Ensure even number of bytes
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}

	u16s := make([]uint16, len(b)/2)
	for i := range u16s {
		u16s[i] = uint16(b[i*2]) | uint16(b[i*2+1])<<8
	}

	return string(utf16.Decode(u16s))
}

// ToUTF16LEWithNull converts a string to UTF-16LE with a null terminator.
func ToUTF16LEWithNull(s string) []byte {
	b := ToUTF16LE(s)
	return append(b, 0, 0)
}

// ToOEM encodes s in the OEM code page. Characters the code page
// cannot represent are replaced with '?'.
func ToOEM(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := charmap.CodePage437.EncodeRune(r); ok {
			out = append(out, b)
			continue
		}
		out = append(out, '?')
	}
	return out
}

// ToOEMWithNull encodes s in the OEM code page with a null terminator.
func ToOEMWithNull(s string) []byte {
	return append(ToOEM(s), 0)
}

// FromOEM decodes OEM code page bytes to a Go string.
func FromOEM(b []byte) string {
	runes := make([]rune, 0, len(b))
	for _, c := range b {
		runes = append(runes, charmap.CodePage437.DecodeByte(c))
	}
	return string(runes)
}

// NullTerminatedOEM returns the OEM string at the start of b and the number of
// bytes consumed, terminator included. A string that runs to the end of b
// without a terminator is returned with ok set to false.
func NullTerminatedOEM(b []byte) (s string, n int, ok bool) {
	for i, c := range b {
		if c == 0 {
			return FromOEM(b[:i]), i + 1, true
		}
	}
	return FromOEM(b), len(b), false
}

// NullTerminatedUTF16LE returns the UTF-16LE string at the start of b and the
// number of bytes consumed, terminator included. A string that runs to the end
// of b without a terminator is returned with ok set to false.
func NullTerminatedUTF16LE(b []byte) (s string, n int, ok bool) {
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			return FromUTF16LE(b[:i]), i + 2, true
		}
	}
	return FromUTF16LE(b), len(b), false
}
