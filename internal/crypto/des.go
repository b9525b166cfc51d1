package crypto

import (
	"crypto/des"
)

// ExpandDESKey expands a 7-byte key to an 8-byte DES key with parity bits
func ExpandDESKey(key7 []byte) []byte {
	if len(key7) != 7 {
		return make([]byte, 8)
	}

	key8 := make([]byte, 8)
	key8[0] = key7[0] >> 1
	key8[1] = ((key7[0] & 0x01) << 6) | (key7[1] >> 2)
	key8[2] = ((key7[1] & 0x03) << 5) | (key7[2] >> 3)
	key8[3] = ((key7[2] & 0x07) << 4) | (key7[3] >> 4)
	key8[4] = ((key7[3] & 0x0F) << 3) | (key7[4] >> 5)
	key8[5] = ((key7[4] & 0x1F) << 2) | (key7[5] >> 6)
	key8[6] = ((key7[5] & 0x3F) << 1) | (key7[6] >> 7)
	key8[7] = key7[6] & 0x7F

	// Set parity bits
	for i := 0; i < 8; i++ {
		key8[i] = (key8[i] << 1) & 0xFE
	}

	return key8
}

// DESEncrypt encrypts a single block with a 7-byte key.
func DESEncrypt(key7 [7]byte, block [des.BlockSize]byte) [des.BlockSize]byte {
	c, err := des.NewCipher(ExpandDESKey(key7[:]))
	if err != nil {
		// des.NewCipher only fails on a key that is not 8 bytes
		panic(err)
	}

	var out [des.BlockSize]byte
	c.Encrypt(out[:], block[:])
	return out
}
