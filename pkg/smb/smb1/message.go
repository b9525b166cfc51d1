package smb1

import (
	"fmt"

	"github.com/ineffectivecoder/smolder/internal/encoding"
	"github.com/ineffectivecoder/smolder/pkg/smb"
)

const (
	maxWordCount = 0xFF
	maxByteCount = 0xFFFF

	// dataBase is the header-relative offset of the byte block for a
	// message with no parameter words.
	dataBase = HeaderSize + 1 + 2
)

// Message is a header followed by its parameter words and byte block.
type Message struct {
	Header Header
	Params []byte // 2*WordCount bytes
	Data   []byte
}

// WordCount returns the number of parameter words.
func (m *Message) WordCount() int {
	return len(m.Params) / 2
}

// Marshal serializes the full message.
func (m *Message) Marshal() ([]byte, error) {
	body, err := encodeBody(m.Params, m.Data)
	if err != nil {
		return nil, err
	}
	return append(m.Header.Marshal(), body...), nil
}

// ParseMessage parses a message and checks that the declared word and
// byte counts account for every byte of buf.
func ParseMessage(buf []byte) (*Message, error) {
	m := &Message{}
	if err := m.Header.Unmarshal(buf); err != nil {
		return nil, err
	}

	if len(buf) < HeaderSize+1 {
		return nil, fmt.Errorf("%w: missing word count", ErrLengthMismatch)
	}
	wc := int(buf[HeaderSize])
	offset := HeaderSize + 1
	if len(buf) < offset+2*wc+2 {
		return nil, fmt.Errorf("%w: %d words declared, %d bytes remain", ErrLengthMismatch, wc, len(buf)-offset)
	}
	m.Params = buf[offset : offset+2*wc]
	offset += 2 * wc

	bc := int(encoding.Uint16LE(buf[offset:]))
	offset += 2
	if len(buf)-offset != bc {
		return nil, fmt.Errorf("%w: byte count %d, %d bytes present", ErrLengthMismatch, bc, len(buf)-offset)
	}
	m.Data = buf[offset:]

	return m, nil
}

// encodeBody lays out word count, words, byte count and bytes.
func encodeBody(params, data []byte) ([]byte, error) {
	if len(params)%2 != 0 || len(params)/2 > maxWordCount {
		return nil, fmt.Errorf("%w: parameter block of %d bytes", smb.ErrInvalidParameter, len(params))
	}
	if len(data) > maxByteCount {
		return nil, fmt.Errorf("%w: byte block of %d bytes", smb.ErrInvalidParameter, len(data))
	}

	buf := make([]byte, 1+len(params)+2+len(data))
	buf[0] = uint8(len(params) / 2)
	copy(buf[1:], params)
	encoding.PutUint16LE(buf[1+len(params):], uint16(len(data)))
	copy(buf[1+len(params)+2:], data)
	return buf, nil
}

// byteBlock builds a request byte block. Unicode strings are padded to an
// even offset measured from the start of the header.
type byteBlock struct {
	buf     []byte
	base    int
	unicode bool
}

func newByteBlock(wordCount int, unicode bool) *byteBlock {
	return &byteBlock{base: dataBase + 2*wordCount, unicode: unicode}
}

func (b *byteBlock) bytes(p []byte) {
	b.buf = append(b.buf, p...)
}

func (b *byteBlock) putByte(v byte) {
	b.buf = append(b.buf, v)
}

func (b *byteBlock) align() {
	if (b.base+len(b.buf))%2 != 0 {
		b.buf = append(b.buf, 0)
	}
}

// str appends a null-terminated string in the negotiated encoding.
func (b *byteBlock) str(s string) {
	if b.unicode {
		b.align()
		b.buf = append(b.buf, encoding.ToUTF16LEWithNull(s)...)
		return
	}
	b.oem(s)
}

// oem appends a null-terminated OEM string regardless of mode.
func (b *byteBlock) oem(s string) {
	b.buf = append(b.buf, encoding.ToOEMWithNull(s)...)
}

// byteReader walks a response byte block.
type byteReader struct {
	buf     []byte
	pos     int
	base    int
	unicode bool
}

func newByteReader(m *Message, unicode bool) *byteReader {
	return &byteReader{buf: m.Data, base: dataBase + len(m.Params), unicode: unicode}
}

func (r *byteReader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *byteReader) next(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes, %d remain", ErrInvalidResponse, n, r.remaining())
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

// str reads a null-terminated string in the negotiated encoding. A missing
// terminator consumes the rest of the block; servers omit the final one.
func (r *byteReader) str(aligned bool) string {
	if !r.unicode {
		return r.oem()
	}
	if aligned && (r.base+r.pos)%2 != 0 && r.remaining() > 0 {
		r.pos++
	}
	s, n, _ := encoding.NullTerminatedUTF16LE(r.buf[r.pos:])
	r.pos += n
	return s
}

func (r *byteReader) oem() string {
	s, n, _ := encoding.NullTerminatedOEM(r.buf[r.pos:])
	r.pos += n
	return s
}
