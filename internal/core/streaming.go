package core

// streaming.go provides the reader chain used by the CSV prober:
//
//   - BOMSkippingReader: Removes a leading UTF-8 BOM (0xEF 0xBB 0xBF)
//   - UTF8Validator: Fails with ErrInvalidEncoding on the first invalid sequence
//
// Use WrapForProbe to apply both in the correct order. Only the chunks the CSV
// reader actually pulls are checked, so a bad byte far past the probed rows
// does not reject the file.

import (
	"fmt"
	"io"
	"unicode/utf8"
)

// UTF8Validator wraps an io.Reader and returns ErrInvalidEncoding as soon as
// the stream contains bytes that are not valid UTF-8.
type UTF8Validator struct {
	reader io.Reader

	// Leftover bytes from previous read that may form a multi-byte sequence
	pending []byte

	// offset is the number of validated bytes handed out so far
	offset int64
}

// NewUTF8Validator creates a new streaming UTF-8 validator.
func NewUTF8Validator(r io.Reader) *UTF8Validator {
	return &UTF8Validator{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader. p must hold at least utf8.UTFMax bytes.
func (v *UTF8Validator) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(p) < utf8.UTFMax {
		return 0, io.ErrShortBuffer
	}

	// Carry over an incomplete sequence from the previous read
	carried := copy(p, v.pending)
	v.pending = v.pending[:0]

	n, err := v.reader.Read(p[carried:])
	n += carried
	data := p[:n]

	// Hold back a sequence split across reads unless the stream has ended
	if err == nil {
		if trailing := incompleteTrailingBytes(data); trailing > 0 {
			v.pending = append(v.pending, data[len(data)-trailing:]...)
			data = data[:len(data)-trailing]
		}
	}

	// Quick check: ASCII needs no decoding
	if !isAllASCII(data) && !utf8.Valid(data) {
		return 0, fmt.Errorf("%w: invalid byte sequence at offset %d", ErrInvalidEncoding, v.offset+int64(firstInvalid(data)))
	}

	v.offset += int64(len(data))
	return len(data), err
}

// isAllASCII returns true if all bytes are ASCII (< 128).
func isAllASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

// firstInvalid returns the index of the first byte that does not start a
// valid rune.
func firstInvalid(data []byte) int {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(data)
}

// incompleteTrailingBytes returns the number of bytes at the end of data
// that could be the start of an incomplete multi-byte UTF-8 sequence.
func incompleteTrailingBytes(data []byte) int {
	if len(data) == 0 {
		return 0
	}

	// Check last 1-3 bytes for incomplete sequences
	for i := 1; i <= 3 && i <= len(data); i++ {
		b := data[len(data)-i]
		// Check if this byte starts a multi-byte sequence
		if b >= 0xC0 {
			if i < runeLen(b) {
				return i
			}
			return 0
		}
		// Continuation byte (10xxxxxx) - keep checking
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

// runeLen returns the expected length of a UTF-8 sequence starting with byte b.
func runeLen(b byte) int {
	if b < 0x80 {
		return 1
	}
	if b < 0xC0 {
		return 0 // continuation byte
	}
	if b < 0xE0 {
		return 2
	}
	if b < 0xF0 {
		return 3
	}
	return 4
}

// BOMSkippingReader wraps an io.Reader and skips the UTF-8 BOM if present.
// The UTF-8 BOM is 0xEF 0xBB 0xBF and is commonly added by Windows programs.
type BOMSkippingReader struct {
	reader     io.Reader
	bomChecked bool
	buf        [3]byte // Buffer for BOM detection
	bufData    []byte  // Remaining data after BOM check
	bufOffset  int     // Current read position in bufData
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{
		reader: r,
	}
}

// Read implements io.Reader. On the first read, it checks for and skips the BOM.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.bomChecked {
		r.bomChecked = true

		n, err := io.ReadFull(r.reader, r.buf[:])
		if n == 0 {
			if err == io.ErrUnexpectedEOF {
				err = io.EOF
			}
			return 0, err
		}

		if n >= 3 && r.buf[0] == 0xEF && r.buf[1] == 0xBB && r.buf[2] == 0xBF {
			r.bufData = nil
		} else {
			// No BOM - preserve the bytes we read
			r.bufData = r.buf[:n]
			r.bufOffset = 0
		}

		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil && err != io.EOF {
			return 0, err
		}

		if len(r.bufData) > 0 {
			copied := copy(p, r.bufData[r.bufOffset:])
			r.bufOffset += copied
			if r.bufOffset >= len(r.bufData) {
				r.bufData = nil
			}
			if copied < len(p) && err != io.EOF {
				n, err2 := r.reader.Read(p[copied:])
				return copied + n, err2
			}
			if err == io.EOF && r.bufData != nil {
				// more buffered bytes to hand out before EOF
				return copied, nil
			}
			return copied, err
		}
		if err == io.EOF {
			return 0, io.EOF
		}
	}

	// Return any remaining buffered data first
	if len(r.bufData) > r.bufOffset {
		copied := copy(p, r.bufData[r.bufOffset:])
		r.bufOffset += copied
		if r.bufOffset >= len(r.bufData) {
			r.bufData = nil
		}
		return copied, nil
	}

	// Normal read from underlying reader
	return r.reader.Read(p)
}

// WrapForProbe strips a BOM and validates UTF-8.
func WrapForProbe(r io.Reader) io.Reader {
	return NewUTF8Validator(NewBOMSkippingReader(r))
}
