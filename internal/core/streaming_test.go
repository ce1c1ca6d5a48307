package core

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestBOMSkippingReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello,world")...),
			expected: "hello,world",
		},
		{
			name:     "file without BOM",
			input:    []byte("hello,world"),
			expected: "hello,world",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "partial BOM at start",
			input:    []byte{0xEF, 0xBB, 'a', 'b', 'c'},
			expected: string([]byte{0xEF, 0xBB, 'a', 'b', 'c'}),
		},
		{
			name:     "shorter than a BOM",
			input:    []byte("ab"),
			expected: "ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := NewBOMSkippingReader(bytes.NewReader(tt.input))
			result, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestUTF8Validator(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
		wantErr  bool
	}{
		{
			name:     "valid ASCII",
			input:    []byte("hello,world"),
			expected: "hello,world",
		},
		{
			name:     "valid UTF-8 with multibyte",
			input:    []byte("Größe,Überweisung"),
			expected: "Größe,Überweisung",
		},
		{
			name:    "invalid single byte rejected",
			input:   []byte{'h', 'e', 0x80, 'l', 'o'},
			wantErr: true,
		},
		{
			name:    "truncated sequence at end rejected",
			input:   []byte{'h', 'i', 0xC3},
			wantErr: true,
		},
		{
			name:     "empty input",
			input:    []byte{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := NewUTF8Validator(bytes.NewReader(tt.input))
			result, err := io.ReadAll(reader)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEncoding) {
					t.Fatalf("err = %v, want ErrInvalidEncoding", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestUTF8Validator_SplitSequences(t *testing.T) {
	input := strings.Repeat("é€😀", 50)

	// one byte per read splits every multi-byte rune
	reader := NewUTF8Validator(iotest.OneByteReader(strings.NewReader(input)))
	result, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != input {
		t.Errorf("got %d bytes, want %d", len(result), len(input))
	}
}

func TestUTF8Validator_ReportsOffset(t *testing.T) {
	reader := NewUTF8Validator(bytes.NewReader([]byte{'a', 'b', 'c', 0xFF}))
	_, err := io.ReadAll(reader)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "offset 3") {
		t.Errorf("error = %q, want offset 3", err.Error())
	}
}

func TestUTF8Validator_ShortBuffer(t *testing.T) {
	reader := NewUTF8Validator(strings.NewReader("abc"))
	_, err := reader.Read(make([]byte, 2))
	if !errors.Is(err, io.ErrShortBuffer) {
		t.Errorf("err = %v, want io.ErrShortBuffer", err)
	}
}

func TestWrapForProbe(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("id,name\n1,Zoë\n")...)

	result, err := io.ReadAll(WrapForProbe(bytes.NewReader(input)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "id,name\n1,Zoë\n"
	if string(result) != expected {
		t.Errorf("got %q, want %q", string(result), expected)
	}
}

func TestWrapForProbe_InvalidAfterBOM(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte{'h', 'e', 0x80, 'l', 'o'}...)

	_, err := io.ReadAll(WrapForProbe(bytes.NewReader(input)))
	if !errors.Is(err, ErrInvalidEncoding) {
		t.Errorf("err = %v, want ErrInvalidEncoding", err)
	}
}
