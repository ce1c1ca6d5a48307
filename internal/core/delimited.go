package core

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// FieldLimit caps the characters in one delimited-text field.
	FieldLimit = 128 * 1024

	// RecordLimit caps the characters consumed by one delimited-text record,
	// delimiters and line breaks included.
	RecordLimit = 1024 * 1024
)

// ErrMalformedCSV is returned when delimited text exceeds a size limit.
var ErrMalformedCSV = errors.New("malformed csv")

type parseState int

const (
	startRecord parseState = iota
	startField
	inField
	inQuotedField
	quoteInQuotedField
	eatCRNL
)

// recordReader splits comma-separated text into records.
//
// Lines end at "\n", "\r\n" or a lone "\r". A blank line is an empty record.
// Quotes only open a field at its first character; a quote inside an
// unquoted field is literal, and text after a closing quote is appended to
// the field. An unterminated quoted field runs to end of input.
type recordReader struct {
	r    *bufio.Reader
	line int

	state    parseState
	fields   []string
	field    strings.Builder
	fieldLen int

	// pending is set while the current line has unprocessed end-of-line.
	pending bool
	done    bool
}

func newRecordReader(r io.Reader) *recordReader {
	return &recordReader{r: bufio.NewReader(r), line: 1}
}

// Read returns the next record, or io.EOF after the last one.
func (p *recordReader) Read() ([]string, error) {
	if p.done {
		return nil, io.EOF
	}

	consumed := 0
	for {
		c, _, err := p.r.ReadRune()
		if err == io.EOF {
			return p.finish()
		}
		if err != nil {
			return nil, err
		}

		if consumed++; consumed > RecordLimit {
			return nil, fmt.Errorf("%w: record larger than record limit (%d) on line %d",
				ErrMalformedCSV, RecordLimit, p.line)
		}

		p.pending = true
		if err := p.process(c, false); err != nil {
			return nil, err
		}
		if c != '\n' && c != '\r' {
			continue
		}

		if c == '\r' {
			next, _, err := p.r.ReadRune()
			switch {
			case err == nil && next == '\n':
				if err := p.process(next, false); err != nil {
					return nil, err
				}
			case err == nil:
				if err := p.r.UnreadRune(); err != nil {
					return nil, err
				}
			case err != io.EOF:
				return nil, err
			}
		}

		if err := p.endLine(); err != nil {
			return nil, err
		}
		if p.state == startRecord {
			return p.record(), nil
		}
	}
}

func (p *recordReader) finish() ([]string, error) {
	p.done = true
	if p.pending {
		if err := p.endLine(); err != nil {
			return nil, err
		}
		if p.state == startRecord {
			return p.record(), nil
		}
	}
	if p.fieldLen != 0 || p.state == inQuotedField {
		p.saveField()
		return p.record(), nil
	}
	return nil, io.EOF
}

func (p *recordReader) endLine() error {
	p.pending = false
	err := p.process(0, true)
	p.line++
	return err
}

func (p *recordReader) record() []string {
	rec := p.fields
	if rec == nil {
		rec = []string{}
	}
	p.fields = nil
	p.state = startRecord
	return rec
}

func (p *recordReader) saveField() {
	p.fields = append(p.fields, p.field.String())
	p.field.Reset()
	p.fieldLen = 0
}

func (p *recordReader) addChar(c rune) error {
	if p.fieldLen >= FieldLimit {
		return fmt.Errorf("%w: field larger than field limit (%d) on line %d",
			ErrMalformedCSV, FieldLimit, p.line)
	}
	p.field.WriteRune(c)
	p.fieldLen++
	return nil
}

// endField closes the current field at a line break or end of line.
func (p *recordReader) endField(eol bool) {
	p.saveField()
	if eol {
		p.state = startRecord
	} else {
		p.state = eatCRNL
	}
}

// process advances the state machine by one character, or by an end of line
// marker when eol is set.
func (p *recordReader) process(c rune, eol bool) error {
	newline := !eol && (c == '\n' || c == '\r')

	switch p.state {
	case startRecord:
		if eol {
			return nil
		}
		if newline {
			p.state = eatCRNL
			return nil
		}
		p.state = startField
		fallthrough

	case startField:
		switch {
		case eol || newline:
			p.endField(eol)
		case c == '"':
			p.state = inQuotedField
		case c == ',':
			p.saveField()
		default:
			p.state = inField
			return p.addChar(c)
		}

	case inField:
		switch {
		case eol || newline:
			p.endField(eol)
		case c == ',':
			p.saveField()
			p.state = startField
		default:
			return p.addChar(c)
		}

	case inQuotedField:
		switch {
		case eol:
		case c == '"':
			p.state = quoteInQuotedField
		default:
			return p.addChar(c)
		}

	case quoteInQuotedField:
		switch {
		case !eol && c == '"':
			p.state = inQuotedField
			return p.addChar(c)
		case !eol && c == ',':
			p.saveField()
			p.state = startField
		case eol || newline:
			p.endField(eol)
		default:
			p.state = inField
			return p.addChar(c)
		}

	case eatCRNL:
		switch {
		case eol:
			p.state = startRecord
		case newline:
		default:
			return fmt.Errorf("%w: new-line character seen in unquoted field on line %d",
				ErrMalformedCSV, p.line)
		}
	}
	return nil
}
