package core

import (
	"fmt"
	"regexp"
	"strings"
)

// Glob is a compiled shell-style filename pattern.
//
//	*      any run of characters, including none
//	?      exactly one character
//	[seq]  one character in seq; ranges like a-z are allowed
//	[!seq] one character not in seq
//
// Matching is case-sensitive and applies to the whole name. There is no
// escape character; a literal metacharacter is written as a class, e.g. [*].
type Glob struct {
	pattern string
	re      *regexp.Regexp
}

// CompileGlob translates pattern into an anchored regular expression.
func CompileGlob(pattern string) (*Glob, error) {
	expr := translateGlob(pattern)
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile file pattern %q: %w", pattern, err)
	}
	return &Glob{pattern: pattern, re: re}, nil
}

// Match reports whether name matches the whole pattern.
func (g *Glob) Match(name string) bool {
	return g.re.MatchString(name)
}

func (g *Glob) String() string {
	return g.pattern
}

// neverMatch is a class with no members.
const neverMatch = `[^\x00-\x{10FFFF}]`

// translateGlob returns the regular expression for pattern.
func translateGlob(pattern string) string {
	pat := []rune(pattern)
	n := len(pat)

	var b strings.Builder
	b.WriteString(`^(?s:`)

	for i := 0; i < n; {
		c := pat[i]
		i++

		switch c {
		case '*':
			// collapse runs of stars
			for i < n && pat[i] == '*' {
				i++
			}
			b.WriteString(`.*`)
		case '?':
			b.WriteByte('.')
		case '[':
			j := i
			if j < n && pat[j] == '!' {
				j++
			}
			if j < n && pat[j] == ']' {
				j++
			}
			for j < n && pat[j] != ']' {
				j++
			}
			if j >= n {
				// unclosed bracket is literal
				b.WriteString(`\[`)
				continue
			}
			b.WriteString(translateClass(pat[i:j]))
			i = j + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	b.WriteString(`)\z`)
	return b.String()
}

// translateClass converts the body of a bracket expression, without the
// surrounding brackets, into a regular expression class.
func translateClass(body []rune) string {
	chunks := splitRanges(body)

	negate := len(chunks[0]) > 0 && chunks[0][0] == '!'
	if negate {
		chunks[0] = chunks[0][1:]
	}

	switch {
	case len(chunks) == 1 && len(chunks[0]) == 0 && !negate:
		return neverMatch
	case len(chunks) == 1 && len(chunks[0]) == 0 && negate:
		return `.`
	}

	var b strings.Builder
	b.WriteByte('[')
	if negate {
		b.WriteByte('^')
	}
	for k, chunk := range chunks {
		if k > 0 {
			b.WriteByte('-')
		}
		for _, r := range chunk {
			writeClassRune(&b, r)
		}
	}
	b.WriteByte(']')
	return b.String()
}

// splitRanges splits a class body on range hyphens. Adjacent chunks are
// joined by a range from the last rune of one to the first rune of the
// next. Reversed ranges are removed. A leading '!' stays in the first chunk.
func splitRanges(body []rune) [][]rune {
	n := len(body)
	var chunks [][]rune

	i := 0
	k := 1
	if n > 0 && body[0] == '!' {
		k = 2
	}
	for {
		k = indexRune(body, '-', k, n)
		if k < 0 {
			break
		}
		chunks = append(chunks, body[i:k])
		i = k + 1
		k += 3
	}

	if tail := body[i:]; len(tail) > 0 || len(chunks) == 0 {
		chunks = append(chunks, tail)
	} else {
		// trailing hyphen is literal
		last := len(chunks) - 1
		chunks[last] = append(append([]rune{}, chunks[last]...), '-')
	}

	for k := len(chunks) - 1; k > 0; k-- {
		prev, cur := chunks[k-1], chunks[k]
		if prev[len(prev)-1] > cur[0] {
			merged := make([]rune, 0, len(prev)-1+len(cur)-1)
			merged = append(merged, prev[:len(prev)-1]...)
			merged = append(merged, cur[1:]...)
			chunks[k-1] = merged
			chunks = append(chunks[:k], chunks[k+1:]...)
		}
	}
	return chunks
}

// indexRune returns the index of r in s[from:to], or -1.
func indexRune(s []rune, r rune, from, to int) int {
	for i := from; i < to; i++ {
		if s[i] == r {
			return i
		}
	}
	return -1
}

// writeClassRune writes r so it is literal inside a character class.
func writeClassRune(b *strings.Builder, r rune) {
	if r < 0x80 && !isWordByte(byte(r)) {
		b.WriteByte('\\')
	}
	b.WriteRune(r)
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
