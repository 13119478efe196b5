// Package modfile reads the metadata block of a module definition
// file: the leading documentation string and literal top-level string
// constants, e.g. the SCHEMA fragment of a stage.
//
// Module files are scanned on hosts purely for listing and help
// purposes, so the reader never executes or evaluates anything. It is
// deliberately not a general source parser: only the shebang line,
// comments, the leading documentation string and column-zero
// `NAME = "<literal>"` assignments are recognized; everything else is
// skipped.
package modfile

import (
	"errors"
	"os"
	"regexp"
	"strings"
)

// Info is the extracted metadata block of one module file.
type Info struct {
	// Docstring is the leading documentation block, cleaned of the
	// indentation its embedding adds.
	Docstring string

	// Constants maps the names of literal top-level string constants
	// to their raw, unprocessed text.
	Constants map[string]string
}

var ErrUnterminated = errors.New("unterminated string literal")

var (
	// any top-level assignment; string values are consumed whole so
	// literal bodies are never scanned for metadata
	assignRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.*)$`)

	// constant names are uppercase identifiers, e.g. SCHEMA
	constRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
)

// Load reads and parses the module file at path. The file is fully
// read and closed before any parsing happens.
func Load(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse extracts the metadata block from the module file source.
func Parse(data []byte) (*Info, error) {
	src := string(data)
	info := &Info{Constants: map[string]string{}}

	pos := skipPreamble(src, 0)

	if lit, end, ok, err := scanStringLiteral(src, pos); err != nil {
		return nil, err
	} else if ok {
		info.Docstring = cleandoc(lit)
		pos = lineEnd(src, end)
	}

	for pos < len(src) {
		end := lineEnd(src, pos)
		line := strings.TrimRight(src[pos:end], "\r\n")

		// a bare triple-quoted literal at column zero is skipped as a
		// whole; its body must not be mistaken for metadata
		if startsTriple(line) {
			if _, litEnd, ok, err := scanStringLiteral(src, pos); err != nil {
				return nil, err
			} else if ok {
				pos = lineEnd(src, litEnd)
				continue
			}
		}

		m := assignRe.FindStringSubmatch(line)
		if m == nil {
			pos = end
			continue
		}

		valueStart := pos + len(line) - len(m[2])
		lit, litEnd, ok, err := scanStringLiteral(src, valueStart)
		if err != nil {
			return nil, err
		}
		if !ok {
			// non-string assignment, not part of the metadata block
			pos = end
			continue
		}
		// string values are consumed for any name so that literal
		// bodies are skipped; only constants are captured
		if constRe.MatchString(m[1]) {
			info.Constants[m[1]] = lit
		}
		pos = lineEnd(src, litEnd)
	}

	return info, nil
}

// startsTriple reports whether the line opens a triple-quoted literal
// at column zero, with an optional r prefix.
func startsTriple(line string) bool {
	if len(line) > 1 && (line[0] == 'r' || line[0] == 'R') {
		line = line[1:]
	}
	return strings.HasPrefix(line, `"""`) || strings.HasPrefix(line, `'''`)
}

// skipPreamble advances past the shebang line, comments and blank
// lines that may precede the documentation string.
func skipPreamble(src string, pos int) int {
	for pos < len(src) {
		end := lineEnd(src, pos)
		line := strings.TrimSpace(src[pos:end])
		if line != "" && !strings.HasPrefix(line, "#") {
			return pos + indentWidth(src[pos:end])
		}
		pos = end
	}
	return pos
}

func indentWidth(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

// lineEnd returns the index just past the newline terminating the line
// that contains pos.
func lineEnd(src string, pos int) int {
	if i := strings.IndexByte(src[pos:], '\n'); i >= 0 {
		return pos + i + 1
	}
	return len(src)
}

// scanStringLiteral scans a string literal starting at pos. It
// understands triple-quoted and single-quoted forms, with an optional
// r prefix for raw text. The literal content is returned verbatim; no
// escape sequences are processed. ok is false when pos does not start
// a string literal.
func scanStringLiteral(src string, pos int) (lit string, end int, ok bool, err error) {
	rest := src[pos:]
	if len(rest) > 1 && (rest[0] == 'r' || rest[0] == 'R') {
		rest = rest[1:]
		pos++
	}

	for _, delim := range []string{`"""`, `'''`} {
		if strings.HasPrefix(rest, delim) {
			body := rest[len(delim):]
			i := strings.Index(body, delim)
			if i < 0 {
				return "", 0, false, ErrUnterminated
			}
			return body[:i], pos + len(delim) + i + len(delim), true, nil
		}
	}

	if len(rest) > 0 && (rest[0] == '"' || rest[0] == '\'') {
		quote := rest[0]
		for i := 1; i < len(rest); i++ {
			switch rest[i] {
			case '\\':
				i++
			case '\n':
				return "", 0, false, ErrUnterminated
			case quote:
				return rest[1:i], pos + i + 1, true, nil
			}
		}
		return "", 0, false, ErrUnterminated
	}

	return "", 0, false, nil
}

// cleandoc normalizes a documentation string: the first line loses its
// leading whitespace, the remaining lines are dedented by their common
// indentation, and leading and trailing blank lines are dropped.
func cleandoc(doc string) string {
	lines := strings.Split(doc, "\n")
	lines[0] = strings.TrimLeft(lines[0], " \t")

	indent := -1
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if w := indentWidth(line); indent < 0 || w < indent {
			indent = w
		}
	}
	for i, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			lines[i+1] = ""
		} else {
			lines[i+1] = line[indent:]
		}
	}

	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
