package chunker

import "bytes"

// LineSplitter finds ASCII lines terminated by CR, LF or CRLF. The terminator
// is not part of the chunk and empty lines are skipped.
type LineSplitter struct{}

func (LineSplitter) FindStartAndEnd(window []byte, newDataOffset int) (int, int) {
	start := -1
	for i, b := range window {
		if b != '\r' && b != '\n' {
			start = i
			break
		}
	}
	if start < 0 {
		return -1, -1
	}

	// Everything between start and newDataOffset has already been searched
	// for a terminator.
	from := start
	if newDataOffset > from {
		from = newDataOffset
	}
	idx := bytes.IndexAny(window[from:], "\r\n")
	if idx < 0 {
		return start, -1
	}
	return start, from + idx - 1
}

// JSONObjectSplitter finds one balanced top-level JSON object. Braces inside
// string literals, including escaped quotes, do not count.
//
// String state can straddle a block boundary, so the object is rescanned from
// its opening brace on every call and newDataOffset is not used.
type JSONObjectSplitter struct{}

func (JSONObjectSplitter) FindStartAndEnd(window []byte, _ int) (int, int) {
	start := bytes.IndexByte(window, '{')
	if start < 0 {
		return -1, -1
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(window); i++ {
		c := window[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return start, i
			}
		}
	}
	return start, -1
}
