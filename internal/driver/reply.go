package driver

import "unicode"

// Reply is the key/value pair the projector echoes back through the bridge,
// e.g. ">*modelname=?# *modelname=W1070". Raw holds the echo from the '>'
// prompt through the end of the value.
type Reply struct {
	Raw   string
	Name  string
	Value string
}

// ParseReply finds the echoed query and answer in a bridge result. The
// accepted shape is:
//
//	'>' <any chars on the line> '*' QUERY ' '* '=' ' '* '?#' <whitespace> '*' NAME ' '* '=' VALUE
//
// with QUERY and NAME ASCII letters and VALUE ASCII letters or digits. The
// left-most prompt wins; for a given prompt the right-most '*' that yields a
// complete echo is used.
func ParseReply(s string) (Reply, bool) {
	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		if rs[i] != '>' {
			continue
		}
		lineEnd := i + 1
		for lineEnd < len(rs) && !isLineTerminator(rs[lineEnd]) {
			lineEnd++
		}
		for j := lineEnd - 1; j > i; j-- {
			if rs[j] != '*' {
				continue
			}
			if name, value, end, ok := scanEcho(rs, j); ok {
				return Reply{Raw: string(rs[i:end]), Name: name, Value: value}, true
			}
		}
	}
	return Reply{}, false
}

// scanEcho matches the fixed part of the echo starting at the '*' in rs[pos].
func scanEcho(rs []rune, pos int) (name, value string, end int, ok bool) {
	sc := &scanner{rs: rs, pos: pos}
	if !sc.accept('*') {
		return "", "", 0, false
	}
	if _, ok := sc.runOne(isASCIILetter); !ok {
		return "", "", 0, false
	}
	sc.run(isBlank)
	if !sc.accept('=') {
		return "", "", 0, false
	}
	sc.run(isBlank)
	if !sc.accept('?') || !sc.accept('#') {
		return "", "", 0, false
	}
	sc.run(isWhitespace)
	if !sc.accept('*') {
		return "", "", 0, false
	}
	name, ok = sc.runOne(isASCIILetter)
	if !ok {
		return "", "", 0, false
	}
	sc.run(isBlank)
	if !sc.accept('=') {
		return "", "", 0, false
	}
	value, ok = sc.runOne(isASCIIAlnum)
	if !ok {
		return "", "", 0, false
	}
	return name, value, sc.pos, true
}

type scanner struct {
	rs  []rune
	pos int
}

func (s *scanner) accept(r rune) bool {
	if s.pos < len(s.rs) && s.rs[s.pos] == r {
		s.pos++
		return true
	}
	return false
}

func (s *scanner) run(pred func(rune) bool) string {
	start := s.pos
	for s.pos < len(s.rs) && pred(s.rs[s.pos]) {
		s.pos++
	}
	return string(s.rs[start:s.pos])
}

func (s *scanner) runOne(pred func(rune) bool) (string, bool) {
	tok := s.run(pred)
	return tok, tok != ""
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isASCIIAlnum(r rune) bool {
	return isASCIILetter(r) || (r >= '0' && r <= '9')
}

func isBlank(r rune) bool { return r == ' ' }

func isWhitespace(r rune) bool { return unicode.IsSpace(r) || r == '\ufeff' }

func isLineTerminator(r rune) bool {
	return r == '\n' || r == '\r' || r == '\u2028' || r == '\u2029'
}
