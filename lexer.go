package main

import "strings"

type tokenKind int

const (
	tokWord      tokenKind = iota // bare identifier, keyword or number
	tokIdent                      // "x", `x` or [x]
	tokString                     // 'x' or a $tag$ body
	tokLParen                     // (
	tokRParen                     // )
	tokComma                      // ,
	tokSemicolon                  // ;
	tokSpace                      // run of whitespace
	tokComment                    // -- line or /* block */
	tokOther                      // any other single byte (., =, operators)
)

// token is a span of the statement text. Tokens never copy the text they
// cover, so a statement is held once and every parser step works on indices.
type token struct {
	kind       tokenKind
	start, end int
}

func (t token) text(src string) string { return src[t.start:t.end] }

func (t token) significant() bool { return t.kind != tokSpace && t.kind != tokComment }

// tokenize splits src into tokens covering every byte exactly once.
// Unterminated quotes and comments extend to the end of the input.
func tokenize(src string) []token {
	var toks []token
	i := 0
	for i < len(src) {
		start := i
		c := src[i]
		var kind tokenKind
		switch {
		case isSpace(c):
			for i < len(src) && isSpace(src[i]) {
				i++
			}
			kind = tokSpace
		case c == '-' && i+1 < len(src) && src[i+1] == '-':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			kind = tokComment
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			if end := strings.Index(src[i+2:], "*/"); end >= 0 {
				i += 2 + end + 2
			} else {
				i = len(src)
			}
			kind = tokComment
		case c == '\'':
			i = scanQuoted(src, i, '\'')
			kind = tokString
		case c == '"' || c == '`':
			i = scanQuoted(src, i, c)
			kind = tokIdent
		case c == '[':
			if end := strings.IndexByte(src[i+1:], ']'); end >= 0 {
				i += end + 2
			} else {
				i = len(src)
			}
			kind = tokIdent
		case c == '$':
			if tag, ok := parseDollarTag(src, i); ok {
				if end := strings.Index(src[i+len(tag):], tag); end >= 0 {
					i += len(tag) + end + len(tag)
				} else {
					i = len(src)
				}
				kind = tokString
			} else {
				i++
				kind = tokOther
			}
		case c == '(':
			i++
			kind = tokLParen
		case c == ')':
			i++
			kind = tokRParen
		case c == ',':
			i++
			kind = tokComma
		case c == ';':
			i++
			kind = tokSemicolon
		case isWordStart(c):
			for i < len(src) && isWordByte(src[i]) {
				i++
			}
			kind = tokWord
		default:
			i++
			kind = tokOther
		}
		toks = append(toks, token{kind: kind, start: start, end: i})
	}
	return toks
}

// scanQuoted returns the index just past the quote that closes the literal
// opened at src[i]. A doubled quote character is an escaped quote.
func scanQuoted(src string, i int, q byte) int {
	for j := i + 1; j < len(src); j++ {
		if src[j] != q {
			continue
		}
		if j+1 < len(src) && src[j+1] == q {
			j++
			continue
		}
		return j + 1
	}
	return len(src)
}

func parseDollarTag(src string, i int) (string, bool) {
	if i >= len(src) || src[i] != '$' {
		return "", false
	}
	if i+1 < len(src) && src[i+1] == '$' {
		return "$$", true
	}
	j := i + 1
	if j >= len(src) || !isDollarTagStart(src[j]) {
		return "", false
	}
	for j < len(src) && isDollarTagChar(src[j]) {
		j++
	}
	if j < len(src) && src[j] == '$' {
		return src[i : j+1], true
	}
	return "", false
}

func isDollarTagStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDollarTagChar(c byte) bool {
	return isDollarTagStart(c) || (c >= '0' && c <= '9')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c >= 0x80
}

func isWordByte(c byte) bool {
	return isWordStart(c) || c == '$'
}

// isWord reports whether t is the bare word w, case-insensitively.
func isWord(src string, t token, w string) bool {
	return t.kind == tokWord && strings.EqualFold(t.text(src), w)
}

func isNameToken(t token) bool {
	return t.kind == tokWord || t.kind == tokIdent || t.kind == tokString
}

// identName returns the identifier a name token denotes, removing whichever
// quoting style the source used.
func identName(src string, t token) string {
	s := t.text(src)
	if t.kind != tokIdent && t.kind != tokString || len(s) == 0 {
		return s
	}
	open := s[0]
	if open == '$' {
		return s
	}
	closing := open
	if open == '[' {
		closing = ']'
	}
	body := s[1:]
	if len(body) > 0 && body[len(body)-1] == closing {
		body = body[:len(body)-1]
	}
	if open != '[' {
		q := string(open)
		body = strings.ReplaceAll(body, q+q, q)
	}
	return body
}

// trimTokens drops whitespace and comments from both ends of toks.
func trimTokens(toks []token) []token {
	for len(toks) > 0 && !toks[0].significant() {
		toks = toks[1:]
	}
	for len(toks) > 0 && !toks[len(toks)-1].significant() {
		toks = toks[:len(toks)-1]
	}
	return toks
}

// spanText returns the source text covered by toks, including any
// whitespace between them.
func spanText(src string, toks []token) string {
	if len(toks) == 0 {
		return ""
	}
	return src[toks[0].start:toks[len(toks)-1].end]
}

// splitTopLevel splits toks on commas at parenthesis depth zero. String
// literals and quoted identifiers are single tokens, so commas inside them are
// never seen here. Empty parts are dropped.
func splitTopLevel(toks []token) [][]token {
	var parts [][]token
	depth, start := 0, 0
	for i, t := range toks {
		switch t.kind {
		case tokLParen:
			depth++
		case tokRParen:
			if depth > 0 {
				depth--
			}
		case tokComma:
			if depth != 0 {
				continue
			}
			if part := trimTokens(toks[start:i]); len(part) > 0 {
				parts = append(parts, part)
			}
			start = i + 1
		}
	}
	if part := trimTokens(toks[start:]); len(part) > 0 {
		parts = append(parts, part)
	}
	return parts
}

// matchParen returns the index of the token closing the parenthesis opened
// at toks[open], or -1 when it is never closed.
func matchParen(toks []token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch toks[i].kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// translateQuotes re-renders toks with every quoted identifier requoted by
// quote. String literals, comments and everything else are kept verbatim.
func translateQuotes(src string, toks []token, quote func(string) string) string {
	var b strings.Builder
	for _, t := range toks {
		if t.kind == tokIdent {
			b.WriteString(quote(identName(src, t)))
			continue
		}
		b.WriteString(t.text(src))
	}
	return b.String()
}

// splitStatements splits SQL text on semicolons that are outside quotes,
// comments and dollar-quoted bodies, dropping empty statements.
func splitStatements(sql string) []string {
	var stmts []string
	start := 0
	flush := func(end int) {
		if s := strings.TrimSpace(sql[start:end]); s != "" {
			stmts = append(stmts, s)
		}
	}
	for _, t := range tokenize(sql) {
		if t.kind == tokSemicolon {
			flush(t.start)
			start = t.end
		}
	}
	flush(len(sql))
	return stmts
}
