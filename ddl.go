package main

import (
	"fmt"
	"strings"
)

// ddlOptions controls CREATE TABLE conversion.
type ddlOptions struct {
	AutoIncrement bool
	Dialect       targetDialect
	Types         typeNames
	Target        TargetConfig
}

// Leading words that make a body part a table constraint rather than a column.
var tableConstraintKeywords = map[string]bool{
	"CONSTRAINT": true,
	"PRIMARY":    true,
	"UNIQUE":     true,
	"CHECK":      true,
	"FOREIGN":    true,
}

// Words that end the type name of a column definition.
var columnConstraintKeywords = map[string]bool{
	"CONSTRAINT":    true,
	"PRIMARY":       true,
	"NOT":           true,
	"NULL":          true,
	"UNIQUE":        true,
	"CHECK":         true,
	"DEFAULT":       true,
	"COLLATE":       true,
	"REFERENCES":    true,
	"GENERATED":     true,
	"AS":            true,
	"AUTOINCREMENT": true,
	"ON":            true,
}

// SQLite built-in collations with no counterpart in the target.
var sqliteOnlyCollations = map[string]bool{
	"BINARY": true,
	"NOCASE": true,
	"RTRIM":  true,
}

type partKind int

const (
	partColumn partKind = iota
	partConstraint
	partInvalid
)

// tableHeader is the parsed frame of a CREATE TABLE statement.
type tableHeader struct {
	schema  string
	name    string
	temp    bool
	body    []token
	trailer []token
}

// convertCreateTable rewrites one SQLite CREATE TABLE statement for the
// target dialect. It never fails: when the header cannot be parsed the
// statement is returned with only identifier quoting rewritten.
func convertCreateTable(stmt string, opts ddlOptions) ConversionOutcome {
	var out ConversionOutcome
	src, stripped := stripWithoutRowid(strings.TrimSpace(stmt))
	if stripped {
		out.Warnings = append(out.Warnings, "WITHOUT ROWID dropped")
	}
	toks := tokenize(src)

	h, ok := parseCreateTableHeader(src, toks)
	var parts [][]token
	if ok {
		parts = splitTopLevel(h.body)
	}
	if len(parts) == 0 {
		out.Statement = translateQuotes(src, toks, opts.Dialect.QuoteIdent)
		out.UsedFallback = true
		out.Warnings = append(out.Warnings, "CREATE TABLE not recognized; only identifier quoting was rewritten")
		return out
	}

	if h.temp {
		out.Warnings = append(out.Warnings, "TEMP table created as a regular table")
	}
	if h.schema != "" && !strings.EqualFold(h.schema, "main") {
		out.Warnings = append(out.Warnings, fmt.Sprintf("schema qualifier %q dropped", h.schema))
	}
	out.Warnings = append(out.Warnings, trailerWarnings(src, h.trailer)...)

	lines := make([]string, 0, len(parts))
	for _, part := range parts {
		line, warnings := convertTablePart(src, part, opts)
		lines = append(lines, line)
		out.Warnings = append(out.Warnings, warnings...)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n  ", opts.Dialect.QuoteIdent(h.name))
	b.WriteString(strings.Join(lines, ",\n  "))
	b.WriteString("\n)")
	b.WriteString(opts.Dialect.TableSuffix(opts.Target))
	b.WriteByte(';')
	out.Statement = b.String()
	return out
}

// stripWithoutRowid removes every WITHOUT ROWID clause outside quotes.
func stripWithoutRowid(src string) (string, bool) {
	toks := tokenize(src)
	var b strings.Builder
	stripped := false
	for i := 0; i < len(toks); i++ {
		if isWord(src, toks[i], "WITHOUT") {
			if j := nextSignificant(toks, i+1); j < len(toks) && isWord(src, toks[j], "ROWID") {
				stripped = true
				i = j
				continue
			}
		}
		b.WriteString(toks[i].text(src))
	}
	return b.String(), stripped
}

func parseCreateTableHeader(src string, toks []token) (tableHeader, bool) {
	var h tableHeader
	var sig []int
	for i, t := range toks {
		if t.significant() {
			sig = append(sig, i)
		}
	}
	at := func(k int) (token, bool) {
		if k < len(sig) {
			return toks[sig[k]], true
		}
		return token{}, false
	}
	word := func(k int, w string) bool {
		t, ok := at(k)
		return ok && isWord(src, t, w)
	}

	k := 0
	if !word(k, "CREATE") {
		return h, false
	}
	k++
	if word(k, "TEMP") || word(k, "TEMPORARY") {
		h.temp = true
		k++
	}
	if !word(k, "TABLE") {
		return h, false
	}
	k++
	if word(k, "IF") && word(k+1, "NOT") && word(k+2, "EXISTS") {
		k += 3
	}

	t, ok := at(k)
	if !ok || !isNameToken(t) {
		return h, false
	}
	h.name = identName(src, t)
	k++
	if dot, ok := at(k); ok && dot.kind == tokOther && dot.text(src) == "." {
		t, ok := at(k + 1)
		if !ok || !isNameToken(t) {
			return h, false
		}
		h.schema = h.name
		h.name = identName(src, t)
		k += 2
	}

	if t, ok := at(k); !ok || t.kind != tokLParen {
		return h, false
	}
	open := sig[k]
	closing := matchParen(toks, open)
	if closing < 0 {
		return h, false
	}
	h.body = toks[open+1 : closing]
	h.trailer = toks[closing+1:]
	return h, true
}

// trailerWarnings reports table options after the closing parenthesis; none
// of them carry over to the target.
func trailerWarnings(src string, trailer []token) []string {
	var warnings, unknown []string
	for _, t := range trailer {
		switch {
		case !t.significant(), t.kind == tokComma, t.kind == tokSemicolon:
		case isWord(src, t, "STRICT"):
			warnings = append(warnings, "STRICT dropped")
		default:
			unknown = append(unknown, t.text(src))
		}
	}
	if len(unknown) > 0 {
		warnings = append(warnings, fmt.Sprintf("table options dropped: %s", strings.Join(unknown, " ")))
	}
	return warnings
}

func convertTablePart(src string, part []token, opts ddlOptions) (string, []string) {
	col, kind := parseColumnDefinition(src, part)
	switch kind {
	case partColumn:
		return convertColumn(src, col, opts)
	case partInvalid:
		r := clauseRenderer{src: src, dialect: opts.Dialect, context: "definition"}
		line := r.render(part)
		return line, append(r.warnings, fmt.Sprintf("could not parse %q; passed through", spanText(src, part)))
	default:
		r := clauseRenderer{src: src, dialect: opts.Dialect, context: "table constraint"}
		return r.render(part), r.warnings
	}
}

// parseColumnDefinition classifies a body part. A part is a column when it
// starts with an identifier (any quoting style, or a bare word that does not
// open a table constraint) followed by whitespace and more tokens.
func parseColumnDefinition(src string, part []token) (ColumnDefinition, partKind) {
	var col ColumnDefinition
	first := part[0]
	if !isNameToken(first) {
		return col, partConstraint
	}
	if first.kind == tokWord && tableConstraintKeywords[strings.ToUpper(first.text(src))] {
		return col, partConstraint
	}
	if len(part) == 1 {
		// Bare column name without a declared type.
		col.Name = identName(src, first)
		if col.Name == "" {
			return col, partInvalid
		}
		return col, partColumn
	}
	if len(part) < 3 || part[1].kind != tokSpace {
		return col, partConstraint
	}
	rest := trimTokens(part[2:])
	if len(rest) == 0 {
		return col, partConstraint
	}

	col.Name = identName(src, first)
	if col.Name == "" {
		return col, partInvalid
	}
	typeToks, constraints, ok := splitDeclaredType(src, rest)
	if !ok {
		return col, partInvalid
	}
	col.DeclaredType = spanText(src, typeToks)
	col.Constraints = constraints
	return col, partColumn
}

// splitDeclaredType separates the type name (one or more words plus an
// optional parenthesized size) from the column constraints that follow.
func splitDeclaredType(src string, rest []token) (typeToks, constraints []token, ok bool) {
	last := -1
	i := 0
	for i < len(rest) && rest[i].kind == tokWord && !columnConstraintKeywords[strings.ToUpper(rest[i].text(src))] {
		last = i
		i = nextSignificant(rest, i+1)
	}
	if last >= 0 && i < len(rest) && rest[i].kind == tokLParen {
		closing := matchParen(rest, i)
		if closing < 0 {
			return nil, nil, false
		}
		last = closing
	}
	if last < 0 {
		return nil, rest, true
	}
	return rest[:last+1], trimTokens(rest[last+1:]), true
}

func convertColumn(src string, col ColumnDefinition, opts ddlOptions) (string, []string) {
	d := opts.Dialect
	r := clauseRenderer{src: src, dialect: d, context: "column " + col.Name}
	constraints := r.render(col.Constraints)
	name := d.QuoteIdent(col.Name)

	if opts.AutoIncrement && declaredAffinity(col.DeclaredType) == affinityInteger && hasPrimaryKey(src, col.Constraints) {
		def := joinNonEmpty(name, d.AutoIncrement(opts.Types.Integer), constraints)
		if !hasPrimaryKey(def, tokenize(def)) {
			def += " PRIMARY KEY"
		}
		return def, r.warnings
	}

	if r.droppedAutoincrement {
		r.warnf("AUTOINCREMENT dropped; enable auto-increment conversion to keep it")
	}
	return joinNonEmpty(name, mapType(col.DeclaredType, opts.Types), constraints), r.warnings
}

// hasPrimaryKey reports whether toks contain the PRIMARY KEY marker.
func hasPrimaryKey(src string, toks []token) bool {
	for i, t := range toks {
		if !isWord(src, t, "PRIMARY") {
			continue
		}
		if j := nextSignificant(toks, i+1); j < len(toks) && isWord(src, toks[j], "KEY") {
			return true
		}
	}
	return false
}

func nextSignificant(toks []token, from int) int {
	for from < len(toks) && !toks[from].significant() {
		from++
	}
	return from
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// clauseRenderer re-renders column and table constraint tokens for the
// target: identifiers are requoted and SQLite-only clauses are removed.
type clauseRenderer struct {
	src     string
	dialect targetDialect
	context string

	warnings             []string
	droppedAutoincrement bool
}

func (r *clauseRenderer) warnf(format string, args ...any) {
	r.warnings = append(r.warnings, r.context+": "+fmt.Sprintf(format, args...))
}

func (r *clauseRenderer) render(toks []token) string {
	names := stringNamePositions(r.src, toks)
	var b strings.Builder
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.kind == tokComment:
		case t.kind == tokSpace:
			if b.Len() > 0 && !isSpace(b.String()[b.Len()-1]) {
				b.WriteString(t.text(r.src))
			}
		case t.kind == tokIdent, names[i]:
			b.WriteString(r.dialect.QuoteIdent(identName(r.src, t)))
		case isWord(r.src, t, "PRIMARY"):
			j := nextSignificant(toks, i+1)
			if j >= len(toks) || !isWord(r.src, toks[j], "KEY") {
				b.WriteString(t.text(r.src))
				continue
			}
			b.WriteString("PRIMARY KEY")
			i = j
			if k := nextSignificant(toks, j+1); k < len(toks) && (isWord(r.src, toks[k], "ASC") || isWord(r.src, toks[k], "DESC")) {
				r.warnf("PRIMARY KEY %s dropped", strings.ToUpper(toks[k].text(r.src)))
				i = k
			}
		case isWord(r.src, t, "AUTOINCREMENT"):
			r.droppedAutoincrement = true
		case isWord(r.src, t, "ON"):
			j := nextSignificant(toks, i+1)
			if j >= len(toks) || !isWord(r.src, toks[j], "CONFLICT") {
				b.WriteString(t.text(r.src))
				continue
			}
			i = j
			if k := nextSignificant(toks, j+1); k < len(toks) && toks[k].kind == tokWord {
				r.warnf("ON CONFLICT %s dropped", strings.ToUpper(toks[k].text(r.src)))
				i = k
			} else {
				r.warnf("ON CONFLICT dropped")
			}
		case isWord(r.src, t, "COLLATE"):
			j := nextSignificant(toks, i+1)
			if j < len(toks) && isNameToken(toks[j]) && sqliteOnlyCollations[strings.ToUpper(identName(r.src, toks[j]))] {
				r.warnf("COLLATE %s dropped", strings.ToUpper(identName(r.src, toks[j])))
				i = j
				continue
			}
			b.WriteString(t.text(r.src))
		case isWord(r.src, t, "DEFAULT"):
			b.WriteString(t.text(r.src))
			// SQLite reads DEFAULT "x" as a string literal.
			j := nextSignificant(toks, i+1)
			if j < len(toks) && toks[j].kind == tokIdent && r.src[toks[j].start] == '"' {
				b.WriteByte(' ')
				b.WriteString(sqlStringLiteral(identName(r.src, toks[j])))
				i = j
			}
		default:
			b.WriteString(t.text(r.src))
		}
	}
	return strings.TrimSpace(b.String())
}

// stringNamePositions marks single-quoted tokens that SQLite reads as
// identifiers: constraint names, the table after REFERENCES and the column
// lists after KEY, UNIQUE and REFERENCES <table>.
func stringNamePositions(src string, toks []token) map[int]bool {
	names := map[int]bool{}
	markList := func(open int) {
		if open >= len(toks) || toks[open].kind != tokLParen {
			return
		}
		closing := matchParen(toks, open)
		if closing < 0 {
			return
		}
		depth, expectName := 0, true
		for i := open + 1; i < closing; i++ {
			t := toks[i]
			switch {
			case t.kind == tokLParen:
				depth++
			case t.kind == tokRParen:
				depth--
			case !t.significant():
				continue
			case depth == 0 && t.kind == tokComma:
				expectName = true
				continue
			case depth == 0 && expectName && t.kind == tokString:
				names[i] = true
			}
			expectName = false
		}
	}
	for i, t := range toks {
		switch {
		case isWord(src, t, "CONSTRAINT"):
			if j := nextSignificant(toks, i+1); j < len(toks) && toks[j].kind == tokString {
				names[j] = true
			}
		case isWord(src, t, "KEY"), isWord(src, t, "UNIQUE"):
			markList(nextSignificant(toks, i+1))
		case isWord(src, t, "REFERENCES"):
			j := nextSignificant(toks, i+1)
			if j >= len(toks) || !isNameToken(toks[j]) {
				continue
			}
			if toks[j].kind == tokString {
				names[j] = true
			}
			markList(nextSignificant(toks, j+1))
		}
	}
	return names
}

func sqlStringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
