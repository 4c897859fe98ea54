package db

import (
	"strings"

	"github.com/tordrt/foodstats/internal/plan"
	"github.com/tordrt/foodstats/internal/schema"
)

const maxAdhocLen = 8192

// Statements and clauses that write, escape the dataset or touch files.
var deniedWords = map[string]bool{
	"insert": true, "update": true, "delete": true, "merge": true, "upsert": true,
	"drop": true, "create": true, "alter": true, "truncate": true, "rename": true,
	"grant": true, "revoke": true, "attach": true, "detach": true, "pragma": true,
	"vacuum": true, "reindex": true, "analyze": true, "copy": true, "call": true,
	"exec": true, "execute": true, "do": true, "lock": true, "handler": true,
	"into": true, "outfile": true, "dumpfile": true, "infile": true,
	"load_extension": true, "readfile": true, "writefile": true, "edit": true,
	"fts3_tokenizer": true, "pg_read_file": true, "pg_read_binary_file": true,
	"pg_ls_dir": true, "pg_stat_file": true, "pg_sleep": true, "sleep": true,
	"benchmark": true, "lo_import": true, "lo_export": true, "dblink": true,
	"load_file": true, "set_config": true, "table": true, "current_setting": true,
	"query_to_xml": true, "query_to_xml_and_xmlschema": true, "cursor_to_xml": true,
	"table_to_xml": true, "schema_to_xml": true, "database_to_xml": true,
	"nextval": true, "setval": true, "lo_get": true, "lo_put": true, "lo_create": true,
	"lo_unlink": true, "get_lock": true, "release_lock": true, "sys_exec": true, "sys_eval": true,
}

// Name prefixes of system schemas and catalogs.
var deniedPrefixes = []string{"pg_", "sqlite_", "information_schema", "performance_schema", "mysql", "sys"}

// Keywords that end a FROM clause at the same nesting level.
var clauseEnd = map[string]bool{
	"where": true, "group": true, "having": true, "order": true, "limit": true,
	"offset": true, "fetch": true, "window": true, "union": true, "except": true,
	"intersect": true, "for": true, "select": true,
}

type sqlToken struct {
	text   string
	pos    int
	word   bool // bare identifier or keyword
	quoted bool // quoted identifier
}

func (t sqlToken) is(word string) bool {
	return t.word && strings.EqualFold(t.text, word)
}

func (t sqlToken) name() string {
	return strings.ToLower(t.text)
}

// CheckAdhoc validates ad-hoc SQL before it reaches a store. It accepts a
// single SELECT (or WITH ... SELECT) whose FROM and JOIN targets are
// dataset tables or names defined by its own WITH clause. Violations fail
// with a *plan.SyntaxError.
func CheckAdhoc(query string) error {
	if len(query) > maxAdhocLen {
		return plan.Syntaxf(-1, "query longer than %d bytes", maxAdhocLen)
	}
	toks, err := tokenizeSQL(query)
	if err != nil {
		return err
	}
	for len(toks) > 0 && toks[len(toks)-1].text == ";" && !toks[len(toks)-1].word {
		toks = toks[:len(toks)-1]
	}
	if len(toks) == 0 {
		return plan.Syntaxf(0, "empty query")
	}
	if !toks[0].is("select") && !toks[0].is("with") {
		return plan.Syntaxf(toks[0].pos, "only SELECT queries are allowed")
	}

	ctes := cteScopes(toks)
	depth := 0
	inFrom := map[int]bool{}
	expectTable := false

	for i, t := range toks {
		if !t.word && !t.quoted {
			switch t.text {
			case ";":
				return plan.Syntaxf(t.pos, "only one statement is allowed")
			case "(":
				depth++
				inFrom[depth] = false
				if expectTable {
					if i+1 < len(toks) && (toks[i+1].is("select") || toks[i+1].is("with") || toks[i+1].is("values")) {
						// derived table
						expectTable = false
					} else {
						// parenthesized join, its names are tables too
						inFrom[depth] = true
					}
				}
			case ")":
				inFrom[depth] = false
				depth--
			case ",":
				if inFrom[depth] {
					expectTable = true
				}
			}
			continue
		}

		name := t.name()
		if t.word && deniedWords[name] {
			return plan.Syntaxf(t.pos, "%s is not allowed", strings.ToUpper(name))
		}
		for _, prefix := range deniedPrefixes {
			if strings.HasPrefix(name, prefix) && isSystemName(name, prefix) {
				return plan.Syntaxf(t.pos, "system catalog %s is not allowed", t.text)
			}
		}

		if expectTable {
			if t.is("lateral") || t.is("only") {
				continue
			}
			expectTable = false
			if i+1 < len(toks) && toks[i+1].text == "." {
				return plan.Syntaxf(t.pos, "qualified table names are not allowed")
			}
			if i+1 < len(toks) && toks[i+1].text == "(" {
				return plan.Syntaxf(t.pos, "table functions are not allowed")
			}
			if _, ok := schema.Dataset.Table(name); !ok && !inScope(ctes, name, i) {
				return plan.Syntaxf(t.pos, "unknown table %s", t.text)
			}
			continue
		}

		if !t.word {
			continue
		}
		switch {
		case t.is("from"):
			inFrom[depth] = true
			expectTable = true
		case t.is("join") || t.is("straight_join"):
			expectTable = true
		case clauseEnd[name]:
			inFrom[depth] = false
		}
	}
	if expectTable {
		return plan.Syntaxf(len(query), "expected a table name")
	}
	return nil
}

// isSystemName reports whether a bare word names a system schema rather
// than merely starting with the same letters, e.g. "mysql" but not
// "mysqlish", "sys" but not "system".
func isSystemName(name, prefix string) bool {
	if strings.HasSuffix(prefix, "_") {
		return true
	}
	return name == prefix
}

// cteScope is a name defined by a WITH list and the token range
// [from, to) where it refers to that definition.
type cteScope struct {
	name     string
	from, to int
}

func inScope(scopes []cteScope, name string, i int) bool {
	for _, s := range scopes {
		if s.name == name && i >= s.from && i < s.to {
			return true
		}
	}
	return false
}

// cteScopes collects the names defined by WITH lists. A name is visible
// from the end of its own body (from its name under RECURSIVE) to the end
// of the parenthesized group holding the WITH.
func cteScopes(toks []sqlToken) []cteScope {
	var scopes []cteScope
	for w, t := range toks {
		if !t.is("with") {
			continue
		}
		end := groupEnd(toks, w)
		j := w + 1
		recursive := j < len(toks) && toks[j].is("recursive")
		if recursive {
			j++
		}
		for j < len(toks) && (toks[j].word || toks[j].quoted) {
			nameAt := j
			j++
			if j < len(toks) && isPunct(toks[j], "(") {
				if j = closing(toks, j); j < 0 {
					break
				}
				j++
			}
			if j >= len(toks) || !toks[j].is("as") {
				break
			}
			j++
			if j < len(toks) && toks[j].is("not") {
				j++
			}
			if j < len(toks) && toks[j].is("materialized") {
				j++
			}
			if j >= len(toks) || !isPunct(toks[j], "(") {
				break
			}
			body := closing(toks, j)
			if body < 0 {
				break
			}
			from := body + 1
			if recursive {
				from = nameAt
			}
			scopes = append(scopes, cteScope{name: toks[nameAt].name(), from: from, to: end})

			j = body + 1
			if j >= len(toks) || !isPunct(toks[j], ",") {
				break
			}
			j++
		}
	}
	return scopes
}

func isPunct(t sqlToken, s string) bool {
	return !t.word && !t.quoted && t.text == s
}

// closing returns the index of the parenthesis matching toks[open], or -1.
func closing(toks []sqlToken, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch {
		case isPunct(toks[i], "("):
			depth++
		case isPunct(toks[i], ")"):
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// groupEnd returns the index of the parenthesis closing the group that
// holds toks[at], or len(toks) at the top level.
func groupEnd(toks []sqlToken, at int) int {
	depth := 0
	for i := at; i < len(toks); i++ {
		switch {
		case isPunct(toks[i], "("):
			depth++
		case isPunct(toks[i], ")"):
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return len(toks)
}

// tokenizeSQL splits a query into words, quoted identifiers, numbers and
// punctuation, dropping string literals and comments. It refuses the
// constructs that would let text hide from the checks: backslashes in
// strings, dollar quoting and executable comments.
func tokenizeSQL(src string) ([]sqlToken, error) {
	var toks []sqlToken
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			i++

		case c == '-' && strings.HasPrefix(src[i:], "--"):
			// MySQL reads "--1" as minus minus one
			if i+2 < len(src) && src[i+2] != ' ' && src[i+2] != '\t' && src[i+2] != '\n' && src[i+2] != '\r' {
				return nil, plan.Syntaxf(i, "comments must start with '-- '")
			}
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				i = len(src)
			} else {
				i += end + 1
			}

		case c == '/' && strings.HasPrefix(src[i:], "/*"):
			if strings.HasPrefix(src[i:], "/*!") || strings.HasPrefix(src[i:], "/*+") {
				return nil, plan.Syntaxf(i, "executable comments are not allowed")
			}
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return nil, plan.Syntaxf(i, "unterminated comment")
			}
			i += end + 4

		case c == '\'':
			start := i
			i++
			closed := false
			for i < len(src) {
				if src[i] == '\\' {
					return nil, plan.Syntaxf(i, "backslashes in strings are not allowed")
				}
				if src[i] == '\'' {
					if i+1 < len(src) && src[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				i++
			}
			if !closed {
				return nil, plan.Syntaxf(start, "unterminated string")
			}
			toks = append(toks, sqlToken{text: "''", pos: start})

		case c == '"' || c == '`':
			start := i
			end := strings.IndexByte(src[i+1:], c)
			if end < 0 {
				return nil, plan.Syntaxf(start, "unterminated identifier")
			}
			if j := strings.IndexByte(src[i+1:i+1+end], '\\'); j >= 0 {
				return nil, plan.Syntaxf(i+1+j, "backslashes in identifiers are not allowed")
			}
			toks = append(toks, sqlToken{text: src[i+1 : i+1+end], pos: start, quoted: true})
			i += end + 2

		case isWordStart(c):
			start := i
			for i < len(src) && isWordPart(src[i]) {
				i++
			}
			toks = append(toks, sqlToken{text: src[start:i], pos: start, word: true})

		case c >= '0' && c <= '9':
			start := i
			for i < len(src) && (isWordPart(src[i]) || src[i] == '.') {
				i++
			}
			toks = append(toks, sqlToken{text: src[start:i], pos: start})

		case strings.IndexByte("(),.;*+-/%<>=!|:~&^[]", c) >= 0:
			toks = append(toks, sqlToken{text: string(c), pos: i})
			i++

		default:
			return nil, plan.Syntaxf(i, "unexpected character %q", rune(c))
		}
	}
	return toks, nil
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordPart(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9')
}
