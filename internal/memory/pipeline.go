package memory

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tordrt/foodstats/internal/plan"
	"github.com/tordrt/foodstats/internal/result"
	"github.com/tordrt/foodstats/internal/snapshot"
)

const (
	maxPipelineLen = 4096
	maxFrameRows   = 1_000_000
)

// pipeline is a parsed ad-hoc expression:
//
//	claims | join food_listings on Food_ID = food_listings.Food_ID | group Status agg count() as n | sort n desc
//
// It starts from one dataset table and applies stages left to right. It can
// only read the snapshot it runs against.
type pipeline struct {
	table  token
	stages []stage
}

type evalContext struct {
	snap *snapshot.Snapshot
	env  plan.Env
}

type stage interface {
	apply(f *frame, ctx *evalContext) (*frame, error)
}

func parsePipeline(src string) (*pipeline, error) {
	if len(src) > maxPipelineLen {
		return nil, plan.Syntaxf(-1, "expression longer than %d bytes", maxPipelineLen)
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}

	table, err := p.ident("table name")
	if err != nil {
		return nil, err
	}
	pl := &pipeline{table: table}
	for p.symbol("|") {
		st, err := p.stage()
		if err != nil {
			return nil, err
		}
		pl.stages = append(pl.stages, st)
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, plan.Syntaxf(t.pos, "expected '|' or end of input, got %s", t.describe())
	}
	return pl, nil
}

func (pl *pipeline) run(snap *snapshot.Snapshot, env plan.Env) (*result.Result, error) {
	f, err := tableFrame(snap, strings.ToLower(pl.table.text))
	if err != nil {
		return nil, plan.Syntaxf(pl.table.pos, "unknown table %s", quoteToken(pl.table.text))
	}
	ctx := &evalContext{snap: snap, env: env}
	for _, st := range pl.stages {
		if f, err = st.apply(f, ctx); err != nil {
			return nil, err
		}
	}
	return f.result(), nil
}

// result names each column by its bare name unless two columns share it.
func (f *frame) result() *result.Result {
	bare := make(map[string]int, len(f.cols))
	for _, c := range f.cols {
		bare[bareName(c)]++
	}
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c
		if bare[bareName(c)] == 1 {
			names[i] = bareName(c)
		}
	}
	res := result.New(names...)
	for _, row := range f.rows {
		out := make([]any, len(row))
		for i, v := range row {
			out[i] = displayValue(v)
		}
		res.Append(out...)
	}
	return res
}

func bareName(col string) string {
	if i := strings.LastIndexByte(col, '.'); i >= 0 {
		return col[i+1:]
	}
	return col
}

// resolve finds a column by qualified name, or by bare name when it is
// unambiguous. Matching ignores case.
func resolve(f *frame, t token) (int, error) {
	var exact, suffix []int
	for i, c := range f.cols {
		if strings.EqualFold(c, t.text) {
			exact = append(exact, i)
		}
		if strings.EqualFold(bareName(c), t.text) {
			suffix = append(suffix, i)
		}
	}
	switch {
	case len(exact) == 1:
		return exact[0], nil
	case len(suffix) == 1:
		return suffix[0], nil
	case len(suffix) > 1:
		names := make([]string, len(suffix))
		for i, idx := range suffix {
			names[i] = f.cols[idx]
		}
		return -1, plan.Syntaxf(t.pos, "ambiguous column %s (matches %s)", quoteToken(t.text), strings.Join(names, ", "))
	}
	return -1, plan.Syntaxf(t.pos, "unknown column %s", quoteToken(t.text))
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token {
	return p.toks[p.i]
}

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) keyword(word string) bool {
	t := p.peek()
	if t.kind == tokIdent && strings.EqualFold(t.text, word) {
		p.i++
		return true
	}
	return false
}

func (p *parser) symbol(s string) bool {
	t := p.peek()
	if t.kind == tokSymbol && t.text == s {
		p.i++
		return true
	}
	return false
}

func (p *parser) expectKeyword(word string) error {
	if !p.keyword(word) {
		t := p.peek()
		return plan.Syntaxf(t.pos, "expected %s, got %s", quoteToken(word), t.describe())
	}
	return nil
}

func (p *parser) expectSymbol(s string) error {
	if !p.symbol(s) {
		t := p.peek()
		return plan.Syntaxf(t.pos, "expected %s, got %s", quoteToken(s), t.describe())
	}
	return nil
}

func (p *parser) ident(what string) (token, error) {
	t := p.next()
	if t.kind != tokIdent {
		return t, plan.Syntaxf(t.pos, "expected %s, got %s", what, t.describe())
	}
	return t, nil
}

func (p *parser) columns() ([]token, error) {
	var cols []token
	for {
		c, err := p.ident("column")
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
		if !p.symbol(",") {
			return cols, nil
		}
	}
}

func (p *parser) stage() (stage, error) {
	t := p.next()
	if t.kind != tokIdent {
		return nil, plan.Syntaxf(t.pos, "expected a stage, got %s", t.describe())
	}
	switch strings.ToLower(t.text) {
	case "where":
		return p.where()
	case "join":
		return p.join()
	case "group":
		return p.group()
	case "select":
		cols, err := p.columns()
		if err != nil {
			return nil, err
		}
		return &selectStage{cols: cols}, nil
	case "sort":
		return p.sort()
	case "limit":
		n := p.next()
		v, err := strconv.Atoi(n.text)
		if n.kind != tokNumber || err != nil || v < 0 {
			return nil, plan.Syntaxf(n.pos, "limit needs a non-negative integer, got %s", n.describe())
		}
		return &limitStage{n: v}, nil
	}
	return nil, plan.Syntaxf(t.pos, "unknown stage %s", quoteToken(t.text))
}

type condition struct {
	col token
	op  plan.Op
	lit literal
}

type literal struct {
	value any
	today bool
}

func (l literal) eval(env plan.Env) any {
	if l.today {
		return env.Today
	}
	return l.value
}

var comparisons = map[string]plan.Op{
	"=":  plan.OpEq,
	"!=": plan.OpNe,
	"<":  plan.OpLt,
	"<=": plan.OpLe,
	">":  plan.OpGt,
	">=": plan.OpGe,
}

func (p *parser) where() (stage, error) {
	st := &whereStage{}
	for {
		col, err := p.ident("column")
		if err != nil {
			return nil, err
		}
		c := condition{col: col}

		if p.keyword("is") {
			c.op = plan.OpIsNull
			if p.keyword("not") {
				c.op = plan.OpNotNull
			}
			if err := p.expectKeyword("null"); err != nil {
				return nil, err
			}
		} else {
			t := p.next()
			op, ok := comparisons[t.text]
			if t.kind != tokSymbol || !ok {
				return nil, plan.Syntaxf(t.pos, "expected a comparison, got %s", t.describe())
			}
			c.op = op
			if c.lit, err = p.literal(); err != nil {
				return nil, err
			}
		}
		st.conds = append(st.conds, c)
		if !p.keyword("and") {
			return st, nil
		}
	}
}

func (p *parser) literal() (literal, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return literal{value: t.text}, nil
	case tokNumber:
		if n, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			return literal{value: n}, nil
		}
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return literal{}, plan.Syntaxf(t.pos, "invalid number %s", quoteToken(t.text))
		}
		return literal{value: f}, nil
	case tokIdent:
		if strings.EqualFold(t.text, "today") {
			return literal{today: true}, nil
		}
	}
	return literal{}, plan.Syntaxf(t.pos, "expected a literal, got %s", t.describe())
}

func (p *parser) join() (stage, error) {
	table, err := p.ident("table name")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("on"); err != nil {
		return nil, err
	}
	left, err := p.ident("column")
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("="); err != nil {
		return nil, err
	}
	right, err := p.ident("column")
	if err != nil {
		return nil, err
	}
	return &joinStage{table: table, left: left, right: right}, nil
}

type aggSpec struct {
	fn   token
	col  *token
	name string
}

var aggregates = map[string]bool{
	"count": true, "distinct": true, "sum": true, "avg": true, "min": true, "max": true,
}

func (p *parser) group() (stage, error) {
	keys, err := p.columns()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("agg"); err != nil {
		return nil, err
	}
	st := &groupStage{keys: keys}
	for {
		fn, err := p.ident("aggregate")
		if err != nil {
			return nil, err
		}
		name := strings.ToLower(fn.text)
		if !aggregates[name] {
			return nil, plan.Syntaxf(fn.pos, "unknown aggregate %s", quoteToken(fn.text))
		}
		if err := p.expectSymbol("("); err != nil {
			return nil, err
		}
		spec := aggSpec{fn: fn, name: name}
		if t := p.peek(); t.kind == tokIdent {
			col := p.next()
			spec.col = &col
			spec.name = name + "_" + bareName(col.text)
		} else if name != "count" {
			return nil, plan.Syntaxf(t.pos, "%s needs a column", name)
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		if p.keyword("as") {
			alias, err := p.ident("name")
			if err != nil {
				return nil, err
			}
			spec.name = alias.text
		}
		st.aggs = append(st.aggs, spec)
		if !p.symbol(",") {
			return st, nil
		}
	}
}

type sortSpec struct {
	col  token
	desc bool
}

func (p *parser) sort() (stage, error) {
	st := &sortStage{}
	for {
		col, err := p.ident("column")
		if err != nil {
			return nil, err
		}
		spec := sortSpec{col: col}
		if p.keyword("desc") {
			spec.desc = true
		} else {
			p.keyword("asc")
		}
		st.keys = append(st.keys, spec)
		if !p.symbol(",") {
			return st, nil
		}
	}
}

type whereStage struct {
	conds []condition
}

func (s *whereStage) apply(f *frame, ctx *evalContext) (*frame, error) {
	type bound struct {
		idx int
		op  plan.Op
		arg any
	}
	bounds := make([]bound, len(s.conds))
	for i, c := range s.conds {
		idx, err := resolve(f, c.col)
		if err != nil {
			return nil, err
		}
		bounds[i] = bound{idx: idx, op: c.op, arg: c.lit.eval(ctx.env)}
	}
	return f.where(func(row []any) bool {
		for _, b := range bounds {
			if !match(row[b.idx], b.op, b.arg) {
				return false
			}
		}
		return true
	}), nil
}

type joinStage struct {
	table       token
	left, right token
}

func (s *joinStage) apply(f *frame, ctx *evalContext) (*frame, error) {
	name := strings.ToLower(s.table.text)
	for _, c := range f.cols {
		if strings.HasPrefix(c, name+".") {
			return nil, plan.Syntaxf(s.table.pos, "table %s is already joined", quoteToken(s.table.text))
		}
	}
	rf, err := tableFrame(ctx.snap, name)
	if err != nil {
		return nil, plan.Syntaxf(s.table.pos, "unknown table %s", quoteToken(s.table.text))
	}

	left, lerr := resolve(f, s.left)
	right, rerr := resolve(rf, s.right)
	if lerr != nil || rerr != nil {
		// allow the joined table's column on the left
		l2, err2 := resolve(f, s.right)
		r2, err3 := resolve(rf, s.left)
		if err2 != nil || err3 != nil {
			if lerr != nil {
				return nil, lerr
			}
			return nil, rerr
		}
		left, right = l2, r2
	}

	idx := joinIndex(rf, right)
	if f.joinSize(idx, left) > maxFrameRows {
		return nil, plan.Syntaxf(s.table.pos, "join produces more than %d rows", maxFrameRows)
	}
	return f.joinIndexed(rf, idx, left), nil
}

type groupStage struct {
	keys []token
	aggs []aggSpec
}

func (s *groupStage) apply(f *frame, _ *evalContext) (*frame, error) {
	keyIdx := make([]int, len(s.keys))
	cols := make([]string, 0, len(s.keys)+len(s.aggs))
	seen := make(map[string]bool)
	for i, k := range s.keys {
		idx, err := resolve(f, k)
		if err != nil {
			return nil, err
		}
		keyIdx[i] = idx
		cols = append(cols, f.cols[idx])
		seen[f.cols[idx]] = true
	}

	aggIdx := make([]int, len(s.aggs))
	for i, a := range s.aggs {
		aggIdx[i] = -1
		if a.col != nil {
			idx, err := resolve(f, *a.col)
			if err != nil {
				return nil, err
			}
			aggIdx[i] = idx
		}
		if seen[a.name] {
			return nil, plan.Syntaxf(a.fn.pos, "duplicate column %s", quoteToken(a.name))
		}
		seen[a.name] = true
		cols = append(cols, a.name)
	}

	var groups []*group
	byKey := make(map[string]*group)
	for _, row := range f.rows {
		keys := make([]any, len(keyIdx))
		for i, idx := range keyIdx {
			keys[i] = row[idx]
		}
		k := rowKey(keys)
		g, ok := byKey[k]
		if !ok {
			g = &group{keys: keys}
			byKey[k] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, row)
	}

	out := &frame{cols: cols}
	for _, g := range groups {
		row := append([]any(nil), g.keys...)
		for i, a := range s.aggs {
			v, err := a.compute(g.rows, aggIdx[i])
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		out.rows = append(out.rows, row)
	}
	return out, nil
}

func (a aggSpec) compute(rows [][]any, idx int) (any, error) {
	fn := strings.ToLower(a.fn.text)
	switch fn {
	case "count":
		if idx < 0 {
			return int64(len(rows)), nil
		}
		return int64(countNonNull(rows, idx)), nil
	case "distinct":
		set := make(map[string]bool)
		for _, row := range rows {
			if v := row[idx]; v != nil {
				set[valueKey(v)] = true
			}
		}
		return int64(len(set)), nil
	case "sum", "avg":
		integral := true
		for _, row := range rows {
			switch row[idx].(type) {
			case nil, int64:
			case float64:
				integral = false
			default:
				return nil, plan.Syntaxf(a.fn.pos, "%s needs a numeric column", fn)
			}
		}
		total := sum(rows, idx, integral)
		if fn == "sum" || total == nil {
			return total, nil
		}
		t, _ := toFloat(total)
		return t / float64(countNonNull(rows, idx)), nil
	case "min", "max":
		var best any
		for _, row := range rows {
			v := row[idx]
			if v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			c, ok := compareValues(v, best)
			if !ok {
				return nil, plan.Syntaxf(a.fn.pos, "cannot compare %T with %T", v, best)
			}
			if fn == "min" && c < 0 || fn == "max" && c > 0 {
				best = v
			}
		}
		return best, nil
	}
	return nil, fmt.Errorf("unsupported aggregate %s", a.fn.text)
}

type selectStage struct {
	cols []token
}

func (s *selectStage) apply(f *frame, _ *evalContext) (*frame, error) {
	idx := make([]int, len(s.cols))
	cols := make([]string, len(s.cols))
	seen := make(map[string]bool)
	for i, c := range s.cols {
		j, err := resolve(f, c)
		if err != nil {
			return nil, err
		}
		if seen[f.cols[j]] {
			return nil, plan.Syntaxf(c.pos, "column %s selected twice", quoteToken(c.text))
		}
		seen[f.cols[j]] = true
		idx[i], cols[i] = j, f.cols[j]
	}
	out := &frame{cols: cols, rows: make([][]any, 0, len(f.rows))}
	for _, row := range f.rows {
		projected := make([]any, len(idx))
		for i, j := range idx {
			projected[i] = row[j]
		}
		out.rows = append(out.rows, projected)
	}
	return out, nil
}

type sortStage struct {
	keys []sortSpec
}

func (s *sortStage) apply(f *frame, _ *evalContext) (*frame, error) {
	keys := make([]sortKey, len(s.keys))
	for i, k := range s.keys {
		idx, err := resolve(f, k.col)
		if err != nil {
			return nil, err
		}
		keys[i] = sortKey{idx: idx, desc: k.desc}
	}
	rows := append([][]any(nil), f.rows...)
	sortRows(rows, keys)
	return &frame{cols: f.cols, rows: rows}, nil
}

type limitStage struct {
	n int
}

func (s *limitStage) apply(f *frame, _ *evalContext) (*frame, error) {
	if len(f.rows) <= s.n {
		return f, nil
	}
	return &frame{cols: f.cols, rows: f.rows[:s.n]}, nil
}
