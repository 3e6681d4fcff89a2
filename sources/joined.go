package sources

import (
	"context"
	"sort"
	"strconv"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/executor/memexec"
	"github.com/dqguard/dqguard/internal/errs"
	"github.com/dqguard/dqguard/telemetry"
)

// JoinType selects how unmatched rows on either side of a join are
// handled, mirroring SQL's INNER/LEFT/RIGHT/FULL.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
	JoinFull
)

// JoinCondition is the equality predicate a join matches rows on:
// left.LeftColumn = right.RightColumn.
type JoinCondition struct {
	LeftColumn  string
	RightColumn string
	Type        JoinType
}

// JoinedSource registers two underlying sources under aliases, then
// combines their rows into one view table via an in-memory equality
// join. Columns from each side are published prefixed with their
// alias (alias.column) to avoid name collisions, the same role
// table-qualified column names play in a SQL join.
type JoinedSource struct {
	left, right           Source
	leftAlias, rightAlias string
	condition             JoinCondition
}

func (j *JoinedSource) Schema() ([]string, bool) {
	return nil, false
}

func (j *JoinedSource) Description() string {
	return "joined view: " + j.leftAlias + " " + joinTypeSQL(j.condition.Type) + " " + j.rightAlias +
		" on " + j.leftAlias + "." + j.condition.LeftColumn + " = " + j.rightAlias + "." + j.condition.RightColumn
}

func joinTypeSQL(t JoinType) string {
	switch t {
	case JoinLeft:
		return "LEFT JOIN"
	case JoinRight:
		return "RIGHT JOIN"
	case JoinFull:
		return "FULL JOIN"
	default:
		return "JOIN"
	}
}

func (j *JoinedSource) RegisterWithTelemetry(ctx context.Context, exec Registrar, name string, buf *telemetry.Buffer) error {
	if err := j.left.RegisterWithTelemetry(ctx, exec, j.leftAlias, buf); err != nil {
		return err
	}
	if err := j.right.RegisterWithTelemetry(ctx, exec, j.rightAlias, buf); err != nil {
		return err
	}

	leftRows, err := exec.FetchRows(ctx, j.leftAlias, nil, nil)
	if err != nil {
		return err
	}
	rightRows, err := exec.FetchRows(ctx, j.rightAlias, nil, nil)
	if err != nil {
		return err
	}

	combined := j.join(leftRows, rightRows)

	order, schema := columnsOf(combined)
	tbl := memexec.NewTable(name, schema, order)
	for _, row := range combined {
		tbl.AppendRow(row)
	}
	if err := exec.RegisterTable(name, tbl); err != nil {
		return err
	}
	reportRowsLoaded(buf, name, len(combined))
	return nil
}

func (j *JoinedSource) join(leftRows, rightRows []core.Row) []map[string]interface{} {
	rightByKey := map[string][]int{}
	for i, r := range rightRows {
		if k, ok := joinKeyOf(r[j.condition.RightColumn]); ok {
			rightByKey[k] = append(rightByKey[k], i)
		}
	}

	rightMatched := make([]bool, len(rightRows))
	var combined []map[string]interface{}

	for _, l := range leftRows {
		k, ok := joinKeyOf(l[j.condition.LeftColumn])
		var matches []int
		if ok {
			matches = rightByKey[k]
		}
		if len(matches) == 0 {
			if j.condition.Type == JoinInner || j.condition.Type == JoinRight {
				continue
			}
			combined = append(combined, j.mergeRow(l, nil))
			continue
		}
		for _, idx := range matches {
			rightMatched[idx] = true
			combined = append(combined, j.mergeRow(l, rightRows[idx]))
		}
	}

	if j.condition.Type == JoinRight || j.condition.Type == JoinFull {
		for i, r := range rightRows {
			if !rightMatched[i] {
				combined = append(combined, j.mergeRow(nil, r))
			}
		}
	}
	return combined
}

func (j *JoinedSource) mergeRow(l, r core.Row) map[string]interface{} {
	row := make(map[string]interface{}, len(l)+len(r))
	for k, v := range l {
		row[j.leftAlias+"."+k] = rawValue(v)
	}
	for k, v := range r {
		row[j.rightAlias+"."+k] = rawValue(v)
	}
	return row
}

// joinKeyOf renders a join column's value to a comparable string key;
// MetricValue itself isn't comparable (it embeds a map for KindMap),
// so equality is checked on this canonical rendering instead.
func joinKeyOf(v core.MetricValue) (string, bool) {
	if v.IsNone() {
		return "", false
	}
	if s, ok := v.AsString(); ok {
		return s, true
	}
	if f, ok := v.AsFloat64(); ok {
		return strconv.FormatFloat(f, 'g', -1, 64), true
	}
	if b, ok := v.AsBool(); ok {
		return strconv.FormatBool(b), true
	}
	return "", false
}

// rawValue renders a MetricValue as the string memexec.Table.AppendRow
// expects for the view's all-Utf8 columns (see columnsOf); NULL stays nil.
func rawValue(v core.MetricValue) interface{} {
	switch v.Kind() {
	case core.KindLong:
		f, _ := v.AsFloat64()
		return strconv.FormatInt(int64(f), 10)
	case core.KindDouble:
		f, _ := v.AsFloat64()
		return strconv.FormatFloat(f, 'g', -1, 64)
	case core.KindString:
		s, _ := v.AsString()
		return s
	case core.KindBoolean:
		b, _ := v.AsBool()
		return strconv.FormatBool(b)
	default:
		return nil
	}
}

// columnsOf infers a sorted column order and an all-Utf8 schema from
// the union of keys observed across rows; a joined view's shape
// depends on the two sources being joined, so it can't be known ahead
// of RegisterWithTelemetry.
func columnsOf(rows []map[string]interface{}) ([]string, map[string]core.ColumnKind) {
	seen := map[string]bool{}
	var order []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				order = append(order, k)
			}
		}
	}
	sort.Strings(order)
	schema := make(map[string]core.ColumnKind, len(order))
	for _, col := range order {
		schema[col] = core.ColumnUtf8
	}
	return order, schema
}

// JoinedSourceBuilder validates a JoinedSource's required fields
// before construction, mirroring core.ConstraintBuilder's pattern of
// accumulating the first error and surfacing it at Build.
type JoinedSourceBuilder struct {
	js  JoinedSource
	set struct{ left, right, on bool }
	err error
}

func NewJoinedSourceBuilder() *JoinedSourceBuilder {
	return &JoinedSourceBuilder{}
}

func (b *JoinedSourceBuilder) Left(src Source, alias string) *JoinedSourceBuilder {
	b.js.left = src
	b.js.leftAlias = alias
	b.set.left = true
	return b
}

func (b *JoinedSourceBuilder) Right(src Source, alias string) *JoinedSourceBuilder {
	b.js.right = src
	b.js.rightAlias = alias
	b.set.right = true
	return b
}

func (b *JoinedSourceBuilder) On(leftColumn, rightColumn string) *JoinedSourceBuilder {
	b.js.condition.LeftColumn = leftColumn
	b.js.condition.RightColumn = rightColumn
	b.set.on = true
	return b
}

func (b *JoinedSourceBuilder) JoinType(t JoinType) *JoinedSourceBuilder {
	b.js.condition.Type = t
	return b
}

func (b *JoinedSourceBuilder) Build() (*JoinedSource, error) {
	if b.err != nil {
		return nil, b.err
	}
	if !b.set.left || !b.set.right {
		return nil, errs.ErrConfiguration.New("joined source requires both a left and a right source")
	}
	if !b.set.on {
		return nil, errs.ErrConfiguration.New("joined source requires an On(...) join condition")
	}
	js := b.js
	return &js, nil
}

var _ Source = (*JoinedSource)(nil)
