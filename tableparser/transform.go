package tableparser

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// tierConfig holds the options of BinarizeTier
type tierConfig struct {
	width int
}

// TierOption configures BinarizeTier
type TierOption func(*tierConfig)

// WithTierCount zero-pads integral tier labels to the digit width of n,
// so "2" becomes "02" when n is 10 and labels sort lexicographically in tier order.
func WithTierCount(n int) TierOption {
	return func(c *tierConfig) {
		if n > 0 {
			c.width = len(strconv.Itoa(n))
		}
	}
}

// BinarizeTier converts a tier column to discrete string labels.
// Integral numbers become integer text ("3.0" -> "3"), other numbers use their
// shortest form, non-numeric values are kept and missing cells stay missing.
// Applying it to its own output changes nothing.
func BinarizeTier(t *Table, column string, opts ...TierOption) (*Table, error) {
	col, err := t.ColumnIndex(column)
	if err != nil {
		return nil, err
	}

	cfg := &tierConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	rows := make([][]Cell, len(t.rows))
	for i, row := range t.rows {
		next := make([]Cell, len(row))
		copy(next, row)
		if !next[col].Missing {
			next[col].Value = TierLabel(next[col].Value, cfg.width)
		}
		rows[i] = next
	}

	lines := make([]int, len(t.lines))
	copy(lines, t.lines)

	return t.derive(rows, lines), nil
}

// TierLabel formats a raw tier value as a label. Width > 0 zero-pads integral tiers.
func TierLabel(raw string, width int) string {
	v := strings.TrimSpace(raw)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return v
	}

	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		n := int64(f)
		if width > 0 && n >= 0 {
			s := strconv.FormatInt(n, 10)
			if len(s) < width {
				s = strings.Repeat("0", width-len(s)) + s
			}
			return s
		}
		return strconv.FormatInt(n, 10)
	}

	return strconv.FormatFloat(f, 'g', -1, 64)
}

// SplitIncomplete separates rows that have a value in every column from rows that do not
func SplitIncomplete(t *Table) (complete *Table, incomplete *Table) {
	var keepRows, dropRows [][]Cell
	var keepLines, dropLines []int

	for i, row := range t.rows {
		if rowComplete(row) {
			keepRows = append(keepRows, row)
			keepLines = append(keepLines, t.lines[i])
		} else {
			dropRows = append(dropRows, row)
			dropLines = append(dropLines, t.lines[i])
		}
	}

	return t.derive(keepRows, keepLines), t.derive(dropRows, dropLines)
}

// DropIncomplete removes every row that has a missing value in any column
func DropIncomplete(t *Table) *Table {
	complete, _ := SplitIncomplete(t)
	return complete
}

// MissingColumns lists the columns of row i that hold a missing value
func (t *Table) MissingColumns(i int) []string {
	var cols []string
	for j, c := range t.rows[i] {
		if c.Missing {
			cols = append(cols, t.columns[j])
		}
	}
	return cols
}

func rowComplete(row []Cell) bool {
	for _, c := range row {
		if c.Missing {
			return false
		}
	}
	return true
}

// OrderByTier sorts rows by the numeric value of the tier column, ascending and stable.
// Labels that are not numbers sort after all numeric ones, lexicographically.
func OrderByTier(t *Table, column string) (*Table, error) {
	col, err := t.ColumnIndex(column)
	if err != nil {
		return nil, err
	}

	type key struct {
		numeric bool
		value   float64
		label   string
	}
	keys := make([]key, len(t.rows))
	for i, row := range t.rows {
		c := row[col]
		k := key{label: c.Value}
		if !c.Missing {
			if f, err := strconv.ParseFloat(c.Value, 64); err == nil && !math.IsNaN(f) {
				k.numeric = true
				k.value = f
			}
		}
		keys[i] = k
	}

	return t.sortedBy(func(a, b int) bool {
		ka, kb := keys[a], keys[b]
		if ka.numeric != kb.numeric {
			return ka.numeric
		}
		if ka.numeric {
			return ka.value < kb.value
		}
		return ka.label < kb.label
	}), nil
}

// OrderByLabel sorts rows by the string form of a column, ascending and stable.
// For tiers of ten or more this puts "10" between "1" and "2".
func OrderByLabel(t *Table, column string) (*Table, error) {
	col, err := t.ColumnIndex(column)
	if err != nil {
		return nil, err
	}

	return t.sortedBy(func(a, b int) bool {
		return t.rows[a][col].Value < t.rows[b][col].Value
	}), nil
}

// sortedBy returns a new table with rows ordered by less, which compares source row positions
func (t *Table) sortedBy(less func(a, b int) bool) *Table {
	order := make([]int, len(t.rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return less(order[i], order[j])
	})

	rows := make([][]Cell, len(order))
	lines := make([]int, len(order))
	for i, src := range order {
		rows[i] = t.rows[src]
		lines[i] = t.lines[src]
	}
	return t.derive(rows, lines)
}
