// Package describe computes dataframe-style info and describe summaries for prepared tables.
package describe

import (
	"math"
	"sort"
	"strconv"

	"github.com/giygas/opioid-maps/interfaces"
	"github.com/giygas/opioid-maps/logging"
	"github.com/giygas/opioid-maps/tableparser/entities"
	"github.com/montanaflynn/stats"
)

// Data types reported by Info
const (
	TypeInt    = "int64"
	TypeFloat  = "float64"
	TypeObject = "object"
)

// Summarize returns both the info listing and the numeric describe table of a frame
func Summarize(frame interfaces.Frame) entities.Summary {
	return entities.Summary{
		Rows:     frame.Len(),
		Columns:  Info(frame),
		Describe: Describe(frame),
	}
}

// Info lists every column with its non-null count and inferred type
func Info(frame interfaces.Frame) []entities.ColumnInfo {
	columns := frame.Columns()
	out := make([]entities.ColumnInfo, 0, len(columns))

	for _, name := range columns {
		values, present, err := frame.Values(name)
		if err != nil {
			logging.Warn("Column disappeared while summarizing", "column", name, "error", err)
			continue
		}

		nonNull := 0
		for _, ok := range present {
			if ok {
				nonNull++
			}
		}

		out = append(out, entities.ColumnInfo{
			Name:     name,
			NonNull:  nonNull,
			DataType: inferType(values, present),
		})
	}

	return out
}

// Describe returns count, mean, std, min, quartiles and max of every numeric column.
// Quartiles use the nearest-rank method.
func Describe(frame interfaces.Frame) []entities.NumericSummary {
	var out []entities.NumericSummary

	for _, name := range frame.Columns() {
		values, present, err := frame.Values(name)
		if err != nil {
			continue
		}
		if inferType(values, present) == TypeObject {
			continue
		}

		data := numericValues(values, present)
		if len(data) == 0 {
			continue
		}

		summary, err := summarizeColumn(name, data)
		if err != nil {
			logging.Warn("Failed to describe column", "column", name, "error", err)
			continue
		}
		out = append(out, summary)
	}

	return out
}

func summarizeColumn(name string, data stats.Float64Data) (entities.NumericSummary, error) {
	s := entities.NumericSummary{Column: name, Count: len(data)}

	var err error
	if s.Mean, err = stats.Mean(data); err != nil {
		return s, err
	}
	if s.Min, err = stats.Min(data); err != nil {
		return s, err
	}
	if s.Max, err = stats.Max(data); err != nil {
		return s, err
	}
	if s.Median, err = stats.Median(data); err != nil {
		return s, err
	}

	sorted := make(stats.Float64Data, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	s.Q25 = quantile(sorted, 0.25)
	s.Q75 = quantile(sorted, 0.75)

	if len(data) > 1 {
		std, err := stats.StandardDeviationSample(data)
		if err != nil {
			return s, err
		}
		if !math.IsNaN(std) {
			s.Std = &std
		}
	}

	return s, nil
}

// quantile interpolates linearly between the closest ranks of sorted data, at rank p*(n-1)
func quantile(sorted stats.Float64Data, p float64) float64 {
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	return sorted[lo] + (rank-float64(lo))*(sorted[hi]-sorted[lo])
}

// inferType reports int64 when every present value is an integer, float64 when every
// present value is a number, and object otherwise. An all-missing column is float64.
func inferType(values []string, present []bool) string {
	kind := TypeInt
	for i, v := range values {
		if !present[i] {
			// a missing value turns an integer column into floats, as in pandas
			if kind == TypeInt {
				kind = TypeFloat
			}
			continue
		}
		if _, err := strconv.ParseInt(v, 10, 64); err == nil {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			kind = TypeFloat
			continue
		}
		return TypeObject
	}
	return kind
}

func numericValues(values []string, present []bool) stats.Float64Data {
	data := make(stats.Float64Data, 0, len(values))
	for i, v := range values {
		if !present[i] {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) {
			continue
		}
		data = append(data, f)
	}
	return data
}
