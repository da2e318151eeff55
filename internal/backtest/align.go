// Package backtest implements the portfolio backtest engine: aligning price
// series on a common calendar, valuing a weighted basket, and deriving
// return and risk statistics against a benchmark.
package backtest

import (
	"fmt"
	"sort"
	"time"

	"basket/internal/domain"
)

// CalendarPolicy decides which trading dates survive alignment.
type CalendarPolicy string

const (
	// CalendarIntersection keeps only dates present in every series.
	CalendarIntersection CalendarPolicy = "intersection"
	// CalendarForwardFill keeps the union of dates and carries the last known
	// close forward. Rows before a series' first close are dropped.
	CalendarForwardFill CalendarPolicy = "forward_fill"
)

// ParseCalendarPolicy validates a policy name. Empty selects intersection.
func ParseCalendarPolicy(s string) (CalendarPolicy, error) {
	switch p := CalendarPolicy(s); p {
	case "":
		return CalendarIntersection, nil
	case CalendarIntersection, CalendarForwardFill:
		return p, nil
	}
	return "", fmt.Errorf("unknown calendar policy %q", s)
}

// Window bounds the dates considered by Align. A zero bound is open.
type Window struct {
	From time.Time
	To   time.Time
}

// Matrix is the aligned price table: one row per date, one column per
// portfolio symbol, plus the benchmark column. Every cell holds a price.
type Matrix struct {
	Dates           []time.Time
	Symbols         []domain.Symbol
	Prices          [][]float64 // Prices[row][col]
	BenchmarkSymbol domain.Symbol
	Benchmark       []float64
}

// Rows returns the number of aligned dates.
func (m *Matrix) Rows() int { return len(m.Dates) }

// Align places the portfolio series and the benchmark on one calendar.
// series must be in the same order as the portfolio weights.
func Align(series []domain.PriceSeries, benchmark domain.PriceSeries, w Window, policy CalendarPolicy) (*Matrix, error) {
	bench := benchmark.Between(w.From, w.To)
	if bench.Len() == 0 {
		return nil, &InsufficientDataError{Symbol: benchmark.Symbol.Code, Reason: "no prices in the requested period"}
	}
	benchDates := make(map[time.Time]struct{}, bench.Len())
	for _, p := range bench.Points {
		benchDates[p.Date] = struct{}{}
	}

	clipped := make([]domain.PriceSeries, len(series))
	for i, s := range series {
		c := s.Between(w.From, w.To)
		if c.Len() == 0 {
			return nil, &InsufficientDataError{Symbol: s.Symbol.Code, Reason: "no prices in the requested period"}
		}
		shared := 0
		for _, p := range c.Points {
			if _, ok := benchDates[p.Date]; ok {
				shared++
			}
		}
		if shared == 0 {
			return nil, &InsufficientDataError{
				Symbol: s.Symbol.Code,
				Reason: fmt.Sprintf("no trading days in common with benchmark %s", benchmark.Symbol.Code),
			}
		}
		clipped[i] = c
	}

	// Column len(series) is the benchmark.
	cols := append(clipped, bench)

	var m *Matrix
	switch policy {
	case CalendarForwardFill:
		m = alignForwardFill(cols)
	default:
		m = alignIntersection(cols)
	}

	if m.Rows() < 2 {
		return nil, &InsufficientDataError{Reason: fmt.Sprintf("only %d common trading day(s) in the requested period", m.Rows())}
	}
	for _, s := range series {
		m.Symbols = append(m.Symbols, s.Symbol)
	}
	m.BenchmarkSymbol = benchmark.Symbol
	return m, nil
}

func alignIntersection(cols []domain.PriceSeries) *Matrix {
	count := make(map[time.Time]int)
	for _, s := range cols {
		for _, p := range s.Points {
			count[p.Date]++
		}
	}
	var dates []time.Time
	for d, n := range count {
		if n == len(cols) {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	lookup := make([]map[time.Time]float64, len(cols))
	for j, s := range cols {
		lookup[j] = make(map[time.Time]float64, s.Len())
		for _, p := range s.Points {
			lookup[j][p.Date] = p.Close
		}
	}

	m := &Matrix{Dates: dates}
	last := len(cols) - 1
	for _, d := range dates {
		row := make([]float64, last)
		for j := 0; j < last; j++ {
			row[j] = lookup[j][d]
		}
		m.Prices = append(m.Prices, row)
		m.Benchmark = append(m.Benchmark, lookup[last][d])
	}
	return m
}

func alignForwardFill(cols []domain.PriceSeries) *Matrix {
	seen := make(map[time.Time]struct{})
	var dates []time.Time
	for _, s := range cols {
		for _, p := range s.Points {
			if _, ok := seen[p.Date]; !ok {
				seen[p.Date] = struct{}{}
				dates = append(dates, p.Date)
			}
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	// Per-column cursor into its points and the last close seen so far.
	cursor := make([]int, len(cols))
	lastClose := make([]float64, len(cols))
	have := make([]bool, len(cols))

	m := &Matrix{}
	last := len(cols) - 1
	for _, d := range dates {
		complete := true
		for j, s := range cols {
			for cursor[j] < s.Len() && !s.Points[cursor[j]].Date.After(d) {
				lastClose[j] = s.Points[cursor[j]].Close
				have[j] = true
				cursor[j]++
			}
			if !have[j] {
				complete = false
			}
		}
		if !complete {
			continue
		}
		row := make([]float64, last)
		copy(row, lastClose[:last])
		m.Dates = append(m.Dates, d)
		m.Prices = append(m.Prices, row)
		m.Benchmark = append(m.Benchmark, lastClose[last])
	}
	return m
}
