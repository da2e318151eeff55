package backtest

import (
	"errors"
	"testing"
	"time"

	"basket/internal/domain"
)

func TestAlignIntersection(t *testing.T) {
	dates := []time.Time{d(2024, 1, 2), d(2024, 1, 3), d(2024, 1, 4), d(2024, 1, 5)}
	aapl := series(usSym("AAPL"), dates, func(i int) float64 { return 100 + float64(i) })
	// MSFT is missing 2024-01-03.
	msft := series(usSym("MSFT"), []time.Time{dates[0], dates[2], dates[3]}, func(i int) float64 { return 200 + float64(i) })
	bench := series(usSym("^GSPC"), dates, func(i int) float64 { return 4000 })

	m, err := Align([]domain.PriceSeries{aapl, msft}, bench, Window{}, CalendarIntersection)
	if err != nil {
		t.Fatalf("Align returned error: %v", err)
	}
	if m.Rows() != 3 {
		t.Fatalf("Rows() = %d, want 3", m.Rows())
	}
	for _, dt := range m.Dates {
		if dt.Equal(dates[1]) {
			t.Errorf("intersection kept %s, which MSFT lacks", dt.Format(domain.DateFormat))
		}
	}
	if m.Prices[1][0] != 102 || m.Prices[1][1] != 201 {
		t.Errorf("row 1 = %v, want [102 201]", m.Prices[1])
	}
	if len(m.Benchmark) != 3 || m.BenchmarkSymbol.Code != "^GSPC" {
		t.Errorf("benchmark column = %v (%s)", m.Benchmark, m.BenchmarkSymbol.Code)
	}
	if m.Prices[2][0] != 103 {
		t.Errorf("row 2 = %v, want AAPL at 103", m.Prices[2])
	}
}

func TestAlignForwardFill(t *testing.T) {
	dates := []time.Time{d(2024, 1, 2), d(2024, 1, 3), d(2024, 1, 4), d(2024, 1, 5)}
	aapl := series(usSym("AAPL"), dates, func(i int) float64 { return 100 + float64(i) })
	msft := series(usSym("MSFT"), []time.Time{dates[0], dates[2], dates[3]}, func(i int) float64 { return 200 + float64(i) })
	bench := series(usSym("^GSPC"), dates, func(i int) float64 { return 4000 })

	m, err := Align([]domain.PriceSeries{aapl, msft}, bench, Window{}, CalendarForwardFill)
	if err != nil {
		t.Fatalf("Align returned error: %v", err)
	}
	if m.Rows() != 4 {
		t.Fatalf("Rows() = %d, want 4", m.Rows())
	}
	if m.Prices[1][1] != 200 {
		t.Errorf("MSFT on the gap day = %v, want carried-forward 200", m.Prices[1][1])
	}
}

func TestAlignForwardFillNeverBackfills(t *testing.T) {
	dates := []time.Time{d(2024, 1, 2), d(2024, 1, 3), d(2024, 1, 4)}
	aapl := series(usSym("AAPL"), dates, func(i int) float64 { return 100 })
	late := series(usSym("NEWCO"), dates[1:], func(i int) float64 { return 50 })
	bench := series(usSym("^GSPC"), dates, func(i int) float64 { return 4000 })

	m, err := Align([]domain.PriceSeries{aapl, late}, bench, Window{}, CalendarForwardFill)
	if err != nil {
		t.Fatalf("Align returned error: %v", err)
	}
	if m.Rows() != 2 || !m.Dates[0].Equal(dates[1]) {
		t.Errorf("dates = %v, want to start at NEWCO's first close", m.Dates)
	}
}

func TestAlignNoOverlapWithBenchmark(t *testing.T) {
	benchDates := weekdaysEndingAt(d(2024, 6, 28), 20)
	otherDates := weekdaysEndingAt(d(2024, 1, 31), 20)

	aapl := series(usSym("AAPL"), benchDates, func(i int) float64 { return 100 })
	msft := series(usSym("MSFT"), otherDates, func(i int) float64 { return 200 })
	bench := series(usSym("^GSPC"), benchDates, func(i int) float64 { return 4000 })

	for _, policy := range []CalendarPolicy{CalendarIntersection, CalendarForwardFill} {
		_, err := Align([]domain.PriceSeries{aapl, msft}, bench, Window{}, policy)
		var ide *InsufficientDataError
		if !errors.As(err, &ide) {
			t.Fatalf("%s: error = %v, want InsufficientDataError", policy, err)
		}
		if ide.Symbol != "MSFT" {
			t.Errorf("%s: error names %q, want MSFT", policy, ide.Symbol)
		}
	}
}

func TestAlignTooFewRows(t *testing.T) {
	dates := []time.Time{d(2024, 1, 2), d(2024, 1, 3)}
	aapl := series(usSym("AAPL"), dates[:1], func(i int) float64 { return 100 })
	bench := series(usSym("^GSPC"), dates, func(i int) float64 { return 4000 })

	_, err := Align([]domain.PriceSeries{aapl}, bench, Window{}, CalendarIntersection)
	var ide *InsufficientDataError
	if !errors.As(err, &ide) {
		t.Fatalf("error = %v, want InsufficientDataError", err)
	}
}

func TestAlignWindow(t *testing.T) {
	dates := weekdaysEndingAt(d(2024, 3, 29), 30)
	aapl := series(usSym("AAPL"), dates, func(i int) float64 { return 100 + float64(i) })
	bench := series(usSym("^GSPC"), dates, func(i int) float64 { return 4000 })

	m, err := Align([]domain.PriceSeries{aapl}, bench, Window{From: d(2024, 3, 1), To: d(2024, 3, 15)}, CalendarIntersection)
	if err != nil {
		t.Fatalf("Align returned error: %v", err)
	}
	if m.Dates[0].Before(d(2024, 3, 1)) || m.Dates[m.Rows()-1].After(d(2024, 3, 15)) {
		t.Errorf("dates %v..%v escape the window", m.Dates[0], m.Dates[m.Rows()-1])
	}
	if m.Rows() != 11 {
		t.Errorf("Rows() = %d, want 11 weekdays in 2024-03-01..15", m.Rows())
	}
}

func TestParseCalendarPolicy(t *testing.T) {
	if p, err := ParseCalendarPolicy(""); err != nil || p != CalendarIntersection {
		t.Errorf("ParseCalendarPolicy(\"\") = %q, %v", p, err)
	}
	if _, err := ParseCalendarPolicy("union"); err == nil {
		t.Error("ParseCalendarPolicy(union) should fail")
	}
}
