package domain

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseMarket(t *testing.T) {
	for in, want := range map[string]Market{"JP": MarketJP, "us": MarketUS, " Us ": MarketUS} {
		got, err := ParseMarket(in)
		if err != nil {
			t.Fatalf("ParseMarket(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseMarket(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseMarket("CN"); err == nil {
		t.Error("ParseMarket(CN) should fail")
	}
}

func TestSymbolIsIndex(t *testing.T) {
	if !(Symbol{Code: "^N225", Market: MarketJP}).IsIndex() {
		t.Error("^N225 should be an index")
	}
	if (Symbol{Code: "7203.T", Market: MarketJP}).IsIndex() {
		t.Error("7203.T should not be an index")
	}
}

func TestPriceSeriesValidate(t *testing.T) {
	s := PriceSeries{
		Symbol: Symbol{Code: "AAPL", Market: MarketUS},
		Points: []PricePoint{
			{Date: day(2024, 1, 2), Close: 185},
			{Date: day(2024, 1, 3), Close: 184},
		},
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate returned error for a valid series: %v", err)
	}

	dup := s
	dup.Points = append([]PricePoint{}, s.Points...)
	dup.Points[1].Date = dup.Points[0].Date
	if err := dup.Validate(); err == nil {
		t.Error("Validate should reject duplicate dates")
	}

	neg := s
	neg.Points = []PricePoint{{Date: day(2024, 1, 2), Close: -1}}
	if err := neg.Validate(); err == nil {
		t.Error("Validate should reject negative closes")
	}
}

func TestPriceSeriesBetween(t *testing.T) {
	s := PriceSeries{Points: []PricePoint{
		{Date: day(2024, 1, 1), Close: 1},
		{Date: day(2024, 1, 2), Close: 2},
		{Date: day(2024, 1, 3), Close: 3},
	}}
	got := s.Between(day(2024, 1, 2), day(2024, 1, 3))
	if got.Len() != 2 || got.Points[0].Close != 2 {
		t.Errorf("Between returned %+v", got.Points)
	}
	if all := s.Between(time.Time{}, time.Time{}); all.Len() != 3 {
		t.Errorf("Between with open bounds returned %d points, want 3", all.Len())
	}
}

func TestDay(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	got := Day(time.Date(2024, 3, 5, 0, 30, 0, 0, tokyo))
	if !got.Equal(day(2024, 3, 5)) {
		t.Errorf("Day = %v, want 2024-03-05 UTC", got)
	}
}

func TestPeriodRange(t *testing.T) {
	now := time.Date(2025, 6, 15, 13, 0, 0, 0, time.UTC)
	from, to := Period3Y.Range(now)
	if !to.Equal(day(2025, 6, 15)) {
		t.Errorf("to = %v", to)
	}
	if !from.Equal(day(2022, 6, 15)) {
		t.Errorf("from = %v", from)
	}
	if _, err := ParsePeriod("10y"); err == nil {
		t.Error("ParsePeriod(10y) should fail")
	}
	if Period5Y.Years() != 5 {
		t.Errorf("Period5Y.Years() = %d", Period5Y.Years())
	}
}
