package util

import (
	"time"

	"basket/internal/domain"
)

// TradingCalendar provides weekday-level session awareness for a market.
// Exchange holidays are not modelled; the price provider's own calendar is
// authoritative for which days actually traded.
type TradingCalendar struct {
	market domain.Market
	loc    *time.Location
}

// NewTradingCalendar creates a TradingCalendar for the given market.
func NewTradingCalendar(market domain.Market) *TradingCalendar {
	return &TradingCalendar{
		market: market,
		loc:    marketLocation(market),
	}
}

func marketLocation(market domain.Market) *time.Location {
	name, offset := "America/New_York", -5*3600
	if market == domain.MarketJP {
		name, offset = "Asia/Tokyo", 9*3600
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone(name, offset)
}

// Location returns the exchange time zone.
func (tc *TradingCalendar) Location() *time.Location { return tc.loc }

// IsTradingDay reports whether the calendar date of t is a weekday.
func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// LastTradingDay returns the latest trading date on or before t's calendar
// date, normalized with domain.Day.
func (tc *TradingCalendar) LastTradingDay(t time.Time) time.Time {
	d := domain.Day(t)
	for !tc.IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// Today returns the current calendar date in the exchange time zone.
func (tc *TradingCalendar) Today(now time.Time) time.Time {
	return domain.Day(now.In(tc.loc))
}
