package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultPriceBins is the histogram resolution used when none is given.
const DefaultPriceBins = 20

// PriceBin counts regular prices in [Lower, Upper). The last bin is closed.
type PriceBin struct {
	Lower decimal.Decimal `json:"lower"`
	Upper decimal.Decimal `json:"upper"`
	Count int             `json:"count"`
}

// CategoryCount is how many records carry a category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// StatusCount is how many records have a status.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int    `json:"count"`
}

// Summary aggregates a record list for the dashboard.
type Summary struct {
	Total        int                 `json:"total"`
	Priced       int                 `json:"priced"`
	OnSale       int                 `json:"onSale"`
	MinPrice     decimal.NullDecimal `json:"minPrice"`
	MaxPrice     decimal.NullDecimal `json:"maxPrice"`
	AveragePrice decimal.NullDecimal `json:"averagePrice"`
	PriceBins    []PriceBin          `json:"priceBins"`
	Categories   []CategoryCount     `json:"categories"`
	Statuses     []StatusCount       `json:"statuses"`
}

// Summarize computes price, category and status statistics. bins <= 0 uses
// DefaultPriceBins.
func Summarize(records []Record, bins int) Summary {
	if bins <= 0 {
		bins = DefaultPriceBins
	}
	s := Summary{Total: len(records)}

	var prices []decimal.Decimal
	categories := map[string]int{}
	statuses := map[Status]int{}

	for _, r := range records {
		if r.RegularPrice.Valid {
			prices = append(prices, r.RegularPrice.Decimal)
		}
		if r.SalePrice.Valid {
			s.OnSale++
		}
		for _, c := range r.Categories {
			categories[c]++
		}
		statuses[r.Status]++
	}

	s.Priced = len(prices)
	if len(prices) > 0 {
		lo, hi := decimal.Min(prices[0], prices[1:]...), decimal.Max(prices[0], prices[1:]...)
		s.MinPrice = decimal.NewNullDecimal(lo)
		s.MaxPrice = decimal.NewNullDecimal(hi)
		s.AveragePrice = decimal.NewNullDecimal(decimal.Avg(prices[0], prices[1:]...).Round(2))
		s.PriceBins = histogram(prices, lo, hi, bins)
	}

	for c, n := range categories {
		s.Categories = append(s.Categories, CategoryCount{Category: c, Count: n})
	}
	sort.Slice(s.Categories, func(i, j int) bool {
		if s.Categories[i].Count != s.Categories[j].Count {
			return s.Categories[i].Count > s.Categories[j].Count
		}
		return s.Categories[i].Category < s.Categories[j].Category
	})

	for _, st := range Statuses {
		if n := statuses[st]; n > 0 {
			s.Statuses = append(s.Statuses, StatusCount{Status: st, Count: n})
		}
		delete(statuses, st)
	}
	var unknown []StatusCount
	for st, n := range statuses {
		unknown = append(unknown, StatusCount{Status: st, Count: n})
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i].Status < unknown[j].Status })
	s.Statuses = append(s.Statuses, unknown...)

	return s
}

func histogram(prices []decimal.Decimal, lo, hi decimal.Decimal, bins int) []PriceBin {
	if lo.Equal(hi) {
		return []PriceBin{{Lower: lo, Upper: hi, Count: len(prices)}}
	}

	width := hi.Sub(lo).Div(decimal.NewFromInt(int64(bins)))
	out := make([]PriceBin, bins)
	for i := range out {
		out[i].Lower = lo.Add(width.Mul(decimal.NewFromInt(int64(i))))
		out[i].Upper = lo.Add(width.Mul(decimal.NewFromInt(int64(i + 1))))
	}
	out[bins-1].Upper = hi

	for _, p := range prices {
		i := int(p.Sub(lo).Div(width).IntPart())
		if i >= bins {
			i = bins - 1
		}
		out[i].Count++
	}
	return out
}
