package core

// bulk.go stages one change across many records. Every record goes through
// Update on its own, so an invalid result for one record leaves it untouched
// and does not stop the others.

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PriceMode selects how a bulk price change computes the new price.
type PriceMode string

const (
	PricePercent PriceMode = "percent" // price * (1 + amount/100)
	PriceAmount  PriceMode = "amount"  // price + amount
	PriceSet     PriceMode = "set"     // amount
)

// PriceTarget selects which price column a bulk price change touches.
type PriceTarget string

const (
	TargetRegular PriceTarget = "regular"
	TargetSale    PriceTarget = "sale"
	TargetBoth    PriceTarget = "both"
)

// PriceAdjustment is a bulk price change. A negative Amount lowers prices in
// percent and amount modes. Results are rounded to cents and never go below
// zero. Empty prices stay empty except in set mode.
type PriceAdjustment struct {
	Mode   PriceMode
	Amount decimal.Decimal
	Target PriceTarget
}

var hundred = decimal.NewFromInt(100)

// Validate reports what is wrong with the adjustment itself.
func (a PriceAdjustment) Validate() Violations {
	v := Violations{}
	switch a.Mode {
	case PricePercent:
		if a.Amount.LessThanOrEqual(hundred.Neg()) {
			v["amount"] = "must be above -100 percent"
		}
	case PriceAmount:
	case PriceSet:
		if a.Amount.IsNegative() {
			v["amount"] = "must not be negative"
		}
	default:
		v["mode"] = fmt.Sprintf("must be one of %s, %s, %s", PricePercent, PriceAmount, PriceSet)
	}
	switch a.Target {
	case TargetRegular, TargetSale, TargetBoth:
	default:
		v["target"] = fmt.Sprintf("must be one of %s, %s, %s", TargetRegular, TargetSale, TargetBoth)
	}
	return v
}

// Apply returns p after the adjustment.
func (a PriceAdjustment) Apply(p decimal.NullDecimal) decimal.NullDecimal {
	var d decimal.Decimal
	switch a.Mode {
	case PriceSet:
		d = a.Amount
	case PricePercent:
		if !p.Valid {
			return p
		}
		d = p.Decimal.Mul(hundred.Add(a.Amount)).Div(hundred)
	case PriceAmount:
		if !p.Valid {
			return p
		}
		d = p.Decimal.Add(a.Amount)
	default:
		return p
	}
	if d.IsNegative() {
		d = decimal.Zero
	}
	return decimal.NewNullDecimal(d.Round(2))
}

// Changes returns the price changes the adjustment makes to r.
func (a PriceAdjustment) Changes(r Record) Changes {
	var ch Changes
	if a.Target == TargetRegular || a.Target == TargetBoth {
		p := a.Apply(r.RegularPrice)
		ch.RegularPrice = &p
	}
	if a.Target == TargetSale || a.Target == TargetBoth {
		p := a.Apply(r.SalePrice)
		ch.SalePrice = &p
	}
	return ch
}

// BulkFailure is a record a bulk change could not be applied to.
type BulkFailure struct {
	Key string
	Err error
}

// BulkResult summarizes a bulk change.
type BulkResult struct {
	Matched   int           // records the change was tried on
	Changed   int           // records now staged with new content
	Unchanged int           // records the change left as they were
	Failed    []BulkFailure // records left untouched because of an error
}

// BulkSetStatus stages status on every record named in keys.
func (s *RecordStore) BulkSetStatus(keys []string, status Status) (BulkResult, error) {
	st := ParseStatus(string(status))
	if !st.IsKnown() {
		return BulkResult{}, &ValidationError{Violations: Violations{
			"status": "must be one of " + strings.Join(Columns[ColStatus].EnumValues, ", "),
		}}
	}
	return s.bulkUpdate(keys, func(Record) Changes {
		return Changes{Status: &st}
	})
}

// BulkAdjustPrices stages adj on every record that matches f.
func (s *RecordStore) BulkAdjustPrices(f Filter, adj PriceAdjustment) (BulkResult, error) {
	if v := adj.Validate(); len(v) > 0 {
		return BulkResult{}, &ValidationError{Violations: v}
	}
	if !s.loaded {
		return BulkResult{}, ErrNotLoaded
	}
	matched := FilterRecords(s.Records(), f)
	keys := make([]string, len(matched))
	for i, r := range matched {
		keys[i] = r.Key()
	}
	return s.bulkUpdate(keys, adj.Changes)
}

func (s *RecordStore) bulkUpdate(keys []string, change func(Record) Changes) (BulkResult, error) {
	if !s.loaded {
		return BulkResult{}, ErrNotLoaded
	}

	var res BulkResult
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		res.Matched++

		before, err := s.Get(key)
		if err != nil {
			res.Failed = append(res.Failed, BulkFailure{Key: key, Err: err})
			continue
		}
		after, err := s.Update(key, change(before))
		if err != nil {
			res.Failed = append(res.Failed, BulkFailure{Key: key, Err: err})
			continue
		}
		if after.sameContent(before) {
			res.Unchanged++
		} else {
			res.Changed++
		}
	}
	return res, nil
}
