package report

import (
	"github.com/sfazliddinov385/walmart-stock-analysis/dataset"
	"github.com/sfazliddinov385/walmart-stock-analysis/load"
	"github.com/shopspring/decimal"
)

// previewRows is how many rows the fetch report shows from each end.
const previewRows = 5

// DefaultSplitThreshold flags a day whose close fell more than 40%.
const DefaultSplitThreshold = -0.40

// SplitCandidate is a day whose close dropped enough to suggest a split.
type SplitCandidate struct {
	Date string
	// Return is the day-over-day close change in percent.
	Return float64
}

// DetectSplits returns the days whose close-to-close return is below
// threshold (a fraction, e.g. -0.40). It is an approximation: a crash looks
// the same as a split, and adjusted series hide splits entirely.
func DetectSplits(records []dataset.PriceRecord, threshold float64) []SplitCandidate {
	var out []SplitCandidate
	one := decimal.NewFromInt(1)
	for i := 1; i < len(records); i++ {
		prev := records[i-1].Close
		if prev.IsZero() {
			continue
		}
		change := records[i].Close.Div(prev).Sub(one).InexactFloat64()
		if change < threshold {
			out = append(out, SplitCandidate{Date: records[i].Day(), Return: change * 100})
		}
	}
	return out
}

// FetchReport describes a freshly downloaded history.
type FetchReport struct {
	Ticker       string
	From         string
	To           string
	TradingDays  int64
	First        []dataset.PriceRecord
	Last         []dataset.PriceRecord
	StartClose   decimal.Decimal
	CurrentClose decimal.Decimal
	AllTimeHigh  decimal.Decimal
	AllTimeLow   decimal.Decimal
	TotalReturn  float64
	// DropPercent is the split threshold as a positive percentage.
	DropPercent float64
	Splits      []SplitCandidate
}

// NewFetchReport computes the report for records, which must be sorted by
// date.
func NewFetchReport(ticker string, records []dataset.PriceRecord, splitThreshold float64) *FetchReport {
	r := &FetchReport{
		Ticker:      ticker,
		TradingDays: int64(len(records)),
		DropPercent: -splitThreshold * 100,
	}
	if len(records) == 0 {
		return r
	}

	first, last := records[0], records[len(records)-1]
	r.From, r.To = first.Day(), last.Day()
	r.First = records[:min(previewRows, len(records))]
	r.Last = records[max(0, len(records)-previewRows):]
	r.StartClose, r.CurrentClose = first.Close, last.Close

	r.AllTimeHigh, r.AllTimeLow = first.High, first.Low
	for _, rec := range records[1:] {
		if rec.High.GreaterThan(r.AllTimeHigh) {
			r.AllTimeHigh = rec.High
		}
		if rec.Low.LessThan(r.AllTimeLow) {
			r.AllTimeLow = rec.Low
		}
	}

	r.TotalReturn = load.TotalReturn(first.Close, last.Close)
	r.Splits = DetectSplits(records, splitThreshold)
	return r
}

func (r *FetchReport) Markdown() (string, error) {
	return renderTemplate("fetch.md", r)
}
