package report

import (
	"github.com/sfazliddinov385/walmart-stock-analysis/load"
)

// StoreReport is the verification read back from the destination table.
type StoreReport struct {
	Table string
	load.Summary
}

func NewStoreReport(table string, sum load.Summary) *StoreReport {
	return &StoreReport{Table: table, Summary: sum}
}

func (r *StoreReport) Markdown() (string, error) {
	return renderTemplate("store.md", r)
}

// LoadReport is the outcome of an upload.
type LoadReport struct {
	Table       string
	Total       int64
	Success     int64
	Errors      int64
	Batches     int64
	Declined    bool
	FirstErrors []string
}

func NewLoadReport(table string, res load.Result) *LoadReport {
	r := &LoadReport{
		Table:    table,
		Total:    int64(res.Total),
		Success:  int64(res.Success),
		Errors:   int64(res.Errors),
		Batches:  int64(res.Batches),
		Declined: res.Declined,
	}
	for _, e := range res.FirstErrors {
		r.FirstErrors = append(r.FirstErrors, e.Error())
	}
	return r
}

func (r *LoadReport) Markdown() (string, error) {
	return renderTemplate("load.md", r)
}

// QueryReport renders an ad-hoc query result as a table.
type QueryReport struct {
	Columns []string
	Rows    [][]string
	Count   int64
}

func NewQueryReport(results *load.QueryResults) *QueryReport {
	r := &QueryReport{Columns: results.Columns, Count: int64(results.Len())}
	for i := 0; i < results.Len(); i++ {
		row := make([]string, len(results.Columns))
		for j, col := range results.Columns {
			row[j] = results.Values[col][i]
		}
		r.Rows = append(r.Rows, row)
	}
	return r
}

func (r *QueryReport) Markdown() (string, error) {
	return renderTemplate("query.md", r)
}
