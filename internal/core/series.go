package core

import "sort"

// Dataset is one account's chart series, aligned positionally with a
// shared label axis.
type Dataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// BuildAccountSeries projects a single account's points, already ordered
// by date ascending, into chart labels and values. One entry per stored
// observation, no gaps filled.
func BuildAccountSeries(points []BalancePoint) (labels []string, values []float64) {
	labels = make([]string, 0, len(points))
	values = make([]float64, 0, len(points))
	for _, p := range points {
		labels = append(labels, p.Date.ISO())
		values = append(values, p.Balance.Float64())
	}
	return labels, values
}

// BuildStackedSeries aligns every account to one shared date axis: the
// sorted union of all observation dates across all accounts. Each account
// walks the full axis carrying its last known balance forward into dates
// where it has no observation of its own.
//
// The running value starts at 0, so an account whose first observation is
// later than the earliest axis date shows 0 for all earlier dates; values
// are never backfilled. An account with no observations at all yields an
// all-zero series of axis length. Every dataset has len(Data) == len(labels).
func BuildStackedSeries(accounts []Account, points []BalancePoint) (labels []string, datasets []Dataset) {
	seen := make(map[string]struct{}, len(points))
	for _, p := range points {
		day := p.Date.ISO()
		if _, ok := seen[day]; !ok {
			seen[day] = struct{}{}
			labels = append(labels, day)
		}
	}
	sort.Strings(labels)

	perAccount := make(map[int64]map[string]float64, len(accounts))
	for _, p := range points {
		byDate := perAccount[p.AccountID]
		if byDate == nil {
			byDate = make(map[string]float64)
			perAccount[p.AccountID] = byDate
		}
		byDate[p.Date.ISO()] = p.Balance.Float64()
	}

	datasets = make([]Dataset, 0, len(accounts))
	for _, acc := range accounts {
		byDate := perAccount[acc.ID]
		data := make([]float64, 0, len(labels))
		last := 0.0
		for _, day := range labels {
			if v, ok := byDate[day]; ok {
				last = v
			}
			data = append(data, last)
		}
		datasets = append(datasets, Dataset{Label: acc.Name, Data: data})
	}
	return labels, datasets
}

// CurrentBalance returns the most recent observation's amount, or zero
// when none exist. points must be ordered by date ascending with write
// order as the tie-break, the order the storage layer lists them in.
func CurrentBalance(points []BalancePoint) Money {
	if len(points) == 0 {
		return Money{}
	}
	return points[len(points)-1].Balance
}
