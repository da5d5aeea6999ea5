package scoring

import (
	"math"

	"github.com/quoteajob/quoteajob/internal/apperr"
	"github.com/quoteajob/quoteajob/internal/models"
)

// BandPercent is the distance from the average, in percent, beyond which a quote stops
// being "about right". The comparison is strict: exactly BandPercent is still about right.
const BandPercent = 20.0

// Result is the outcome of a recompute pass over a job's quotes.
type Result struct {
	Average float64
	// Statuses holds the new status of every quote on the job, keyed by quote ID.
	Statuses map[string]models.QuoteStatus
}

// Changed returns the quotes whose stored status differs from the recomputed one.
func (r *Result) Changed(quotes []models.Quote) map[string]models.QuoteStatus {
	out := make(map[string]models.QuoteStatus)
	for _, q := range quotes {
		if s, ok := r.Statuses[q.ID]; ok && s != q.Status {
			out[q.ID] = s
		}
	}
	return out
}

// ValidateAmount rejects amounts that cannot be a price.
func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return apperr.InvalidInput("Amount must be a finite number")
	}
	if amount <= 0 {
		return apperr.InvalidInput("Amount must be greater than zero")
	}
	return nil
}

// RecomputeJob computes the job's new average once newQuote joins existing and classifies
// every quote, old and new, against it. The caller must already have ruled out a duplicate
// (job, pro) pair.
func RecomputeJob(job *models.Job, existing []models.Quote, newQuote models.Quote) (*Result, error) {
	if job == nil {
		return nil, apperr.NotFound("Job not found")
	}
	if err := ValidateAmount(newQuote.Amount); err != nil {
		return nil, err
	}
	all := make([]models.Quote, 0, len(existing)+1)
	all = append(all, existing...)
	all = append(all, newQuote)
	return Reclassify(all)
}

// Reclassify recomputes the average and every status over an existing set of quotes.
// Running it twice over the same set yields the same result.
func Reclassify(quotes []models.Quote) (*Result, error) {
	amounts := make([]float64, len(quotes))
	for i, q := range quotes {
		if q.Amount <= 0 || math.IsNaN(q.Amount) || math.IsInf(q.Amount, 0) {
			return nil, apperr.Invariant("quote %s has non-positive amount %v", q.ID, q.Amount)
		}
		amounts[i] = q.Amount
	}

	avg, err := Mean(amounts)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Average:  avg,
		Statuses: make(map[string]models.QuoteStatus, len(quotes)),
	}
	for _, q := range quotes {
		status, err := Classify(q.Amount, avg)
		if err != nil {
			return nil, err
		}
		res.Statuses[q.ID] = status
	}
	return res, nil
}

// Mean returns the arithmetic mean of amounts.
func Mean(amounts []float64) (float64, error) {
	if len(amounts) == 0 {
		return 0, apperr.Invariant("cannot average an empty quote set")
	}
	var sum float64
	for _, a := range amounts {
		sum += a
	}
	avg := sum / float64(len(amounts))
	if math.IsInf(sum, 0) {
		// The plain sum overflows for very large amounts; an incremental mean stays in range.
		avg = 0
		for i, a := range amounts {
			avg += (a - avg) / float64(i+1)
		}
	}
	if math.IsNaN(avg) || math.IsInf(avg, 0) {
		return 0, apperr.Invariant("average quote is not finite")
	}
	return avg, nil
}

// Classify places amount relative to average.
func Classify(amount, average float64) (models.QuoteStatus, error) {
	if average == 0 || math.IsNaN(average) || math.IsInf(average, 0) {
		return "", apperr.Invariant("cannot classify against average %v", average)
	}
	diff := math.Abs(amount - average)
	pct := diff * 100 / average
	if math.IsInf(pct, 0) {
		pct = diff / average * 100
	}
	switch {
	case amount < average && pct > BandPercent:
		return models.QuoteStatusLower, nil
	case amount > average && pct > BandPercent:
		return models.QuoteStatusHigher, nil
	}
	return models.QuoteStatusAboutRight, nil
}
