package scoring

import (
	"errors"
	"math"

	"github.com/quoteajob/quoteajob/internal/models"
)

// ErrNilProfile is returned when scoring is asked to score nothing. It signals a bug in the
// caller, not a user error.
var ErrNilProfile = errors.New("scoring: nil profile")

// Tier is the display severity of a trust score.
type Tier string

const (
	TierGreen  Tier = "green"
	TierYellow Tier = "yellow"
	TierRed    Tier = "red"
)

// TrustResult holds the derived profile scores.
type TrustResult struct {
	TrustScore        int    `json:"trust_score"`
	ProfileCompletion int    `json:"profile_completion"`
	Label             string `json:"label"`
	Tier              Tier   `json:"tier"`
}

// Score derives the trust score and profile completion of u.
//
// The trust score counts seven fields including the insurance document; profile completion
// counts six and leaves the insurance document out. The two checklists disagree on purpose
// until product decides which one is right.
func Score(u *models.User) (*TrustResult, error) {
	if u == nil {
		return nil, ErrNilProfile
	}
	trust := TrustScore(u)
	return &TrustResult{
		TrustScore:        trust,
		ProfileCompletion: ProfileCompletion(u),
		Label:             Label(trust),
		Tier:              TierFor(trust),
	}, nil
}

// TrustScore is round(present/7 × 100).
func TrustScore(u *models.User) int {
	return percent([]bool{
		u.Name != "",
		u.CompanyName != "",
		u.TradeCategory != "",
		u.Description != "",
		u.InsuranceDoc != "",
		u.Qualifications != "",
		u.EmailVerifiedAt != nil,
	})
}

// ProfileCompletion is round(present/6 × 100).
func ProfileCompletion(u *models.User) int {
	return percent([]bool{
		u.Name != "",
		u.CompanyName != "",
		u.TradeCategory != "",
		u.Description != "",
		u.Qualifications != "",
		u.EmailVerifiedAt != nil,
	})
}

func percent(fields []bool) int {
	n := 0
	for _, ok := range fields {
		if ok {
			n++
		}
	}
	return int(math.Round(float64(n) / float64(len(fields)) * 100))
}

// Label names a trust score.
func Label(score int) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 60:
		return "Good"
	case score >= 40:
		return "Fair"
	}
	return "Poor"
}

// TierFor returns the display tier of a trust score.
func TierFor(score int) Tier {
	switch {
	case score >= 80:
		return TierGreen
	case score >= 60:
		return TierYellow
	}
	return TierRed
}
