// Package scoring implements node_b's match-score functions. Every function
// here is pure: no I/O, no database, no provider calls.
package scoring

import "math"

const (
	eps                   = 1e-10
	recencyHalflifeDays   = 7.0
	recencyHardCutoffDays = 14.0
	polarityScale         = 10.0
)

// Recency scores how fresh a piece of activity is: exponential decay with
// a seven-day half-life, hard cutoff at fourteen days.
func Recency(ageDays float64) float64 {
	if ageDays > recencyHardCutoffDays {
		return 0.0
	}
	return math.Exp(-math.Log(2) * ageDays / recencyHalflifeDays)
}

// PolarityAlignment scores how well an influencer's polarity matches the
// campaign's desired polarity, both in [-10, 10]. The allies rule refuses
// any influencer with opposite-sign polarity when the campaign desires a
// positive alignment; otherwise alignment is (1 + desired*influencer/100)/2,
// clipped to [0, 1], so a neutral desired polarity scores 0.5 for anyone.
func PolarityAlignment(desired, influencer float64) float64 {
	if desired > 0 && influencer < 0 {
		return 0.0
	}
	raw := (1.0 + (desired*influencer)/(polarityScale*polarityScale)) / 2.0
	return clip01(raw)
}

// ProductOfExperts combines named factors via a weighted geometric mean
// (exp of the weighted mean of the log factors); factors with a
// non-positive weight are skipped. A
// single near-zero factor collapses the result toward zero: the gate must
// refuse a candidate that is stale, off-polarity, or dissimilar even if the
// other factors are strong.
func ProductOfExperts(factors, weights map[string]float64) float64 {
	if len(factors) == 0 || len(weights) == 0 {
		return 0.0
	}

	totalWeight := 0.0
	weightedLogSum := 0.0
	for name, w := range weights {
		if w <= 0 {
			continue
		}
		x, ok := factors[name]
		if !ok {
			x = 0.0
		}
		totalWeight += w
		weightedLogSum += w * math.Log(math.Max(eps, x))
	}
	if totalWeight <= 0 {
		return 0.0
	}
	return math.Exp(weightedLogSum / totalWeight)
}

// DefaultWeights is the equal-weighting used when a campaign doesn't
// override per-factor weights.
func DefaultWeights() map[string]float64 {
	return map[string]float64{"similarity": 1.0, "recency": 1.0, "polarity": 1.0}
}

// MMS is the fused match score: a product-of-experts over similarity,
// recency, and polarity alignment, clipped to [0, 1].
func MMS(similarity, recencyScore, polarityAlignment float64, weights map[string]float64) float64 {
	if weights == nil {
		weights = DefaultWeights()
	}
	factors := map[string]float64{
		"similarity": clip01(similarity),
		"recency":    clip01(recencyScore),
		"polarity":   clip01(polarityAlignment),
	}
	return clip01(ProductOfExperts(factors, weights))
}

func clip01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
