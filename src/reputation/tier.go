package reputation

// Tier buckets a score into a display band.
func Tier(score uint16) string {
	switch {
	case score >= 850:
		return "Elite"
	case score >= 700:
		return "Trusted"
	case score >= 500:
		return "Established"
	case score >= 300:
		return "Novice"
	default:
		return "Unverified"
	}
}

// CollateralQuote is the collateral an agent must post for a task of a
// given payment amount. Base collateral is twice the payment; high
// reputation earns a discount.
type CollateralQuote struct {
	BaseCollateral  uint64  `json:"baseCollateral"`
	FinalCollateral uint64  `json:"finalCollateral"`
	DiscountPercent uint64  `json:"discountPercent"`
	Multiplier      float64 `json:"multiplier"`
}

// Collateral quotes the required collateral for amount at score.
func Collateral(amount uint64, score uint16) CollateralQuote {
	base := amount * 2

	multiplier := 1.0
	switch {
	case score >= 850:
		multiplier = 0.5
	case score >= 700:
		multiplier = 0.75
	}

	return CollateralQuote{
		BaseCollateral:  base,
		FinalCollateral: uint64(float64(base) * multiplier),
		DiscountPercent: uint64((1 - multiplier) * 100),
		Multiplier:      multiplier,
	}
}
