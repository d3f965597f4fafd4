package credit

// Recommendations returns lending advice for a scored account.
func Recommendations(score float64, riskFactors []string, balance float64) []string {
	var recs []string

	switch {
	case score >= 80:
		recs = append(recs,
			"Excellent credit profile - eligible for premium lending rates",
			"Consider increasing lending limits",
		)
	case score >= 60:
		recs = append(recs,
			"Good credit profile - standard lending rates apply",
			"Consider building more transaction history",
		)
	default:
		recs = append(recs,
			"Improve credit profile before applying for larger loans",
			"Start with smaller loan amounts to build reputation",
		)
	}

	if balance < 100 {
		recs = append(recs, "Increase account balance to improve creditworthiness")
	}
	if len(riskFactors) > 3 {
		recs = append(recs, "Address multiple risk factors before applying for loans")
	}

	return append(recs,
		"Maintain consistent transaction patterns",
		"Build relationships with other network participants",
	)
}
