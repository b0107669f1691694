package formulas

// CalculateMaxDrawdown calculates the maximum drawdown from an equity or price series
//
// Drawdown Formula:
//
//	Drawdown = (Peak Value - Current Value) / Peak Value
//	Max Drawdown = Maximum of all drawdowns
//
// Args:
//
//	prices: Array of prices or equity values
//
// Returns:
//
//	Maximum drawdown as positive fraction (0.25 = 25% loss from peak) or nil
func CalculateMaxDrawdown(prices []float64) *float64 {
	if len(prices) < 2 {
		return nil
	}

	maxDrawdown := 0.0
	peak := prices[0]

	for _, price := range prices {
		// Update peak
		if price > peak {
			peak = price
		}

		// Calculate drawdown from peak
		if peak > 0 {
			drawdown := (peak - price) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return &maxDrawdown
}

// CalculateLongestDrawdownBars returns the length, in bars, of the longest
// stretch spent below a prior equity peak. A new peak resets the count.
func CalculateLongestDrawdownBars(equity []float64) *int {
	if len(equity) < 2 {
		return nil
	}

	longest := 0
	current := 0
	peak := equity[0]

	for _, v := range equity[1:] {
		if v >= peak {
			peak = v
			current = 0
			continue
		}
		current++
		if current > longest {
			longest = current
		}
	}

	return &longest
}

// CalculateMomentum calculates price momentum over a period
// Returns percentage change over the period
func CalculateMomentum(prices []float64, bars int) *float64 {
	if len(prices) < bars+1 {
		return nil
	}

	startPrice := prices[len(prices)-bars-1]
	endPrice := prices[len(prices)-1]

	if startPrice == 0 {
		return nil
	}

	momentum := (endPrice - startPrice) / startPrice
	return &momentum
}

// CalculateVolatilityWindow calculates annualized volatility over the last
// window of bars, or nil when the series is shorter than the window.
func CalculateVolatilityWindow(prices []float64, bars int, periodsPerYear int) *float64 {
	if len(prices) < bars+1 {
		return nil
	}

	window := prices[len(prices)-bars-1:]
	returns := CalculateReturns(window)
	if len(returns) == 0 {
		return nil
	}

	vol := AnnualizedVolatility(returns, periodsPerYear)
	return &vol
}
