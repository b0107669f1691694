package formulas

// CalculateWinRate calculates the fraction of closed trades with positive net
// profit. Breakeven trades count as losses.
//
// Returns:
//
//	Win rate in [0,1] or nil when there are no closed trades
func CalculateWinRate(tradePnLs []float64) *float64 {
	if len(tradePnLs) == 0 {
		return nil
	}

	wins := 0
	for _, pnl := range tradePnLs {
		if pnl > 0 {
			wins++
		}
	}

	winRate := float64(wins) / float64(len(tradePnLs))
	return &winRate
}

// CalculateProfitFactor calculates gross profit divided by gross loss.
//
// Formula:
//
//	Profit Factor = Sum of Winning Trade PnL / |Sum of Losing Trade PnL|
//
// Returns:
//
//	Profit factor or nil when there are no losing trades (undefined ratio)
//	or no trades at all
func CalculateProfitFactor(tradePnLs []float64) *float64 {
	if len(tradePnLs) == 0 {
		return nil
	}

	grossProfit := 0.0
	grossLoss := 0.0
	for _, pnl := range tradePnLs {
		if pnl > 0 {
			grossProfit += pnl
		} else {
			grossLoss += -pnl
		}
	}

	if grossLoss == 0 {
		return nil
	}

	pf := grossProfit / grossLoss
	return &pf
}

// CalculateAvgRewardRisk calculates the ratio of the average winning trade to
// the average losing trade (both as absolute values).
//
// Returns:
//
//	Reward/risk ratio or nil when either side has no trades
func CalculateAvgRewardRisk(tradePnLs []float64) *float64 {
	var wins, losses []float64
	for _, pnl := range tradePnLs {
		if pnl > 0 {
			wins = append(wins, pnl)
		} else if pnl < 0 {
			losses = append(losses, -pnl)
		}
	}

	if len(wins) == 0 || len(losses) == 0 {
		return nil
	}

	avgLoss := Mean(losses)
	if avgLoss == 0 {
		return nil
	}

	rr := Mean(wins) / avgLoss
	return &rr
}
