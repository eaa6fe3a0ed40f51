package refresher

import "math"

// TransactionFee is the marketplace cut applied to a sale.
const TransactionFee = 0.10

// NetProfit is the rounded profit of selling at sellPrice (after the fee)
// against the recorded buy price. Null when either side is missing.
func NetProfit(sellPrice, buyPrice *int) *int {
	if sellPrice == nil || buyPrice == nil {
		return nil
	}
	net := float64(*sellPrice)*(1-TransactionFee) - float64(*buyPrice)
	v := int(math.Round(net))
	return &v
}

// ProfitRatio is the net profit as a percentage of the buy price, to one
// decimal. Zero when the buy price is not positive.
func ProfitRatio(sellPrice, buyPrice *int) *float64 {
	if sellPrice == nil || buyPrice == nil {
		return nil
	}
	if *buyPrice <= 0 {
		zero := 0.0
		return &zero
	}
	ratio := (float64(*sellPrice)*(1-TransactionFee) - float64(*buyPrice)) / float64(*buyPrice) * 100
	ratio = math.Round(ratio*10) / 10
	return &ratio
}
