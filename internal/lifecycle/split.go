package lifecycle

import "math"

// SplitFill divides a counter-direction fill delta between closing the
// current position and opening the next one. A delta no larger than the
// outstanding net size is pure closing; anything beyond it opens in the
// opposite direction.
func SplitFill(fillDelta, previousNetSize float64) (closingSize, openingSize float64) {
	closingSize = math.Min(fillDelta, math.Abs(previousNetSize))
	openingSize = fillDelta - closingSize
	return closingSize, openingSize
}
