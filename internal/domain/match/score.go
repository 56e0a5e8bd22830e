package match

import "math"

// BallsFromOvers converts cricket overs notation (12.3 = 12 overs and 3 balls) into legal deliveries.
func BallsFromOvers(overs float64) int {
	if overs <= 0 {
		return 0
	}
	whole := math.Floor(overs)
	return int(whole)*6 + int(math.Round((overs-whole)*10))
}

// OversFromBalls is the inverse of BallsFromOvers.
func OversFromBalls(balls int) float64 {
	if balls <= 0 {
		return 0
	}
	return float64(balls/6) + float64(balls%6)/10
}

// RunRate is runs/overs rounded to two decimals, or zero when no overs were bowled.
func RunRate(runs int, overs float64) float64 {
	if overs <= 0 {
		return 0
	}
	return math.Round(float64(runs)/overs*100) / 100
}

// ValidOvers reports whether the fractional part of overs is a ball count between 0 and 5.
func ValidOvers(overs float64) bool {
	if overs < 0 {
		return false
	}
	whole := math.Floor(overs)
	return math.Round((overs-whole)*10) <= 5
}
