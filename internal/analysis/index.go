package analysis

import "github.com/park285/chess-game-metrics/internal/domain"

// GameIndex anchors each side's GPL on the points it actually scored. When
// the result is unknown the anchor is the side's last in-game expected
// score instead, and known reports false.
func GameIndex(result domain.Result, white, black SideTotals, lastWhite, lastBlack float64) (whiteGI, blackGI float64, known bool) {
	wp, bp, ok := result.Points()
	if !ok {
		wp, bp = lastWhite, lastBlack
	}
	return wp - white.GPL, bp - black.GPL, ok
}
