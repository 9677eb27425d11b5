// Package parimutuel implements the pool math for binary markets: odds,
// pre-commit payout previews, and resolution payouts.
//
// All functions are pure and use integer arithmetic only. Payouts are
// floored; the rounding loss (at most winnerCount-1 coins per resolution)
// stays in the pool and is never redistributed.
package parimutuel

// Odds returns the implied percentages for the YES and NO sides of a
// market. An empty market reads as even odds. The two percentages always
// sum to 100: YES is rounded to the nearest integer and NO takes the rest.
func Odds(yesPool, noPool uint64) (yesPct, noPct int) {
	total := yesPool + noPool
	if total == 0 {
		return 50, 50
	}
	yesPct = int((yesPool*100 + total/2) / total)
	return yesPct, 100 - yesPct
}

// PreviewPayout returns what a candidate bet would pay if its side won,
// assuming the pools stay as they are. The candidate stake is added to its
// side before computing the share, so a preview taken just before placement
// agrees with ResolutionPayout once the bet is committed.
func PreviewPayout(amount uint64, position bool, yesPool, noPool uint64) uint64 {
	totalPool := yesPool + noPool + amount
	winningPool := noPool + amount
	if position {
		winningPool = yesPool + amount
	}
	if winningPool == 0 {
		return 0
	}
	return amount * totalPool / winningPool
}

// ResolutionPayout returns the floored proportional payout for one winning
// bet: floor(amount / winningPool * totalPool). The caller must handle
// winningPool == 0 separately (full refund of every stake).
func ResolutionPayout(amount, winningPool, totalPool uint64) uint64 {
	if winningPool == 0 {
		return 0
	}
	return amount * totalPool / winningPool
}
