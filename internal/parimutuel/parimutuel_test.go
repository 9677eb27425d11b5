package parimutuel

import "testing"

func TestOdds(t *testing.T) {
	tests := []struct {
		name    string
		yesPool uint64
		noPool  uint64
		wantYes int
		wantNo  int
	}{
		{name: "empty market is even", yesPool: 0, noPool: 0, wantYes: 50, wantNo: 50},
		{name: "even pools", yesPool: 100, noPool: 100, wantYes: 50, wantNo: 50},
		{name: "yes heavy", yesPool: 300, noPool: 100, wantYes: 75, wantNo: 25},
		{name: "rounds to nearest", yesPool: 1, noPool: 2, wantYes: 33, wantNo: 67},
		{name: "one sided yes", yesPool: 50, noPool: 0, wantYes: 100, wantNo: 0},
		{name: "one sided no", yesPool: 0, noPool: 50, wantYes: 0, wantNo: 100},
		{name: "tiny yes still visible", yesPool: 1, noPool: 199, wantYes: 1, wantNo: 99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yes, no := Odds(tt.yesPool, tt.noPool)
			if yes != tt.wantYes || no != tt.wantNo {
				t.Errorf("Odds(%d, %d) = (%d, %d), want (%d, %d)",
					tt.yesPool, tt.noPool, yes, no, tt.wantYes, tt.wantNo)
			}
		})
	}
}

func TestOddsAlwaysSumTo100(t *testing.T) {
	pools := []uint64{0, 1, 2, 3, 7, 10, 33, 100, 999, 10000}
	for _, yes := range pools {
		for _, no := range pools {
			y, n := Odds(yes, no)
			if y+n != 100 {
				t.Errorf("Odds(%d, %d) = (%d, %d), sum %d != 100", yes, no, y, n, y+n)
			}
			if y < 0 || y > 100 {
				t.Errorf("Odds(%d, %d) yes pct out of range: %d", yes, no, y)
			}
		}
	}
}

func TestPreviewPayout(t *testing.T) {
	tests := []struct {
		name     string
		amount   uint64
		position bool
		yesPool  uint64
		noPool   uint64
		want     uint64
	}{
		// First bet on an empty market gets the whole (one-bet) pool back.
		{name: "first bet empty market", amount: 100, position: true, yesPool: 0, noPool: 0, want: 100},
		// 100 on YES into 300/100: winning pool 400, total 500 -> 125.
		{name: "joins existing yes pool", amount: 100, position: true, yesPool: 300, noPool: 100, want: 125},
		// 100 on NO into 300/100: winning pool 200, total 500 -> 250.
		{name: "joins existing no pool", amount: 100, position: false, yesPool: 300, noPool: 100, want: 250},
		{name: "zero amount", amount: 0, position: true, yesPool: 0, noPool: 0, want: 0},
		{name: "floors fractional share", amount: 10, position: true, yesPool: 20, noPool: 5, want: 11}, // 10/30*35 = 11.66
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PreviewPayout(tt.amount, tt.position, tt.yesPool, tt.noPool)
			if got != tt.want {
				t.Errorf("PreviewPayout(%d, %v, %d, %d) = %d, want %d",
					tt.amount, tt.position, tt.yesPool, tt.noPool, got, tt.want)
			}
		})
	}
}

// A preview taken just before placing the last bet must match the payout the
// same bet receives at resolution time.
func TestPreviewAgreesWithResolution(t *testing.T) {
	yesPool, noPool := uint64(200), uint64(100)
	amount := uint64(100)

	preview := PreviewPayout(amount, true, yesPool, noPool)

	// Commit the bet, then resolve YES.
	yesPool += amount
	resolved := ResolutionPayout(amount, yesPool, yesPool+noPool)

	if preview != resolved {
		t.Errorf("preview %d != resolution payout %d", preview, resolved)
	}
}

func TestResolutionPayout(t *testing.T) {
	tests := []struct {
		name        string
		amount      uint64
		winningPool uint64
		totalPool   uint64
		want        uint64
	}{
		// Spec scenario: $100 YES bettor in a 300/100 market resolving YES.
		{name: "proportional share floored", amount: 100, winningPool: 300, totalPool: 400, want: 133},
		{name: "sole winner takes all", amount: 50, winningPool: 50, totalPool: 200, want: 200},
		{name: "whole winning side", amount: 300, winningPool: 300, totalPool: 400, want: 400},
		{name: "zero winning pool", amount: 100, winningPool: 0, totalPool: 100, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolutionPayout(tt.amount, tt.winningPool, tt.totalPool)
			if got != tt.want {
				t.Errorf("ResolutionPayout(%d, %d, %d) = %d, want %d",
					tt.amount, tt.winningPool, tt.totalPool, got, tt.want)
			}
		})
	}
}

// The sum of all winner payouts never exceeds the total pool, and the
// rounding loss is bounded by winnerCount-1 coins.
func TestResolutionPayoutsBounded(t *testing.T) {
	winners := []uint64{17, 33, 50, 99, 101}
	var winningPool uint64
	for _, w := range winners {
		winningPool += w
	}
	totalPool := winningPool + 177 // losing side

	var paid uint64
	for _, w := range winners {
		paid += ResolutionPayout(w, winningPool, totalPool)
	}

	if paid > totalPool {
		t.Fatalf("paid %d exceeds total pool %d", paid, totalPool)
	}
	if loss := totalPool - paid; loss > uint64(len(winners)-1) {
		t.Errorf("rounding loss %d exceeds winnerCount-1 = %d", loss, len(winners)-1)
	}
}
