package models

// Bet represents a single stake on one side of a market.
// Bets are immutable once created; a user may place any number of bets on
// the same market and they are never merged.
type Bet struct {
	// ID is the unique identifier for the bet (UUID format).
	ID string

	// MarketID is the market this bet was placed on.
	MarketID string

	// UserID is the bettor.
	UserID string

	// Position is the chosen side: true for YES, false for NO.
	Position bool

	// Amount is the staked coins. Always >= 1.
	Amount uint64

	// CreatedAt is the Unix timestamp when the bet was placed.
	CreatedAt int64
}

// Membership is the balance ledger entry for one user in one group.
// Unique per (GroupID, UserID).
type Membership struct {
	// GroupID and UserID identify the ledger key.
	GroupID string
	UserID  string

	// Balance is the user's coin balance in this group. Members start at
	// zero; every bet debits the stake immediately and every resolution
	// payout credits it. Negative balances are debt, not an error.
	Balance int64
}

// User is the slice of the profile store this backend consumes: the
// per-user payout handle used when real-money payouts are issued.
// Profile management itself lives outside this service.
type User struct {
	ID    string
	Email string

	// PayoutHandle is the payment-gateway receiver identifier (e.g. a Venmo
	// username). Empty means the user cannot receive real-money payouts.
	PayoutHandle string
}
