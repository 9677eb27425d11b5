package models

// MarketStatus is the lifecycle state of a market.
// Markets move OPEN -> RESOLVED or OPEN -> CANCELLED; both are terminal.
type MarketStatus string

const (
	MarketOpen      MarketStatus = "OPEN"
	MarketResolved  MarketStatus = "RESOLVED"
	MarketCancelled MarketStatus = "CANCELLED"
)

// Market represents a binary parimutuel market owned by a group.
//
// Invariants: Outcome is non-nil if and only if Status is RESOLVED;
// cancellation leaves Outcome nil. Pools only ever grow while OPEN and are
// frozen afterwards.
type Market struct {
	// ID is the unique identifier for the market (UUID format).
	ID string

	// GroupID is the group this market belongs to.
	GroupID string

	// CreatedBy is the user ID of the market creator. Only the creator may
	// resolve or cancel the market.
	CreatedBy string

	// Title is the yes/no question being wagered on.
	Title string

	// Status is the current lifecycle state.
	Status MarketStatus

	// YesPool and NoPool are the total coins staked on each side.
	YesPool uint64
	NoPool  uint64

	// Outcome is the resolved result: nil while OPEN or after cancellation,
	// otherwise true for YES and false for NO.
	Outcome *bool

	// CreatedAt is the Unix timestamp when the market was created.
	CreatedAt int64

	// ResolvedAt is the Unix timestamp of resolution or cancellation,
	// zero while OPEN. Set exactly once.
	ResolvedAt int64
}

// Terminal reports whether the market has left the OPEN state.
func (m *Market) Terminal() bool {
	return m.Status != MarketOpen
}
