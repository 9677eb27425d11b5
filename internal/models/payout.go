package models

// WagerStatus is the lifecycle state of a real-money wager.
type WagerStatus string

const (
	WagerOpen    WagerStatus = "OPEN"
	WagerSettled WagerStatus = "SETTLED"
)

// Wager is a fixed-stake real-money bet. Every participant buys in for the
// same stake through a gateway checkout order; settlement splits the
// captured pool equally among the designated winners.
type Wager struct {
	// ID is the unique identifier for the wager (UUID format).
	ID string

	// Title describes what is being wagered on.
	Title string

	// CreatedBy is the user who created the wager.
	CreatedBy string

	// StakeCents is the buy-in per participant, in cents.
	StakeCents int64

	// Status is OPEN until settled.
	Status WagerStatus

	// EndsAt is the Unix timestamp after which the wager should be settled.
	EndsAt int64

	// CreatedAt is the Unix timestamp when the wager was created.
	CreatedAt int64
}

// ParticipantStatus tracks a single gateway checkout order through its
// lifecycle: CREATED -> APPROVED -> CAPTURED, or FAILED on denial/refund.
type ParticipantStatus string

const (
	ParticipantCreated  ParticipantStatus = "CREATED"
	ParticipantApproved ParticipantStatus = "APPROVED"
	ParticipantCaptured ParticipantStatus = "CAPTURED"
	ParticipantFailed   ParticipantStatus = "FAILED"
)

// WagerParticipant tracks one user's buy-in order on one wager.
// OrderID is unique; CaptureID is set once capture succeeds and is then
// immutable.
type WagerParticipant struct {
	WagerID string
	UserID  string

	// OrderID is the gateway checkout order id.
	OrderID string

	Status ParticipantStatus

	// CaptureID is the gateway capture id, empty until capture completes.
	CaptureID string

	CreatedAt int64
}

// PayoutStatus is the state of a single real-money payout instruction.
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "PENDING"
	PayoutProcessing PayoutStatus = "PROCESSING"
	PayoutSuccess    PayoutStatus = "SUCCESS"
	PayoutFailed     PayoutStatus = "FAILED"
	PayoutDenied     PayoutStatus = "DENIED"
)

// Payout is one real-money payment instruction submitted to the gateway as
// part of a batch. Exactly one of WagerID or GroupID is set: wager
// settlements pay winners, group settlements pay out netted creditors.
type Payout struct {
	// ID is the unique identifier for the payout (UUID format).
	ID string

	// WagerID is set for wager-settlement payouts.
	WagerID string

	// GroupID is set for group cash-out payouts.
	GroupID string

	// UserID is the recipient.
	UserID string

	// AmountCents is the payout amount in cents.
	AmountCents int64

	Status PayoutStatus

	// BatchID is the gateway payout batch id, set once the batch is
	// submitted.
	BatchID string

	// ItemID is the gateway payout item id, learned from webhooks or batch
	// status polls.
	ItemID string

	CreatedAt int64
}
