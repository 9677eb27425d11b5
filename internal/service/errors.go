// Package service implements the business logic of the betting backend:
// virtual parimutuel markets over group balances, debt netting, and
// real-money wager settlement through the payment gateway.
package service

import "errors"

// Domain errors. Handlers match these with errors.Is to choose response
// status codes; everything else is an internal error.
var (
	// ErrMarketClosed is returned for any bet or resolution against a
	// market that has left the OPEN state.
	ErrMarketClosed = errors.New("market is not open")

	// ErrNotAMember is returned when the caller holds no ledger entry in
	// the market's group.
	ErrNotAMember = errors.New("user is not a member of this group")

	// ErrInvalidAmount is returned for a bet amount outside the allowed
	// range.
	ErrInvalidAmount = errors.New("bet amount out of range")

	// ErrInvalidTitle is returned for an empty or oversized title.
	ErrInvalidTitle = errors.New("invalid title")

	// ErrInvalidStake is returned for a wager stake outside the allowed
	// range.
	ErrInvalidStake = errors.New("stake amount out of range")

	// ErrInvalidDeadline is returned for a wager deadline in the past.
	ErrInvalidDeadline = errors.New("deadline must be in the future")

	// ErrNotCreator is returned when someone other than the creator tries
	// to resolve a market or settle a wager.
	ErrNotCreator = errors.New("only the creator may do this")

	// ErrAlreadyResolved is returned for a second resolution attempt.
	ErrAlreadyResolved = errors.New("market already resolved")

	// ErrAlreadySettled is returned for a second settlement attempt.
	ErrAlreadySettled = errors.New("wager already settled")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyJoined is returned when a user attempts to buy into the
	// same wager twice.
	ErrAlreadyJoined = errors.New("user already joined this wager")

	// ErrNotParticipant is returned when a settlement names a winner who
	// never bought in.
	ErrNotParticipant = errors.New("winner is not a wager participant")

	// ErrUncapturedParticipants is returned when a wager settlement is
	// attempted while some buy-ins are not captured yet.
	ErrUncapturedParticipants = errors.New("not all buy-ins are captured")

	// ErrMissingPayoutHandle is returned when a payout recipient has no
	// payout handle on file.
	ErrMissingPayoutHandle = errors.New("user has no payout handle")

	// ErrInvalidHandle is returned for a malformed payout handle.
	ErrInvalidHandle = errors.New("invalid payout handle")

	// ErrNoWinners is returned for a settlement with an empty winner list.
	ErrNoWinners = errors.New("at least one winner is required")

	// ErrLedgerCorruption is returned when a group's balances do not sum
	// to zero. Settlement must not proceed on a corrupted ledger.
	ErrLedgerCorruption = errors.New("group balances do not sum to zero")

	// ErrNothingToSettle is returned when every balance in the group is
	// already zero.
	ErrNothingToSettle = errors.New("no outstanding balances to settle")

	// ErrSettlementExists is returned when a group cash-out is requested
	// while an earlier cash-out batch is still standing (submitted or
	// paid). Balances never reset after a cash-out, so without this guard
	// a replayed request would pay every creditor again.
	ErrSettlementExists = errors.New("a settlement payout batch already exists for this group")

	// ErrWagerExpired is returned when someone tries to join a wager after
	// its deadline.
	ErrWagerExpired = errors.New("wager deadline has passed")
)
