// Package netting computes the minimal practical set of transfers that
// zeroes out every balance in a group.
package netting

import (
	"errors"
	"sort"
)

// ErrUnbalanced is returned when a group's balances do not sum to zero.
// Bets and payouts only ever move coins between members, so a nonzero sum
// means the ledger is corrupt; netting must halt rather than paper over it.
var ErrUnbalanced = errors.New("group balances do not sum to zero")

// Member is one group member's current ledger balance.
type Member struct {
	UserID  string
	Balance int64 // negative = owes the group, positive = owed by the group
}

// Transfer is a single payment instruction: From pays To Amount coins.
type Transfer struct {
	From   string
	To     string
	Amount int64
}

// Settle returns an ordered list of transfers that, once applied, leaves
// every member's balance at exactly zero.
//
// Greedy largest-debtor/largest-creditor matching: each round moves
// min(debt, credit) between the current largest debtor and largest
// creditor, fully settling at least one of them. This yields at most
// debtorCount + creditorCount - 1 transfers. Ties are broken by user ID so
// the result is deterministic.
func Settle(members []Member) ([]Transfer, error) {
	type party struct {
		userID    string
		remaining int64
	}

	var debtors, creditors []party
	var sum int64
	for _, m := range members {
		sum += m.Balance
		switch {
		case m.Balance < 0:
			debtors = append(debtors, party{userID: m.UserID, remaining: -m.Balance})
		case m.Balance > 0:
			creditors = append(creditors, party{userID: m.UserID, remaining: m.Balance})
		}
	}
	if sum != 0 {
		return nil, ErrUnbalanced
	}

	byMagnitude := func(ps []party) {
		sort.Slice(ps, func(i, j int) bool {
			if ps[i].remaining != ps[j].remaining {
				return ps[i].remaining > ps[j].remaining
			}
			return ps[i].userID < ps[j].userID
		})
	}
	byMagnitude(debtors)
	byMagnitude(creditors)

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor := &debtors[i]
		creditor := &creditors[j]

		amount := debtor.remaining
		if creditor.remaining < amount {
			amount = creditor.remaining
		}

		transfers = append(transfers, Transfer{
			From:   debtor.userID,
			To:     creditor.userID,
			Amount: amount,
		})

		debtor.remaining -= amount
		creditor.remaining -= amount

		if debtor.remaining == 0 {
			i++
		}
		if creditor.remaining == 0 {
			j++
		}
	}

	return transfers, nil
}
