package server

import (
	"net/http"

	"github.com/betonem/backend/internal/middleware"
	"github.com/betonem/backend/internal/models"
)

type balanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

type transferResponse struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

type payoutResponse struct {
	ID          string `json:"id"`
	WagerID     string `json:"wager_id,omitempty"`
	GroupID     string `json:"group_id,omitempty"`
	UserID      string `json:"user_id"`
	AmountCents int64  `json:"amount_cents"`
	Status      string `json:"status"`
	BatchID     string `json:"batch_id,omitempty"`
	ItemID      string `json:"item_id,omitempty"`
}

func toPayoutResponses(payouts []*models.Payout) []payoutResponse {
	out := make([]payoutResponse, len(payouts))
	for i, p := range payouts {
		out[i] = payoutResponse{
			ID:          p.ID,
			WagerID:     p.WagerID,
			GroupID:     p.GroupID,
			UserID:      p.UserID,
			AmountCents: p.AmountCents,
			Status:      string(p.Status),
			BatchID:     p.BatchID,
			ItemID:      p.ItemID,
		}
	}
	return out
}

func (s *Server) handleJoinGroup(w http.ResponseWriter, r *http.Request) {
	membership, err := s.groups.Join(r.Context(), r.PathValue("id"), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, balanceResponse{UserID: membership.UserID, Balance: membership.Balance})
}

func (s *Server) handleGroupBalances(w http.ResponseWriter, r *http.Request) {
	memberships, err := s.groups.Balances(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	balances := make([]balanceResponse, len(memberships))
	for i, m := range memberships {
		balances[i] = balanceResponse{UserID: m.UserID, Balance: m.Balance}
	}
	writeJSON(w, http.StatusOK, map[string]any{"balances": balances})
}

func (s *Server) handleProposeSettlement(w http.ResponseWriter, r *http.Request) {
	transfers, err := s.reconciler.ProposeSettlement(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]transferResponse, len(transfers))
	for i, t := range transfers {
		out[i] = transferResponse{From: t.From, To: t.To, Amount: t.Amount}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transfers": out})
}

func (s *Server) handleExecuteSettlement(w http.ResponseWriter, r *http.Request) {
	payouts, err := s.reconciler.ExecuteSettlement(r.Context(), r.PathValue("id"), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"payouts": toPayoutResponses(payouts)})
}
