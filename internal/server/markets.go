package server

import (
	"net/http"

	"github.com/betonem/backend/internal/middleware"
	"github.com/betonem/backend/internal/models"
	"github.com/betonem/backend/internal/service"
)

type marketResponse struct {
	ID         string `json:"id"`
	GroupID    string `json:"group_id"`
	CreatedBy  string `json:"created_by"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	YesPool    uint64 `json:"yes_pool"`
	NoPool     uint64 `json:"no_pool"`
	YesPct     int    `json:"yes_pct"`
	NoPct      int    `json:"no_pct"`
	Outcome    *bool  `json:"outcome,omitempty"`
	CreatedAt  int64  `json:"created_at"`
	ResolvedAt int64  `json:"resolved_at,omitempty"`
}

type betResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Position  string `json:"position"`
	Amount    uint64 `json:"amount"`
	CreatedAt int64  `json:"created_at"`
}

func toMarketResponse(d *service.MarketDetail) marketResponse {
	m := d.Market
	return marketResponse{
		ID:         m.ID,
		GroupID:    m.GroupID,
		CreatedBy:  m.CreatedBy,
		Title:      m.Title,
		Status:     string(m.Status),
		YesPool:    m.YesPool,
		NoPool:     m.NoPool,
		YesPct:     d.YesPct,
		NoPct:      d.NoPct,
		Outcome:    m.Outcome,
		CreatedAt:  m.CreatedAt,
		ResolvedAt: m.ResolvedAt,
	}
}

func toBetResponses(bets []*models.Bet) []betResponse {
	out := make([]betResponse, len(bets))
	for i, b := range bets {
		position := "NO"
		if b.Position {
			position = "YES"
		}
		out[i] = betResponse{
			ID:        b.ID,
			UserID:    b.UserID,
			Position:  position,
			Amount:    b.Amount,
			CreatedAt: b.CreatedAt,
		}
	}
	return out
}

// parsePosition maps "YES"/"NO" onto the boolean the pool math uses.
func parsePosition(s string) (bool, bool) {
	switch s {
	case "YES", "yes":
		return true, true
	case "NO", "no":
		return false, true
	}
	return false, false
}

func (s *Server) handleCreateMarket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GroupID string `json:"group_id"`
		Title   string `json:"title"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	market, err := s.markets.CreateMarket(r.Context(), req.GroupID, middleware.GetUserID(r.Context()), req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMarketResponse(&service.MarketDetail{Market: market, YesPct: 50, NoPct: 50}))
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	detail, err := s.markets.GetMarket(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	bets := detail.Bets
	if userID := r.URL.Query().Get("user"); userID != "" {
		filtered := bets[:0:0]
		for _, b := range bets {
			if b.UserID == userID {
				filtered = append(filtered, b)
			}
		}
		bets = filtered
	}

	writeJSON(w, http.StatusOK, struct {
		marketResponse
		Bets []betResponse `json:"bets"`
	}{toMarketResponse(detail), toBetResponses(bets)})
}

func (s *Server) handlePreviewBet(w http.ResponseWriter, r *http.Request) {
	position, ok := parsePosition(r.URL.Query().Get("position"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "position must be YES or NO"})
		return
	}
	amount, ok := parseAmount(r.URL.Query().Get("amount"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be a positive integer"})
		return
	}

	payout, err := s.markets.PreviewBet(r.Context(), r.PathValue("id"), position, amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"projected_payout": payout})
}

func (s *Server) handlePlaceBet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position string `json:"position"`
		Amount   uint64 `json:"amount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	position, ok := parsePosition(req.Position)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "position must be YES or NO"})
		return
	}

	bet, projected, err := s.markets.PlaceBet(r.Context(), r.PathValue("id"), middleware.GetUserID(r.Context()), position, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		betResponse
		ProjectedPayout uint64 `json:"projected_payout"`
	}{toBetResponses([]*models.Bet{bet})[0], projected})
}

func (s *Server) handleResolveMarket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		// Outcome is "YES", "NO", or "CANCEL".
		Outcome string `json:"outcome"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var outcome *bool
	switch req.Outcome {
	case "CANCEL", "cancel":
	default:
		position, ok := parsePosition(req.Outcome)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "outcome must be YES, NO, or CANCEL"})
			return
		}
		outcome = &position
	}

	if err := s.markets.Resolve(r.Context(), r.PathValue("id"), middleware.GetUserID(r.Context()), outcome); err != nil {
		writeError(w, err)
		return
	}

	detail, err := s.markets.GetMarket(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketResponse(detail))
}
