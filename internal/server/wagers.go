package server

import (
	"net/http"

	"github.com/betonem/backend/internal/middleware"
	"github.com/betonem/backend/internal/models"
)

type wagerResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	CreatedBy  string `json:"created_by"`
	StakeCents int64  `json:"stake_cents"`
	Status     string `json:"status"`
	EndsAt     int64  `json:"ends_at,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

type participantResponse struct {
	UserID    string `json:"user_id"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	CaptureID string `json:"capture_id,omitempty"`
}

func toWagerResponse(w *models.Wager) wagerResponse {
	return wagerResponse{
		ID:         w.ID,
		Title:      w.Title,
		CreatedBy:  w.CreatedBy,
		StakeCents: w.StakeCents,
		Status:     string(w.Status),
		EndsAt:     w.EndsAt,
		CreatedAt:  w.CreatedAt,
	}
}

func toParticipantResponse(p *models.WagerParticipant) participantResponse {
	return participantResponse{
		UserID:    p.UserID,
		OrderID:   p.OrderID,
		Status:    string(p.Status),
		CaptureID: p.CaptureID,
	}
}

func (s *Server) handleCreateWager(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title      string `json:"title"`
		StakeCents int64  `json:"stake_cents"`
		EndsAt     int64  `json:"ends_at"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	wager, err := s.reconciler.CreateWager(r.Context(), middleware.GetUserID(r.Context()), req.Title, req.StakeCents, req.EndsAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWagerResponse(wager))
}

func (s *Server) handleGetWager(w http.ResponseWriter, r *http.Request) {
	wager, participants, err := s.reconciler.GetWager(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]participantResponse, len(participants))
	for i, p := range participants {
		out[i] = toParticipantResponse(p)
	}
	writeJSON(w, http.StatusOK, struct {
		wagerResponse
		Participants []participantResponse `json:"participants"`
	}{toWagerResponse(wager), out})
}

func (s *Server) handleJoinWager(w http.ResponseWriter, r *http.Request) {
	participant, approveURL, err := s.reconciler.JoinWager(r.Context(), r.PathValue("id"), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		participantResponse
		ApproveURL string `json:"approve_url"`
	}{toParticipantResponse(participant), approveURL})
}

func (s *Server) handleCaptureBuyIn(w http.ResponseWriter, r *http.Request) {
	participant, err := s.reconciler.CaptureBuyIn(r.Context(), r.PathValue("id"), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantResponse(participant))
}

func (s *Server) handleSettleWager(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Winners []string `json:"winners"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	payouts, err := s.reconciler.SettleWager(r.Context(), r.PathValue("id"), middleware.GetUserID(r.Context()), req.Winners)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"payouts": toPayoutResponses(payouts)})
}

func (s *Server) handleSyncPayoutBatch(w http.ResponseWriter, r *http.Request) {
	payouts, err := s.reconciler.SyncPayoutBatch(r.Context(), r.PathValue("batchID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payouts": toPayoutResponses(payouts)})
}
