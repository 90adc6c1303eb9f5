package httpapi

import (
	"net/http"

	appMission "github.com/missionhub/missionhub/internal/application/mission"
	"github.com/missionhub/missionhub/internal/domain/mission"
)

type locationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

type missionCreateRequest struct {
	Title         string           `json:"title"`
	Description   string           `json:"description,omitempty"`
	Pickup        locationRequest  `json:"pickup"`
	Drop          *locationRequest `json:"drop,omitempty"`
	WindowStart   string           `json:"window_start"`
	WindowEnd     string           `json:"window_end"`
	PriceEstimate int64            `json:"price_estimate"`
	CashAdvance   int64            `json:"cash_advance,omitempty"`
	Currency      string           `json:"currency"`
	Priority      string           `json:"priority,omitempty"`
}

type missionActionRequest struct {
	Reason     string `json:"reason,omitempty"`
	FinalPrice *int64 `json:"final_price,omitempty"`
}

type disputeResolveRequest struct {
	Outcome string `json:"outcome"`
	Note    string `json:"note,omitempty"`
}

func (s *Server) createMission(w http.ResponseWriter, r *http.Request) {
	u := authUserFromContext(r.Context())
	var req missionCreateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	windowStart, err := parseTime(req.WindowStart)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid window_start")
		return
	}
	windowEnd, err := parseTime(req.WindowEnd)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid window_end")
		return
	}

	input := appMission.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Pickup: mission.Location{
			Latitude:  req.Pickup.Latitude,
			Longitude: req.Pickup.Longitude,
			Address:   req.Pickup.Address,
		},
		WindowStart:   windowStart,
		WindowEnd:     windowEnd,
		PriceEstimate: req.PriceEstimate,
		CashAdvance:   req.CashAdvance,
		Currency:      req.Currency,
		Priority:      mission.Priority(req.Priority),
	}
	if req.Drop != nil {
		input.Drop = &mission.Location{
			Latitude:  req.Drop.Latitude,
			Longitude: req.Drop.Longitude,
			Address:   req.Drop.Address,
		}
	}

	m, err := s.missionSvc.Create(r.Context(), u.UserID, input)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

func (s *Server) listMissions(w http.ResponseWriter, r *http.Request) {
	var status *mission.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := mission.Status(raw)
		status = &st
	}
	limit, offset := parseLimitOffset(r, 100, 200)
	missions, err := s.missionSvc.List(r.Context(), status, limit, offset)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"missions": missions})
}

func (s *Server) getMission(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "missionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid missionId")
		return
	}
	m, err := s.missionSvc.Get(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (s *Server) getMissionHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "missionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid missionId")
		return
	}
	entries, err := s.missionSvc.History(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"mission_id": id, "history": entries})
}

func (s *Server) acceptMission(w http.ResponseWriter, r *http.Request) {
	u := authUserFromContext(r.Context())
	id, err := parseUUIDParam(r, "missionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid missionId")
		return
	}
	m, err := s.missionSvc.Accept(r.Context(), id, u.UserID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (s *Server) startMission(w http.ResponseWriter, r *http.Request) {
	u := authUserFromContext(r.Context())
	id, err := parseUUIDParam(r, "missionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid missionId")
		return
	}
	m, err := s.missionSvc.Start(r.Context(), id, u.UserID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (s *Server) completeMission(w http.ResponseWriter, r *http.Request) {
	u := authUserFromContext(r.Context())
	id, err := parseUUIDParam(r, "missionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid missionId")
		return
	}
	var req missionActionRequest
	_ = decodeBody(r, &req)
	if req.FinalPrice != nil && *req.FinalPrice < 0 {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "final_price must be non-negative")
		return
	}
	m, err := s.missionSvc.Complete(r.Context(), id, u.UserID, req.FinalPrice)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (s *Server) cancelMission(w http.ResponseWriter, r *http.Request) {
	u := authUserFromContext(r.Context())
	id, err := parseUUIDParam(r, "missionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid missionId")
		return
	}
	var req missionActionRequest
	_ = decodeBody(r, &req)
	m, err := s.missionSvc.Cancel(r.Context(), id, u.UserID, req.Reason)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (s *Server) disputeMission(w http.ResponseWriter, r *http.Request) {
	u := authUserFromContext(r.Context())
	id, err := parseUUIDParam(r, "missionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid missionId")
		return
	}
	var req missionActionRequest
	_ = decodeBody(r, &req)
	m, err := s.missionSvc.Dispute(r.Context(), id, u.UserID, req.Reason)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (s *Server) resolveDispute(w http.ResponseWriter, r *http.Request) {
	u := authUserFromContext(r.Context())
	id, err := parseUUIDParam(r, "missionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid missionId")
		return
	}
	var req disputeResolveRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	outcome := mission.DisputeOutcome(req.Outcome)
	m, err := s.missionSvc.ResolveDispute(r.Context(), id, u.UserID, outcome, req.Note)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}
