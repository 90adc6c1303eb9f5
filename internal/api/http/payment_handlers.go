package httpapi

import (
	"net/http"

	"github.com/missionhub/missionhub/internal/domain/payment"
	domainUser "github.com/missionhub/missionhub/internal/domain/user"
)

type gatewayEventRequest struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// Gateway settlement statuses map onto payment statuses directly.
var gatewayStatuses = map[string]payment.Status{
	"processing": payment.StatusProcessing,
	"completed":  payment.StatusCompleted,
	"failed":     payment.StatusFailed,
	"refunded":   payment.StatusRefunded,
}

func (s *Server) listMissionPayments(w http.ResponseWriter, r *http.Request) {
	u := authUserFromContext(r.Context())
	missionID, err := parseUUIDParam(r, "missionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid missionId")
		return
	}
	m, err := s.missionSvc.Get(r.Context(), missionID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if !m.IsParticipant(u.UserID) && u.Role != domainUser.RoleAdmin {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "not a mission participant")
		return
	}
	payments, err := s.escrowSvc.ListByMission(r.Context(), missionID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"mission_id": missionID, "payments": payments})
}

func (s *Server) listReconciliation(w http.ResponseWriter, r *http.Request) {
	limit, _ := parseLimitOffset(r, 50, 200)
	payments, err := s.escrowSvc.ListNeedingReconciliation(r.Context(), limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}

func (s *Server) gatewayEvent(w http.ResponseWriter, r *http.Request) {
	var req gatewayEventRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if req.Reference == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "reference is required")
		return
	}
	status, ok := gatewayStatuses[req.Status]
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "unknown status")
		return
	}
	p, err := s.escrowSvc.HandleGatewayEvent(r.Context(), req.Reference, status)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"payment_id": p.PaymentID, "status": p.Status})
}
