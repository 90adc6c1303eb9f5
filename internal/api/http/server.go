package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	appAuth "github.com/missionhub/missionhub/internal/application/auth"
	appChat "github.com/missionhub/missionhub/internal/application/chat"
	appEscrow "github.com/missionhub/missionhub/internal/application/escrow"
	appMission "github.com/missionhub/missionhub/internal/application/mission"
	appUser "github.com/missionhub/missionhub/internal/application/user"
	domainChat "github.com/missionhub/missionhub/internal/domain/chat"
	"github.com/missionhub/missionhub/internal/domain/mission"
	"github.com/missionhub/missionhub/internal/domain/payment"
	domainUser "github.com/missionhub/missionhub/internal/domain/user"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	missionSvc          *appMission.Service
	chatSvc             *appChat.Service
	escrowSvc           *appEscrow.Coordinator
	authSvc             *appAuth.Service
	userSvc             *appUser.Service
	sessionCookieName   string
	sessionCookieSecure bool
}

func NewServer(
	missionSvc *appMission.Service,
	chatSvc *appChat.Service,
	escrowSvc *appEscrow.Coordinator,
	authSvc *appAuth.Service,
	userSvc *appUser.Service,
	sessionCookieName string,
	sessionCookieSecure bool,
) *Server {
	return &Server{
		missionSvc:          missionSvc,
		chatSvc:             chatSvc,
		escrowSvc:           escrowSvc,
		authSvc:             authSvc,
		userSvc:             userSvc,
		sessionCookieName:   sessionCookieName,
		sessionCookieSecure: sessionCookieSecure,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.login)
			r.Post("/bootstrap", s.bootstrapAdmin)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/logout", s.logout)
				r.Get("/me", s.me)
			})
		})

		// Gateway webhooks authenticate with a shared secret at the gateway,
		// not a user session.
		r.Post("/payments/gateway/events", s.gatewayEvent)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Route("/missions", func(r chi.Router) {
				r.Post("/", s.createMission)
				r.Get("/", s.listMissions)
				r.Get("/{missionId}", s.getMission)
				r.Get("/{missionId}/history", s.getMissionHistory)
				r.Post("/{missionId}/accept", s.acceptMission)
				r.Post("/{missionId}/start", s.startMission)
				r.Post("/{missionId}/complete", s.completeMission)
				r.Post("/{missionId}/cancel", s.cancelMission)
				r.Post("/{missionId}/dispute", s.disputeMission)
				r.With(s.requireRole(string(domainUser.RoleAdmin))).
					Post("/{missionId}/dispute/resolve", s.resolveDispute)

				r.Get("/{missionId}/payments", s.listMissionPayments)

				r.Route("/{missionId}/chat", func(r chi.Router) {
					r.Get("/stream", s.chatStream)
					r.Get("/messages", s.recentMessages)
					r.Post("/messages", s.sendMessage)
				})
			})

			r.Delete("/chat/messages/{messageId}", s.deleteMessage)

			r.With(s.requireRole(string(domainUser.RoleAdmin))).
				Get("/payments/reconciliation", s.listReconciliation)

			r.Route("/users", func(r chi.Router) {
				r.With(s.requireRole(string(domainUser.RoleAdmin))).Post("/", s.createUser)
				r.With(s.requireRole(string(domainUser.RoleAdmin))).Get("/", s.listUsers)
				r.Get("/{userId}", s.getUser)
				r.With(s.requireRole(string(domainUser.RoleAdmin))).Patch("/{userId}", s.updateUser)
				r.With(s.requireRole(string(domainUser.RoleAdmin))).Put("/{userId}/password", s.setUserPassword)
			})
		})
	})

	return r
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// respondDomainError maps domain sentinel errors onto the HTTP error
// contract. Unknown errors surface as 500.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mission.ErrValidation):
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
	case errors.Is(err, mission.ErrNotFound), errors.Is(err, domainChat.ErrNotFound), errors.Is(err, payment.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, mission.ErrForbidden), errors.Is(err, domainChat.ErrForbidden):
		respondError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, mission.ErrAlreadyAssigned):
		respondError(w, http.StatusConflict, "MISSION_ALREADY_ASSIGNED", err.Error())
	case errors.Is(err, mission.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "INVALID_STATE", err.Error())
	case errors.Is(err, mission.ErrConflict):
		respondError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, domainChat.ErrEmptyContent), errors.Is(err, domainChat.ErrNotDeletable):
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
	case errors.Is(err, domainChat.ErrMissionClosed):
		respondError(w, http.StatusConflict, "INVALID_STATE", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	val := chi.URLParam(r, key)
	return uuid.Parse(val)
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseLimitOffset(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil {
			offset = o
		}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func parseTime(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339, raw)
}
