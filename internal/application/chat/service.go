package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/missionhub/missionhub/internal/domain/chat"
	"github.com/missionhub/missionhub/internal/domain/mission"
	"github.com/missionhub/missionhub/internal/domain/push"
	"github.com/missionhub/missionhub/internal/infrastructure/realtime"
)

const recentPageSize = 50

// Service is the chat room registry: per-mission membership, message
// persistence, ordered fan-out, and push notification of absent
// participants.
type Service struct {
	chatRepo    chat.Repository
	missionRepo mission.Repository
	hub         *realtime.Hub
	notifier    push.Notifier
	logger      zerolog.Logger
}

func NewService(chatRepo chat.Repository, missionRepo mission.Repository, hub *realtime.Hub, notifier push.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		chatRepo:    chatRepo,
		missionRepo: missionRepo,
		hub:         hub,
		notifier:    notifier,
		logger:      logger.With().Str("service", "chat").Logger(),
	}
}

// JoinResult is returned to a successfully joined connection.
type JoinResult struct {
	Participants []uuid.UUID     `json:"participants"`
	Recent       []*chat.Message `json:"recentMessages"`
}

// Join registers a connection in the mission's room and returns the current
// participant list plus a bounded page of recent messages, newest last.
func (s *Service) Join(ctx context.Context, connectionID string, userID, missionID uuid.UUID) (*JoinResult, *realtime.Client, error) {
	m, err := s.missionRepo.GetByID(ctx, missionID)
	if err != nil {
		return nil, nil, err
	}
	if m == nil {
		return nil, nil, mission.ErrNotFound
	}
	if !m.IsParticipant(userID) {
		return nil, nil, chat.ErrForbidden
	}

	client := realtime.NewClient(connectionID, userID)
	s.hub.Join(missionID, client)
	s.hub.Broadcast(missionID, realtime.EventUserJoined, map[string]string{"userId": userID.String()})

	recent, err := s.chatRepo.ListRecent(ctx, missionID, recentPageSize)
	if err != nil {
		s.hub.Leave(missionID, connectionID)
		return nil, nil, err
	}
	return &JoinResult{
		Participants: s.hub.Members(missionID),
		Recent:       recent,
	}, client, nil
}

// Leave removes a connection and notifies remaining members.
func (s *Service) Leave(missionID uuid.UUID, connectionID string) {
	if c := s.hub.Leave(missionID, connectionID); c != nil {
		s.hub.Broadcast(missionID, realtime.EventUserLeft, map[string]string{"userId": c.UserID.String()})
	}
}

// Disconnect removes a connection after a transport drop.
func (s *Service) Disconnect(missionID uuid.UUID, connectionID string) {
	if c := s.hub.Leave(missionID, connectionID); c != nil {
		s.hub.Broadcast(missionID, realtime.EventUserDisconnected, map[string]string{"userId": c.UserID.String()})
	}
}

// Send persists a text message, broadcasts it to the room, and push-notifies
// participants not currently connected.
func (s *Service) Send(ctx context.Context, userID, missionID uuid.UUID, content string) (*chat.Message, error) {
	m, err := s.missionRepo.GetByID(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, mission.ErrNotFound
	}
	if m.Status == mission.StatusCancelled {
		return nil, chat.ErrMissionClosed
	}
	if !m.IsParticipant(userID) {
		return nil, chat.ErrForbidden
	}

	msg, err := chat.NewText(missionID, userID, content)
	if err != nil {
		return nil, err
	}
	if err := s.chatRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	s.hub.Broadcast(missionID, realtime.EventNewMessage, msg)
	s.notifyAbsent(m, userID.String(), "New message", truncate(content, 120), map[string]string{
		"missionId": missionID.String(),
		"messageId": msg.MessageID.String(),
	})
	return msg, nil
}

// Recent returns the recent-message page for a participant.
func (s *Service) Recent(ctx context.Context, userID, missionID uuid.UUID) ([]*chat.Message, error) {
	m, err := s.missionRepo.GetByID(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, mission.ErrNotFound
	}
	if !m.IsParticipant(userID) {
		return nil, chat.ErrForbidden
	}
	return s.chatRepo.ListRecent(ctx, missionID, recentPageSize)
}

// Delete soft-deletes a text message. Only the original sender may delete.
func (s *Service) Delete(ctx context.Context, userID, messageID uuid.UUID) error {
	msg, err := s.chatRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return chat.ErrNotFound
	}
	if err := msg.CanDelete(userID); err != nil {
		return err
	}
	return s.chatRepo.MarkDeleted(ctx, messageID)
}

// BroadcastStatusChange emits a status chat message and a structured status
// event for a committed transition, then push-notifies absent participants.
// Called by the mission state machine after commit; failures here never
// affect the transition.
func (s *Service) BroadcastStatusChange(ctx context.Context, m *mission.Mission, actorID *uuid.UUID) {
	text := statusText(m)
	msg := chat.NewStatus(m.MissionID, string(m.Status), text)
	if err := s.chatRepo.Create(ctx, msg); err != nil {
		s.logger.Error().Err(err).
			Str("missionId", m.MissionID.String()).
			Msg("failed to persist status message")
	}

	actor := ""
	if actorID != nil {
		actor = actorID.String()
	}
	s.hub.Broadcast(m.MissionID, realtime.EventStatusChanged, map[string]any{
		"missionId": m.MissionID.String(),
		"status":    string(m.Status),
		"actorId":   actor,
	})
	s.hub.Broadcast(m.MissionID, realtime.EventNewMessage, msg)
	s.notifyAbsent(m, actor, "Mission update", text, map[string]string{
		"missionId": m.MissionID.String(),
		"status":    string(m.Status),
	})
}

// notifyAbsent pushes to every participant without a live room connection.
// Fire-and-forget; push failures are logged and swallowed.
func (s *Service) notifyAbsent(m *mission.Mission, exceptUserID string, title, body string, data map[string]string) {
	participants := []uuid.UUID{m.ClientID}
	if m.AssistantID != nil {
		participants = append(participants, *m.AssistantID)
	}
	for _, p := range participants {
		if p.String() == exceptUserID {
			continue
		}
		if s.hub.IsConnected(m.MissionID, p) {
			continue
		}
		userID := p
		go func() {
			if err := s.notifier.SendToUser(context.Background(), userID, title, body, data); err != nil {
				s.logger.Warn().Err(err).
					Str("userId", userID.String()).
					Str("missionId", m.MissionID.String()).
					Msg("push notification failed")
			}
		}()
	}
}

func statusText(m *mission.Mission) string {
	switch m.Status {
	case mission.StatusAccepted:
		return fmt.Sprintf("Mission %q accepted", m.Title)
	case mission.StatusInProgress:
		return fmt.Sprintf("Mission %q started", m.Title)
	case mission.StatusCompleted:
		return fmt.Sprintf("Mission %q completed", m.Title)
	case mission.StatusCancelled:
		reason := ""
		if m.CancellationReason != nil {
			reason = ": " + *m.CancellationReason
		}
		return fmt.Sprintf("Mission %q cancelled%s", m.Title, reason)
	case mission.StatusDisputed:
		return fmt.Sprintf("Mission %q disputed", m.Title)
	default:
		return fmt.Sprintf("Mission %q is %s", m.Title, strings.ToLower(string(m.Status)))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
