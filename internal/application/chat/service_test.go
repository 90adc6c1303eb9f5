package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missionhub/missionhub/internal/domain/chat"
	"github.com/missionhub/missionhub/internal/domain/mission"
	"github.com/missionhub/missionhub/internal/infrastructure/realtime"
)

type stubMissionRepo struct {
	mu       sync.Mutex
	missions map[uuid.UUID]*mission.Mission
}

func newStubMissionRepo() *stubMissionRepo {
	return &stubMissionRepo{missions: make(map[uuid.UUID]*mission.Mission)}
}

func (r *stubMissionRepo) add(m *mission.Mission) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.missions[m.MissionID] = m
}

func (r *stubMissionRepo) Create(_ context.Context, m *mission.Mission, _ *mission.StatusHistory) error {
	r.add(m)
	return nil
}

func (r *stubMissionRepo) GetByID(_ context.Context, missionID uuid.UUID) (*mission.Mission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.missions[missionID], nil
}

func (r *stubMissionRepo) List(_ context.Context, _ *mission.Status, _, _ int) ([]*mission.Mission, error) {
	return nil, nil
}

func (r *stubMissionRepo) ApplyTransition(_ context.Context, m *mission.Mission, _ mission.Status, _ *mission.StatusHistory) error {
	r.add(m)
	return nil
}

type memChatRepo struct {
	mu       sync.Mutex
	messages []*chat.Message
}

func (r *memChatRepo) Create(_ context.Context, m *chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.messages = append(r.messages, &cp)
	return nil
}

func (r *memChatRepo) GetByID(_ context.Context, messageID uuid.UUID) (*chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.MessageID == messageID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memChatRepo) ListRecent(_ context.Context, missionID uuid.UUID, limit int) ([]*chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*chat.Message
	for _, m := range r.messages {
		if m.MissionID == missionID && !m.Deleted {
			cp := *m
			out = append(out, &cp)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *memChatRepo) MarkDeleted(_ context.Context, messageID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.MessageID == messageID {
			m.Deleted = true
		}
	}
	return nil
}

func (r *memChatRepo) count(missionID uuid.UUID, typ chat.MessageType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if m.MissionID == missionID && m.Type == typ {
			n++
		}
	}
	return n
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []uuid.UUID
}

func (n *recordingNotifier) SendToUser(_ context.Context, userID uuid.UUID, _, _ string, _ map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, userID)
	return nil
}

func (n *recordingNotifier) sentTo(userID uuid.UUID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, id := range n.sent {
		if id == userID {
			return true
		}
	}
	return false
}

func (n *recordingNotifier) waitFor(t *testing.T, userID uuid.UUID) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n.sentTo(userID) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected push notification for %s", userID)
}

type chatEnv struct {
	missions *stubMissionRepo
	repo     *memChatRepo
	hub      *realtime.Hub
	notifier *recordingNotifier
	svc      *Service
	client   uuid.UUID
	worker   uuid.UUID
}

func newChatEnv(t *testing.T) *chatEnv {
	t.Helper()
	missions := newStubMissionRepo()
	repo := &memChatRepo{}
	hub := realtime.NewHub()
	t.Cleanup(hub.Stop)
	notifier := &recordingNotifier{}

	return &chatEnv{
		missions: missions,
		repo:     repo,
		hub:      hub,
		notifier: notifier,
		svc:      NewService(repo, missions, hub, notifier, zerolog.Nop()),
		client:   uuid.New(),
		worker:   uuid.New(),
	}
}

func (e *chatEnv) addMission(status mission.Status) *mission.Mission {
	m := &mission.Mission{
		MissionID:   uuid.New(),
		Title:       "Grocery run",
		Status:      status,
		ClientID:    e.client,
		AssistantID: &e.worker,
	}
	e.missions.add(m)
	return m
}

func TestJoinRequiresParticipant(t *testing.T) {
	env := newChatEnv(t)
	m := env.addMission(mission.StatusAccepted)

	_, _, err := env.svc.Join(context.Background(), "conn-1", uuid.New(), m.MissionID)
	assert.ErrorIs(t, err, chat.ErrForbidden)

	_, _, err = env.svc.Join(context.Background(), "conn-1", env.client, uuid.New())
	assert.ErrorIs(t, err, mission.ErrNotFound)
}

func TestJoinReturnsRecentAndParticipants(t *testing.T) {
	env := newChatEnv(t)
	m := env.addMission(mission.StatusInProgress)

	_, err := env.svc.Send(context.Background(), env.client, m.MissionID, "first")
	require.NoError(t, err)
	_, err = env.svc.Send(context.Background(), env.worker, m.MissionID, "second")
	require.NoError(t, err)

	result, client, err := env.svc.Join(context.Background(), "conn-1", env.client, m.MissionID)
	require.NoError(t, err)
	defer env.svc.Leave(m.MissionID, "conn-1")

	require.NotNil(t, client)
	require.Len(t, result.Recent, 2)
	assert.Equal(t, "first", result.Recent[0].Content)
	assert.Equal(t, "second", result.Recent[1].Content)
	assert.Contains(t, result.Participants, env.client)
}

func TestSendToCancelledMission(t *testing.T) {
	env := newChatEnv(t)
	m := env.addMission(mission.StatusCancelled)

	_, err := env.svc.Send(context.Background(), env.client, m.MissionID, "anyone there?")
	assert.ErrorIs(t, err, chat.ErrMissionClosed)
}

func TestSendRequiresParticipant(t *testing.T) {
	env := newChatEnv(t)
	m := env.addMission(mission.StatusInProgress)

	_, err := env.svc.Send(context.Background(), uuid.New(), m.MissionID, "hello")
	assert.ErrorIs(t, err, chat.ErrForbidden)
}

func TestSendBroadcastsToRoom(t *testing.T) {
	env := newChatEnv(t)
	m := env.addMission(mission.StatusInProgress)

	_, workerConn, err := env.svc.Join(context.Background(), "worker-conn", env.worker, m.MissionID)
	require.NoError(t, err)
	defer env.svc.Leave(m.MissionID, "worker-conn")
	// Drain the join event.
	<-workerConn.Events()

	msg, err := env.svc.Send(context.Background(), env.client, m.MissionID, "on my way")
	require.NoError(t, err)
	require.NotNil(t, msg)

	select {
	case ev := <-workerConn.Events():
		assert.Equal(t, realtime.EventNewMessage, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("expected new-message event")
	}
}

func TestSendNotifiesAbsentParticipant(t *testing.T) {
	env := newChatEnv(t)
	m := env.addMission(mission.StatusInProgress)

	// Worker has no live connection, so the send falls back to push.
	_, err := env.svc.Send(context.Background(), env.client, m.MissionID, "where are you?")
	require.NoError(t, err)

	env.notifier.waitFor(t, env.worker)
	assert.False(t, env.notifier.sentTo(env.client))
}

func TestSendSkipsConnectedParticipant(t *testing.T) {
	env := newChatEnv(t)
	m := env.addMission(mission.StatusInProgress)

	_, _, err := env.svc.Join(context.Background(), "worker-conn", env.worker, m.MissionID)
	require.NoError(t, err)
	defer env.svc.Leave(m.MissionID, "worker-conn")

	_, err = env.svc.Send(context.Background(), env.client, m.MissionID, "eta?")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.False(t, env.notifier.sentTo(env.worker))
}

func TestDeleteOnlySender(t *testing.T) {
	env := newChatEnv(t)
	m := env.addMission(mission.StatusInProgress)

	msg, err := env.svc.Send(context.Background(), env.client, m.MissionID, "typo")
	require.NoError(t, err)

	err = env.svc.Delete(context.Background(), env.worker, msg.MessageID)
	assert.ErrorIs(t, err, chat.ErrForbidden)

	require.NoError(t, env.svc.Delete(context.Background(), env.client, msg.MessageID))

	recent, err := env.svc.Recent(context.Background(), env.client, m.MissionID)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestDeleteUnknownMessage(t *testing.T) {
	env := newChatEnv(t)
	err := env.svc.Delete(context.Background(), env.client, uuid.New())
	assert.ErrorIs(t, err, chat.ErrNotFound)
}

func TestBroadcastStatusChange(t *testing.T) {
	env := newChatEnv(t)
	m := env.addMission(mission.StatusAccepted)

	_, clientConn, err := env.svc.Join(context.Background(), "client-conn", env.client, m.MissionID)
	require.NoError(t, err)
	defer env.svc.Leave(m.MissionID, "client-conn")
	// Drain the join event.
	<-clientConn.Events()

	actor := env.worker
	env.svc.BroadcastStatusChange(context.Background(), m, &actor)

	ev := <-clientConn.Events()
	assert.Equal(t, realtime.EventStatusChanged, ev.Type)
	ev = <-clientConn.Events()
	assert.Equal(t, realtime.EventNewMessage, ev.Type)

	assert.Equal(t, 1, env.repo.count(m.MissionID, chat.MessageTypeStatus))
}
