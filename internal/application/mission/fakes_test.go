package mission

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/missionhub/missionhub/internal/domain/chat"
	"github.com/missionhub/missionhub/internal/domain/mission"
	"github.com/missionhub/missionhub/internal/domain/payment"
	"github.com/missionhub/missionhub/internal/domain/user"
)

// memMissionStore implements mission.Repository and mission.HistoryRepository
// with the same optimistic-predicate semantics as the SQL implementation.
type memMissionStore struct {
	mu       sync.Mutex
	missions map[uuid.UUID]*mission.Mission
	history  map[uuid.UUID][]*mission.StatusHistory
}

func newMemMissionStore() *memMissionStore {
	return &memMissionStore{
		missions: make(map[uuid.UUID]*mission.Mission),
		history:  make(map[uuid.UUID][]*mission.StatusHistory),
	}
}

func (s *memMissionStore) Create(_ context.Context, m *mission.Mission, creation *mission.StatusHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.missions[m.MissionID] = &cp
	entry := *creation
	s.history[m.MissionID] = append(s.history[m.MissionID], &entry)
	return nil
}

func (s *memMissionStore) GetByID(_ context.Context, missionID uuid.UUID) (*mission.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.missions[missionID]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *memMissionStore) List(_ context.Context, status *mission.Status, limit, offset int) ([]*mission.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*mission.Mission
	for _, m := range s.missions {
		if status != nil && m.Status != *status {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memMissionStore) ApplyTransition(_ context.Context, m *mission.Mission, expected mission.Status, entry *mission.StatusHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.missions[m.MissionID]
	if !ok || cur.Status != expected {
		return mission.ErrConflict
	}
	cp := *m
	s.missions[m.MissionID] = &cp
	e := *entry
	s.history[m.MissionID] = append(s.history[m.MissionID], &e)
	return nil
}

func (s *memMissionStore) ListByMission(_ context.Context, missionID uuid.UUID) ([]*mission.StatusHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.history[missionID]
	out := make([]*mission.StatusHistory, 0, len(entries))
	for _, e := range entries {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*user.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]*user.User)}
}

func (r *memUserRepo) add(u *user.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.UserID] = u
}

func (r *memUserRepo) Create(_ context.Context, u *user.User) error {
	r.add(u)
	return nil
}

func (r *memUserRepo) Update(_ context.Context, u *user.User) error {
	r.add(u)
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, userID uuid.UUID) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[userID], nil
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) List(_ context.Context, _ user.Filter, _, _ int) ([]*user.User, error) {
	return nil, nil
}

func (r *memUserRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

type stubPaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*payment.Payment
}

func newStubPaymentRepo() *stubPaymentRepo {
	return &stubPaymentRepo{payments: make(map[uuid.UUID]*payment.Payment)}
}

func (r *stubPaymentRepo) Create(_ context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.payments {
		if existing.MissionID == p.MissionID && existing.Type == p.Type {
			return payment.ErrDuplicate
		}
	}
	cp := *p
	r.payments[p.PaymentID] = &cp
	return nil
}

func (r *stubPaymentRepo) GetByID(_ context.Context, id uuid.UUID) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.payments[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *stubPaymentRepo) GetByMissionAndType(_ context.Context, missionID uuid.UUID, typ payment.Type) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.MissionID == missionID && p.Type == typ {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *stubPaymentRepo) GetActiveEscrow(_ context.Context, missionID uuid.UUID) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.MissionID == missionID && p.Type == payment.TypeEscrow && !p.Status.IsTerminal() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *stubPaymentRepo) ListByMission(_ context.Context, missionID uuid.UUID) ([]*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*payment.Payment
	for _, p := range r.payments {
		if p.MissionID == missionID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *stubPaymentRepo) Update(_ context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[p.PaymentID] = &cp
	return nil
}

func (r *stubPaymentRepo) GetByExternalRef(_ context.Context, ref string) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.ExternalRef != nil && *p.ExternalRef == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *stubPaymentRepo) ListNeedingReconciliation(_ context.Context, limit int) ([]*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*payment.Payment
	for _, p := range r.payments {
		if p.Metadata.NeedsReconcile {
			cp := *p
			out = append(out, &cp)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type stubGateway struct {
	mu      sync.Mutex
	holds   int
	holdErr error

	// Optional hooks to simulate a slow gateway: holdEntered signals a
	// CreateHold in flight, holdBlock parks it until closed.
	holdEntered chan struct{}
	holdBlock   chan struct{}
}

func (g *stubGateway) CreateHold(_ context.Context, _ int64, _ string, _ payment.HoldMetadata) (string, error) {
	if g.holdEntered != nil {
		g.holdEntered <- struct{}{}
	}
	if g.holdBlock != nil {
		<-g.holdBlock
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holdErr != nil {
		return "", g.holdErr
	}
	g.holds++
	return "hold-1", nil
}

func (g *stubGateway) Release(_ context.Context, _ string) error { return nil }
func (g *stubGateway) Refund(_ context.Context, _ string) error  { return nil }

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

type memNotifier struct {
	mu   sync.Mutex
	sent []uuid.UUID
}

func (n *memNotifier) SendToUser(_ context.Context, userID uuid.UUID, _, _ string, _ map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, userID)
	return nil
}
