package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"wizardAPI/internal/types/challenge"
	"wizardAPI/internal/types/notification"
	"wizardAPI/internal/types/user"
)

// Memory implements every repository interface in process. Reads, writes and
// transactions are serialized; a failed or panicking transaction restores the
// state it started from. Foreign-key cascades mirror the SQL schema.
type Memory struct {
	txMu  *sync.Mutex
	mu    *sync.RWMutex
	state *memoryState
	inTx  bool
}

type memoryState struct {
	challenges     map[uuid.UUID]challenge.Challenge
	rituals        map[uuid.UUID]challenge.Ritual
	userChallenges map[uuid.UUID]challenge.UserChallenge
	completions    map[uuid.UUID]challenge.RitualCompletion
	users          map[uuid.UUID]user.User
	devices        map[uuid.UUID]notification.DeviceToken
}

func NewMemory() *Memory {
	return &Memory{
		txMu: &sync.Mutex{},
		mu:   &sync.RWMutex{},
		state: &memoryState{
			challenges:     map[uuid.UUID]challenge.Challenge{},
			rituals:        map[uuid.UUID]challenge.Ritual{},
			userChallenges: map[uuid.UUID]challenge.UserChallenge{},
			completions:    map[uuid.UUID]challenge.RitualCompletion{},
			users:          map[uuid.UUID]user.User{},
			devices:        map[uuid.UUID]notification.DeviceToken{},
		},
	}
}

func (s *memoryState) clone() *memoryState {
	return &memoryState{
		challenges:     cloneMap(s.challenges),
		rituals:        cloneMap(s.rituals),
		userChallenges: cloneMap(s.userChallenges),
		completions:    cloneMap(s.completions),
		users:          cloneMap(s.users),
		devices:        cloneMap(s.devices),
	}
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// write runs fn under the write lock, also taking the transaction lock when
// called outside a transaction.
func (m *Memory) write(fn func(s *memoryState) error) error {
	if !m.inTx {
		m.txMu.Lock()
		defer m.txMu.Unlock()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.state)
}

// read waits for any running transaction outside of one, so callers never see
// writes that may still be rolled back.
func (m *Memory) read(fn func(s *memoryState)) {
	if !m.inTx {
		m.txMu.Lock()
		defer m.txMu.Unlock()
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(m.state)
}

func (m *Memory) transact(fn func(tx *Memory) error) error {
	if m.inTx {
		return fn(m)
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	backup := m.state.clone()
	m.mu.RUnlock()

	committed := false
	defer func() {
		if !committed {
			m.mu.Lock()
			*m.state = *backup
			m.mu.Unlock()
		}
	}()

	tx := &Memory{txMu: m.txMu, mu: m.mu, state: m.state, inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	committed = true
	return nil
}

func (m *Memory) WithinTx(ctx context.Context, fn func(repo ChallengeRepository) error) error {
	return m.transact(func(tx *Memory) error { return fn(tx) })
}

func (m *Memory) WithinCatalogTx(ctx context.Context, fn func(repo CatalogRepository) error) error {
	return m.transact(func(tx *Memory) error { return fn(tx) })
}

// Challenge catalog

func (m *Memory) ListActiveChallenges(ctx context.Context) ([]challenge.Summary, error) {
	summaries := []challenge.Summary{}
	m.read(func(s *memoryState) {
		for _, c := range s.challenges {
			if !c.IsActive {
				continue
			}
			count := 0
			for _, r := range s.rituals {
				if r.ChallengeID == c.ID && r.IsActive {
					count++
				}
			}
			summaries = append(summaries, challenge.Summary{Challenge: c, RitualCount: count})
		}
	})
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].SortOrder != summaries[j].SortOrder {
			return summaries[i].SortOrder < summaries[j].SortOrder
		}
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return summaries, nil
}

func (m *Memory) GetChallenge(ctx context.Context, challengeID uuid.UUID) (*challenge.Challenge, error) {
	var (
		c  challenge.Challenge
		ok bool
	)
	m.read(func(s *memoryState) { c, ok = s.challenges[challengeID] })
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *Memory) GetActiveChallenge(ctx context.Context, challengeID uuid.UUID) (*challenge.Challenge, error) {
	c, err := m.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *Memory) filterRituals(match func(r challenge.Ritual) bool) []challenge.Ritual {
	rituals := []challenge.Ritual{}
	m.read(func(s *memoryState) {
		for _, r := range s.rituals {
			if match(r) {
				rituals = append(rituals, r)
			}
		}
	})
	sort.Slice(rituals, func(i, j int) bool {
		a, b := rituals[i], rituals[j]
		if a.DayNumber != b.DayNumber {
			return a.DayNumber < b.DayNumber
		}
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return rituals
}

func (m *Memory) ListActiveRituals(ctx context.Context, challengeID uuid.UUID) ([]challenge.Ritual, error) {
	return m.filterRituals(func(r challenge.Ritual) bool {
		return r.ChallengeID == challengeID && r.IsActive
	}), nil
}

func (m *Memory) ListActiveRitualsForDay(ctx context.Context, challengeID uuid.UUID, day int) ([]challenge.Ritual, error) {
	return m.filterRituals(func(r challenge.Ritual) bool {
		return r.ChallengeID == challengeID && r.DayNumber == day && r.IsActive
	}), nil
}

func (m *Memory) GetActiveRitual(ctx context.Context, challengeID, ritualID uuid.UUID) (*challenge.Ritual, error) {
	var (
		r  challenge.Ritual
		ok bool
	)
	m.read(func(s *memoryState) { r, ok = s.rituals[ritualID] })
	if !ok || r.ChallengeID != challengeID || !r.IsActive {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *Memory) CountActiveRitualsForDay(ctx context.Context, challengeID uuid.UUID, day int) (int, error) {
	rituals, _ := m.ListActiveRitualsForDay(ctx, challengeID, day)
	return len(rituals), nil
}

// Enrollments

func (m *Memory) GetUserChallenge(ctx context.Context, userID, challengeID uuid.UUID) (*challenge.UserChallenge, error) {
	var (
		found challenge.UserChallenge
		ok    bool
	)
	m.read(func(s *memoryState) {
		for _, uc := range s.userChallenges {
			if uc.UserID == userID && uc.ChallengeID == challengeID {
				found, ok = uc, true
				return
			}
		}
	})
	if !ok {
		return nil, ErrNotFound
	}
	return &found, nil
}

// LockUserChallenge needs no row lock: transactions are already serialized.
func (m *Memory) LockUserChallenge(ctx context.Context, userID, challengeID uuid.UUID) (*challenge.UserChallenge, error) {
	return m.GetUserChallenge(ctx, userID, challengeID)
}

func (m *Memory) ListUserChallenges(ctx context.Context, userID uuid.UUID, statuses []challenge.Status) ([]challenge.UserChallenge, error) {
	list := []challenge.UserChallenge{}
	m.read(func(s *memoryState) {
		for _, uc := range s.userChallenges {
			if uc.UserID == userID && slices.Contains(statuses, uc.Status) {
				list = append(list, uc)
			}
		}
	})
	sort.Slice(list, func(i, j int) bool { return list[i].StartedAt.After(list[j].StartedAt) })
	return list, nil
}

func (m *Memory) CreateUserChallenge(ctx context.Context, uc *challenge.UserChallenge) error {
	return m.write(func(s *memoryState) error {
		if _, ok := s.challenges[uc.ChallengeID]; !ok {
			return ErrNotFound
		}
		for _, existing := range s.userChallenges {
			if existing.UserID == uc.UserID && existing.ChallengeID == uc.ChallengeID {
				return ErrDuplicate
			}
		}
		s.userChallenges[uc.ID] = *uc
		return nil
	})
}

func (m *Memory) UpdateUserChallenge(ctx context.Context, uc *challenge.UserChallenge) error {
	return m.write(func(s *memoryState) error {
		existing, ok := s.userChallenges[uc.ID]
		if !ok {
			return ErrNotFound
		}
		existing.Status = uc.Status
		existing.CurrentDay = uc.CurrentDay
		existing.PausedAt = uc.PausedAt
		existing.CompletedAt = uc.CompletedAt
		existing.UpdatedAt = uc.UpdatedAt
		s.userChallenges[uc.ID] = existing
		return nil
	})
}

// Completion ledger

func (m *Memory) ListCompletions(ctx context.Context, userChallengeID uuid.UUID) ([]challenge.RitualCompletion, error) {
	completions := []challenge.RitualCompletion{}
	m.read(func(s *memoryState) {
		for _, c := range s.completions {
			if c.UserChallengeID == userChallengeID {
				completions = append(completions, c)
			}
		}
	})
	sort.Slice(completions, func(i, j int) bool {
		return completions[i].CompletedAt.Before(completions[j].CompletedAt)
	})
	return completions, nil
}

func (m *Memory) InsertCompletion(ctx context.Context, c *challenge.RitualCompletion) error {
	return m.write(func(s *memoryState) error {
		if _, ok := s.userChallenges[c.UserChallengeID]; !ok {
			return ErrNotFound
		}
		if _, ok := s.rituals[c.RitualID]; !ok {
			return ErrNotFound
		}
		for _, existing := range s.completions {
			if existing.UserChallengeID == c.UserChallengeID && existing.RitualID == c.RitualID {
				return ErrDuplicate
			}
		}
		s.completions[c.ID] = *c
		return nil
	})
}

func (m *Memory) CountCompletionsForDay(ctx context.Context, userChallengeID uuid.UUID, day int) (int, error) {
	count := 0
	m.read(func(s *memoryState) {
		for _, c := range s.completions {
			if c.UserChallengeID != userChallengeID {
				continue
			}
			if r, ok := s.rituals[c.RitualID]; ok && r.DayNumber == day {
				count++
			}
		}
	})
	return count, nil
}

// Catalog writes

func (m *Memory) UpsertChallenge(ctx context.Context, c *challenge.Challenge) error {
	return m.write(func(s *memoryState) error {
		for id, existing := range s.challenges {
			if existing.Slug == c.Slug {
				c.ID = id
				c.CreatedAt = existing.CreatedAt
				s.challenges[id] = *c
				return nil
			}
		}
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now()
		}
		s.challenges[c.ID] = *c
		return nil
	})
}

func (m *Memory) UpsertRitual(ctx context.Context, r *challenge.Ritual) error {
	return m.write(func(s *memoryState) error {
		if _, ok := s.challenges[r.ChallengeID]; !ok {
			return ErrNotFound
		}
		if r.Key == "" {
			return fmt.Errorf("ritual %q has no catalog key", r.Title)
		}
		for id, existing := range s.rituals {
			if existing.ChallengeID == r.ChallengeID && existing.Key == r.Key {
				r.ID = id
				r.CreatedAt = existing.CreatedAt
				s.rituals[id] = *r
				return nil
			}
		}
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now()
		}
		s.rituals[r.ID] = *r
		return nil
	})
}

func (m *Memory) DeactivateRitualsExcept(ctx context.Context, challengeID uuid.UUID, keep []uuid.UUID) (int64, error) {
	var n int64
	err := m.write(func(s *memoryState) error {
		for id, r := range s.rituals {
			if r.ChallengeID == challengeID && r.IsActive && !slices.Contains(keep, id) {
				r.IsActive = false
				s.rituals[id] = r
				n++
			}
		}
		return nil
	})
	return n, err
}

func (m *Memory) DeactivateChallengesExcept(ctx context.Context, keepSlugs []string) (int64, error) {
	var n int64
	err := m.write(func(s *memoryState) error {
		for id, c := range s.challenges {
			if c.IsActive && !slices.Contains(keepSlugs, c.Slug) {
				c.IsActive = false
				s.challenges[id] = c
				n++
			}
		}
		return nil
	})
	return n, err
}

// Users

func (m *Memory) GetByAuthSubject(ctx context.Context, subject string) (*user.User, error) {
	var (
		found user.User
		ok    bool
	)
	m.read(func(s *memoryState) {
		for _, u := range s.users {
			if u.AuthSubject == subject {
				found, ok = u, true
				return
			}
		}
	})
	if !ok {
		return nil, ErrNotFound
	}
	return &found, nil
}

func (m *Memory) Upsert(ctx context.Context, req *user.UpsertUserRequest) (*user.User, error) {
	var out user.User
	err := m.write(func(s *memoryState) error {
		now := time.Now()
		u := user.User{ID: uuid.New(), CreatedAt: now}
		for _, existing := range s.users {
			if existing.AuthSubject == req.AuthSubject {
				u = existing
				break
			}
		}
		u.AuthSubject = req.AuthSubject
		u.Email = req.Email
		u.EmailVerified = req.EmailVerified
		u.Username = req.Username
		u.FirstName = req.FirstName
		u.LastName = req.LastName
		u.ImageURL = req.ImageURL
		u.UpdatedAt = now
		s.users[u.ID] = u
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *Memory) DeleteByAuthSubject(ctx context.Context, subject string) error {
	return m.write(func(s *memoryState) error {
		for id, u := range s.users {
			if u.AuthSubject != subject {
				continue
			}
			delete(s.users, id)
			for ucID, uc := range s.userChallenges {
				if uc.UserID == id {
					delete(s.userChallenges, ucID)
				}
			}
			for cID, c := range s.completions {
				if c.UserID == id {
					delete(s.completions, cID)
				}
			}
			for dID, d := range s.devices {
				if d.UserID == id {
					delete(s.devices, dID)
				}
			}
			return nil
		}
		return ErrNotFound
	})
}

// Devices

func (m *Memory) RegisterDevice(ctx context.Context, userID uuid.UUID, req *notification.RegisterDeviceRequest) (*notification.DeviceToken, error) {
	var out notification.DeviceToken
	err := m.write(func(s *memoryState) error {
		now := time.Now()
		d := notification.DeviceToken{ID: uuid.New(), Token: req.Token, CreatedAt: now}
		for _, existing := range s.devices {
			if existing.Token == req.Token {
				d = existing
				break
			}
		}
		d.UserID = userID
		d.Platform = req.Platform
		d.LastSeenAt = now
		s.devices[d.ID] = d
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *Memory) ListDevices(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	var devices []notification.DeviceToken
	m.read(func(s *memoryState) {
		for _, d := range s.devices {
			if d.UserID == userID {
				devices = append(devices, d)
			}
		}
	})
	sort.Slice(devices, func(i, j int) bool { return devices[i].LastSeenAt.After(devices[j].LastSeenAt) })
	return devices, nil
}

func (m *Memory) DeleteDevice(ctx context.Context, token string) error {
	return m.write(func(s *memoryState) error {
		for id, d := range s.devices {
			if d.Token == token {
				delete(s.devices, id)
			}
		}
		return nil
	})
}

var (
	_ ChallengeRepository = (*Memory)(nil)
	_ CatalogRepository   = (*Memory)(nil)
	_ UserRepository      = (*Memory)(nil)
	_ DeviceRepository    = (*Memory)(nil)

	_ ChallengeRepository = (*PostgresChallengeRepository)(nil)
	_ CatalogRepository   = (*PostgresCatalogRepository)(nil)
	_ UserRepository      = (*PostgresUserRepository)(nil)
	_ DeviceRepository    = (*PostgresDeviceRepository)(nil)
)
