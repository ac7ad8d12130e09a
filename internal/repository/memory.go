package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"genstudio/internal/model"
)

// MemoryStore keeps users and generations in process memory. It follows the
// GORM repositories' error contract (gorm.ErrRecordNotFound,
// gorm.ErrDuplicatedKey) so services behave the same on either backend.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[uuid.UUID]model.User
	emails      map[string]uuid.UUID
	generations []memoryGeneration
	seq         uint64
	now         func() time.Time
}

type memoryGeneration struct {
	gen model.Generation
	seq uint64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[uuid.UUID]model.User),
		emails: make(map[string]uuid.UUID),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Users returns a UserRepository view of the store.
func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }

// Generations returns a GenerationRepository view of the store.
func (s *MemoryStore) Generations() GenerationRepository { return memoryGenerations{s} }

// DeleteUser removes a user, leaving its generations in place.
func (s *MemoryStore) DeleteUser(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		delete(s.emails, u.Email)
		delete(s.users, id)
	}
}

// UserCount returns the number of stored users.
func (s *MemoryStore) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// GenerationCount returns the number of stored generations.
func (s *MemoryStore) GenerationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.generations)
}

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Create(ctx context.Context, user *model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.s.emails[user.Email]; taken {
		return gorm.ErrDuplicatedKey
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if _, taken := r.s.users[user.ID]; taken {
		return gorm.ErrDuplicatedKey
	}
	now := r.s.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.s.users[user.ID] = *user
	r.s.emails[user.Email] = user.ID
	return nil
}

func (r memoryUsers) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r memoryUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.emails[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	u := r.s.users[id]
	return &u, nil
}

type memoryGenerations struct{ s *MemoryStore }

func (r memoryGenerations) Create(ctx context.Context, generation *model.Generation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if generation.ID == uuid.Nil {
		generation.ID = uuid.New()
	}
	for _, g := range r.s.generations {
		if g.gen.ID == generation.ID {
			return gorm.ErrDuplicatedKey
		}
	}
	if _, ok := r.s.users[generation.UserID]; !ok {
		return gorm.ErrForeignKeyViolated
	}
	if generation.CreatedAt.IsZero() {
		generation.CreatedAt = r.s.now()
	}
	r.s.seq++
	r.s.generations = append(r.s.generations, memoryGeneration{gen: *generation, seq: r.s.seq})
	return nil
}

func (r memoryGenerations) ListRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]model.Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	owned := make([]memoryGeneration, 0)
	for _, g := range r.s.generations {
		if g.gen.UserID == userID {
			owned = append(owned, g)
		}
	}
	r.s.mu.RUnlock()

	// Equal timestamps fall back to insertion order.
	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].gen.CreatedAt.Equal(owned[j].gen.CreatedAt) {
			return owned[i].gen.CreatedAt.After(owned[j].gen.CreatedAt)
		}
		return owned[i].seq > owned[j].seq
	})
	if limit > 0 && len(owned) > limit {
		owned = owned[:limit]
	}

	out := make([]model.Generation, 0, len(owned))
	for _, g := range owned {
		out = append(out, g.gen)
	}
	return out, nil
}
