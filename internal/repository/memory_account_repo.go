package repository

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/peerlearn/peerlearn/internal/domain"
)

// MemoryAccountRepository is an in-process AccountRepository used when no
// MongoDB URI is configured and in tests.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

// NewMemoryAccountRepository creates an empty in-memory account store.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: make(map[string]*domain.Account)}
}

func (r *MemoryAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUnique("", account.Email, account.Username); err != nil {
		return err
	}

	now := time.Now().UTC()
	account.ID = primitive.NewObjectID().Hex()
	account.CreatedAt = now
	account.UpdatedAt = now
	r.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (r *MemoryAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (r *MemoryAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return a.Email == email })
}

func (r *MemoryAccountRepository) GetByProfileID(ctx context.Context, profileID string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return a.ProfileID == profileID })
}

func (r *MemoryAccountRepository) Update(ctx context.Context, id string, update *domain.AccountUpdate) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}

	next := cloneAccount(current)
	apply := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	apply(&next.Name, update.Name)
	apply(&next.Email, update.Email)
	apply(&next.PasswordHash, update.PasswordHash)
	apply(&next.Phone, update.Phone)
	apply(&next.Username, update.Username)
	apply(&next.Github, update.Github)
	apply(&next.Instagram, update.Instagram)
	apply(&next.X, update.X)
	apply(&next.BackgroundURL, update.BackgroundURL)
	apply(&next.Description, update.Description)

	if err := r.checkUnique(id, next.Email, next.Username); err != nil {
		return nil, err
	}

	next.UpdatedAt = time.Now().UTC()
	r.accounts[id] = next
	return cloneAccount(next), nil
}

func (r *MemoryAccountRepository) SetUsernameByProfileID(ctx context.Context, profileID, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, a := range r.accounts {
		if a.ProfileID != profileID {
			continue
		}
		if err := r.checkUnique(id, a.Email, username); err != nil {
			return err
		}
		a.Username = username
		a.UpdatedAt = time.Now().UTC()
		return nil
	}
	return ErrAccountNotFound
}

func (r *MemoryAccountRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[id]; !ok {
		return ErrAccountNotFound
	}
	delete(r.accounts, id)
	return nil
}

func (r *MemoryAccountRepository) find(match func(*domain.Account) bool) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if match(a) {
			return cloneAccount(a), nil
		}
	}
	return nil, ErrAccountNotFound
}

// checkUnique must be called with the lock held. skipID excludes the account being updated.
func (r *MemoryAccountRepository) checkUnique(skipID, email, username string) error {
	for id, a := range r.accounts {
		if id == skipID {
			continue
		}
		if a.Email == email {
			return ErrEmailExists
		}
		if username != "" && a.Username == username {
			return ErrUsernameExists
		}
	}
	return nil
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	c.Groups = append([]domain.AccountGroup(nil), a.Groups...)
	c.StudySessions = append([]domain.StudySession(nil), a.StudySessions...)
	return &c
}
