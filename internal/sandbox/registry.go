package sandbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Registration is a completed onboarding outcome: the customer linked to a
// telegram identity with a hashed PIN.
type Registration struct {
	TelegramID  string
	CustomerID  string
	PINHash     []byte
	CompletedAt time.Time
}

var errAlreadyRegistered = errors.New("registration already completed")

// Registry finalizes registrations in memory, one per telegram identity.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Registration
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Registration)}
}

// Complete hashes the PIN and records the registration. A second completion
// for the same telegram id is rejected.
func (r *Registry) Complete(_ context.Context, telegramID, customerID, pin string) (Registration, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return Registration{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[telegramID]; exists {
		return Registration{}, errAlreadyRegistered
	}

	reg := Registration{
		TelegramID:  telegramID,
		CustomerID:  customerID,
		PINHash:     hash,
		CompletedAt: time.Now().UTC(),
	}
	r.entries[telegramID] = reg
	return reg, nil
}

// Find returns the registration for a telegram id.
func (r *Registry) Find(telegramID string) (Registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.entries[telegramID]
	return reg, ok
}
