package auth

import (
	"time"

	"github.com/google/uuid"
)

// Operator is a single administrative account permitted to override nanobot
// decisions through the admin endpoints (unblock an IP, acknowledge an
// alert). There is no multi-user workspace or RBAC here — that is an
// explicit Non-goal; this exists only to gate those endpoints.
type Operator struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Registry holds operator accounts in memory. A production deployment would
// back this with the audit/database layer; the core ships the in-memory
// form so the engine is usable with zero external state.
type Registry struct {
	byUsername map[string]*Operator
}

// NewRegistry constructs an empty operator registry.
func NewRegistry() *Registry {
	return &Registry{byUsername: make(map[string]*Operator)}
}

// Create adds a new operator with an already-hashed password.
func (r *Registry) Create(username, passwordHash string) *Operator {
	op := &Operator{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	r.byUsername[username] = op
	return op
}

// Find looks up an operator by username.
func (r *Registry) Find(username string) (*Operator, bool) {
	op, ok := r.byUsername[username]
	return op, ok
}

// UpdatePasswordHash replaces op's stored hash in place, used to transparently
// rehash a credential whose bcrypt cost has drifted from the configured cost.
func (r *Registry) UpdatePasswordHash(username, passwordHash string) {
	if op, ok := r.byUsername[username]; ok {
		op.PasswordHash = passwordHash
	}
}
