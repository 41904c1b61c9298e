package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.pilab.hu/accountd/domain"
)

// memTokenRepo is an in-memory domain.TokenRepository. All mutations run
// under one mutex, which gives ConsumeActive the same atomicity the Mongo
// implementation gets from FindOneAndDelete.
type memTokenRepo struct {
	mu      sync.Mutex
	byValue map[string]*domain.Token
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{byValue: make(map[string]*domain.Token)}
}

func (r *memTokenRepo) live(t *domain.Token, purpose domain.TokenPurpose, userID string) bool {
	if t == nil || t.Blacklisted || t.Purpose != purpose {
		return false
	}
	if userID != "" && t.UserID != userID {
		return false
	}
	return t.ExpiresAt.After(time.Now())
}

func (r *memTokenRepo) Store(_ context.Context, token *domain.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byValue[token.TokenValue]; exists {
		return errors.New("duplicate token value")
	}
	cp := *token
	r.byValue[token.TokenValue] = &cp
	return nil
}

func (r *memTokenRepo) FindActive(_ context.Context, tokenValue string, purpose domain.TokenPurpose, userID string) (*domain.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.byValue[tokenValue]
	if !r.live(t, purpose, userID) {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *memTokenRepo) ConsumeActive(_ context.Context, tokenValue string, purpose domain.TokenPurpose, userID string) (*domain.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.byValue[tokenValue]
	if !r.live(t, purpose, userID) {
		return nil, nil
	}
	delete(r.byValue, tokenValue)
	return t, nil
}

func (r *memTokenRepo) ConsumeByValue(ctx context.Context, tokenValue string, purpose domain.TokenPurpose) (*domain.Token, error) {
	return r.ConsumeActive(ctx, tokenValue, purpose, "")
}

func (r *memTokenRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for v, t := range r.byValue {
		if t.ID == id {
			delete(r.byValue, v)
		}
	}
	return nil
}

func (r *memTokenRepo) DeleteAllForUser(_ context.Context, userID string, purpose domain.TokenPurpose) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var values []string
	for v, t := range r.byValue {
		if t.UserID == userID && t.Purpose == purpose {
			values = append(values, v)
			delete(r.byValue, v)
		}
	}
	return values, nil
}

func (r *memTokenRepo) BlacklistByValue(_ context.Context, tokenValue string, _ domain.TokenPurpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t := r.byValue[tokenValue]; t != nil {
		t.Blacklisted = true
	}
	return nil
}

func (r *memTokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for v, t := range r.byValue {
		if !t.ExpiresAt.After(now) {
			delete(r.byValue, v)
			n++
		}
	}
	return n, nil
}

func (r *memTokenRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byValue)
}

var _ domain.TokenRepository = (*memTokenRepo)(nil)

// memUserRepo is an in-memory domain.UserRepository.
type memUserRepo struct {
	mu        sync.Mutex
	byID      map[string]*domain.User
	lastQuery domain.UserQuery
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: make(map[string]*domain.User)}
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	cp := *user
	r.byID[user.ID] = &cp
	return nil
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.byID[id]
	if u == nil {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) List(_ context.Context, query domain.UserQuery) (*domain.UserPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastQuery = query

	var users []*domain.User
	for _, u := range r.byID {
		if query.Name != "" && u.Name != query.Name {
			continue
		}
		if query.Role != "" && u.Role != query.Role {
			continue
		}
		cp := *u
		users = append(users, &cp)
	}
	total := int64(len(users))
	totalPages := total / query.Limit
	if total%query.Limit != 0 {
		totalPages++
	}
	return &domain.UserPage{Users: users, Total: total, TotalPages: totalPages, Page: query.Page}, nil
}

func (r *memUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[user.ID]; !ok {
		return errNotFound
	}
	cp := *user
	r.byID[user.ID] = &cp
	return nil
}

func (r *memUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.byID[id]
	if u == nil {
		return errNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (r *memUserRepo) SetEmailVerified(_ context.Context, id string, verified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.byID[id]
	if u == nil {
		return errNotFound
	}
	u.IsEmailVerified = verified
	return nil
}

func (r *memUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

var errNotFound = errors.New("not found")

var _ domain.UserRepository = (*memUserRepo)(nil)

// plainHasher avoids bcrypt cost in tests.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (plainHasher) Verify(hashedPassword, password string) error {
	if hashedPassword != "hashed:"+password {
		return errors.New("password mismatch")
	}
	return nil
}

// recordingNotifier captures the last token handed to it.
type recordingNotifier struct {
	mu            sync.Mutex
	resetTokens   []string
	verifyTokens  []string
	lastRecipient string
}

func (n *recordingNotifier) SendResetPasswordEmail(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lastRecipient = email
	n.resetTokens = append(n.resetTokens, token)
	return nil
}

func (n *recordingNotifier) SendVerificationEmail(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lastRecipient = email
	n.verifyTokens = append(n.verifyTokens, token)
	return nil
}

func (n *recordingNotifier) lastResetToken() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.resetTokens) == 0 {
		return ""
	}
	return n.resetTokens[len(n.resetTokens)-1]
}

func (n *recordingNotifier) lastVerifyToken() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.verifyTokens) == 0 {
		return ""
	}
	return n.verifyTokens[len(n.verifyTokens)-1]
}
