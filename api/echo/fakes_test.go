package echo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.pilab.hu/accountd/domain"
)

// In-memory repositories so handler tests exercise the real services end to
// end. tokenRepo counts every call, which lets tests assert that invalid
// requests are rejected before any store access.
type tokenRepo struct {
	mu      sync.Mutex
	byValue map[string]*domain.Token
	calls   int
}

func newTokenRepo() *tokenRepo {
	return &tokenRepo{byValue: make(map[string]*domain.Token)}
}

func (r *tokenRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *tokenRepo) live(t *domain.Token, purpose domain.TokenPurpose, userID string) bool {
	if t == nil || t.Blacklisted || t.Purpose != purpose {
		return false
	}
	if userID != "" && t.UserID != userID {
		return false
	}
	return t.ExpiresAt.After(time.Now())
}

func (r *tokenRepo) Store(_ context.Context, token *domain.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	cp := *token
	r.byValue[token.TokenValue] = &cp
	return nil
}

func (r *tokenRepo) FindActive(_ context.Context, tokenValue string, purpose domain.TokenPurpose, userID string) (*domain.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	t := r.byValue[tokenValue]
	if !r.live(t, purpose, userID) {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *tokenRepo) ConsumeActive(_ context.Context, tokenValue string, purpose domain.TokenPurpose, userID string) (*domain.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	t := r.byValue[tokenValue]
	if !r.live(t, purpose, userID) {
		return nil, nil
	}
	delete(r.byValue, tokenValue)
	return t, nil
}

func (r *tokenRepo) ConsumeByValue(ctx context.Context, tokenValue string, purpose domain.TokenPurpose) (*domain.Token, error) {
	return r.ConsumeActive(ctx, tokenValue, purpose, "")
}

func (r *tokenRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for v, t := range r.byValue {
		if t.ID == id {
			delete(r.byValue, v)
		}
	}
	return nil
}

func (r *tokenRepo) DeleteAllForUser(_ context.Context, userID string, purpose domain.TokenPurpose) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	var values []string
	for v, t := range r.byValue {
		if t.UserID == userID && t.Purpose == purpose {
			values = append(values, v)
			delete(r.byValue, v)
		}
	}
	return values, nil
}

func (r *tokenRepo) BlacklistByValue(_ context.Context, tokenValue string, _ domain.TokenPurpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if t := r.byValue[tokenValue]; t != nil {
		t.Blacklisted = true
	}
	return nil
}

func (r *tokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	var n int64
	for v, t := range r.byValue {
		if !t.ExpiresAt.After(now) {
			delete(r.byValue, v)
			n++
		}
	}
	return n, nil
}

var _ domain.TokenRepository = (*tokenRepo)(nil)

type userRepo struct {
	mu   sync.Mutex
	byID map[string]*domain.User
}

func newUserRepo() *userRepo {
	return &userRepo{byID: make(map[string]*domain.User)}
}

func (r *userRepo) Create(_ context.Context, user *domain.User) error {
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

func (r *userRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.byID[id]
	if u == nil {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *userRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
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

func (r *userRepo) List(_ context.Context, query domain.UserQuery) (*domain.UserPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
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

func (r *userRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[user.ID]; !ok {
		return errors.New("not found")
	}
	cp := *user
	r.byID[user.ID] = &cp
	return nil
}

func (r *userRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.byID[id]
	if u == nil {
		return errors.New("not found")
	}
	u.PasswordHash = passwordHash
	return nil
}

func (r *userRepo) SetEmailVerified(_ context.Context, id string, verified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.byID[id]
	if u == nil {
		return errors.New("not found")
	}
	u.IsEmailVerified = verified
	return nil
}

func (r *userRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

var _ domain.UserRepository = (*userRepo)(nil)

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (plainHasher) Verify(hashedPassword, password string) error {
	if hashedPassword != "hashed:"+password {
		return errors.New("password mismatch")
	}
	return nil
}

type silentNotifier struct {
	mu        sync.Mutex
	lastToken string
}

func (n *silentNotifier) SendResetPasswordEmail(_ context.Context, _, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lastToken = token
	return nil
}

func (n *silentNotifier) SendVerificationEmail(_ context.Context, _, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lastToken = token
	return nil
}

func (n *silentNotifier) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastToken
}
