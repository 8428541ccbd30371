// Package identity - учётные записи, проверка пароля и сессионные токены.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"agrimarket/db"
	"agrimarket/models"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid session token")
	ErrWeakPassword       = errors.New("password must be 8 to 72 bytes")
)

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // предел bcrypt
)

type Store interface {
	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	DeleteAccount(ctx context.Context, id string) error
}

// Session - кто выполняет запрос.
type Session struct {
	AccountID string
	UserName  string
	ExpiresAt time.Time
}

type claims struct {
	UserName string `json:"usr"`
	jwt.RegisteredClaims
}

type Gateway struct {
	store  Store
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time

	// сравниваем с ним, когда email не найден, чтобы время ответа не выдавало наличие учётки
	dummyHash []byte
}

func NewGateway(store Store, secret string, ttl time.Duration) *Gateway {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	g := &Gateway{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
	g.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), g.cost)
	return g
}

// WithCost меняет стоимость bcrypt (в тестах - bcrypt.MinCost).
func (g *Gateway) WithCost(cost int) *Gateway {
	g.cost = cost
	g.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	return g
}

func (g *Gateway) WithClock(now func() time.Time) *Gateway {
	g.now = now
	return g
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount хэширует пароль и создаёт учётную запись, возвращает её id.
func (g *Gateway) CreateAccount(ctx context.Context, email, password string) (string, error) {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	acc := &models.Account{
		ID:           id.String(),
		Email:        normalizeEmail(email),
		PasswordHash: string(hash),
		CreatedAt:    g.now(),
	}
	if err := g.store.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return "", ErrEmailTaken
		}
		return "", fmt.Errorf("create account: %w", err)
	}
	return acc.ID, nil
}

func (g *Gateway) DeleteAccount(ctx context.Context, id string) error {
	return g.store.DeleteAccount(ctx, id)
}

// VerifyCredentials возвращает id учётной записи при верном пароле.
func (g *Gateway) VerifyCredentials(ctx context.Context, email, password string) (string, error) {
	acc, err := g.store.GetAccountByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, db.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(g.dummyHash, []byte(password))
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("load account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return acc.ID, nil
}

// IssueToken подписывает HS256 JWT: sub - учётная запись, usr - имя пользователя.
func (g *Gateway) IssueToken(accountID, userName string) (string, time.Time, error) {
	now := g.now()
	exp := now.Add(g.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserName: userName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (g *Gateway) ValidateToken(token string) (*Session, error) {
	c := &claims{}
	_, err := jwt.ParseWithClaims(token, c, func(*jwt.Token) (any, error) {
		return g.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(g.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if c.Subject == "" || c.UserName == "" {
		return nil, ErrInvalidToken
	}
	s := &Session{AccountID: c.Subject, UserName: c.UserName}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s, nil
}

type sessionKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}
