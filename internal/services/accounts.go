package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"agrimarket/db"
	"agrimarket/internal/identity"
	"agrimarket/models"
)

var phonePattern = regexp.MustCompile(`^\+?[\d\s-]{10,}$`)

// Identity - часть Identity Gateway, нужная регистрации и входу.
type Identity interface {
	CreateAccount(ctx context.Context, email, password string) (string, error)
	DeleteAccount(ctx context.Context, id string) error
	VerifyCredentials(ctx context.Context, email, password string) (string, error)
	IssueToken(accountID, userName string) (string, time.Time, error)
}

type RegisterBuyerInput struct {
	UserName     string `json:"userName" validate:"required"`
	FullName     string `json:"fullName" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
	PhoneNumber  string `json:"phoneNumber" validate:"required"`
	BusinessName string `json:"businessName" validate:"required"`
	Location     string `json:"location" validate:"required"`
}

type RegisterSellerInput struct {
	UserName    string `json:"userName" validate:"required"`
	License     string `json:"license" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	Region      string `json:"region" validate:"required"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResult struct {
	Token     string      `json:"token"`
	UserName  string      `json:"userName"`
	Role      models.Role `json:"role"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

type AccountService struct {
	users UserStore
	ids   Identity
	now   Clock
	log   *slog.Logger
}

func NewAccountService(users UserStore, ids Identity, log *slog.Logger) *AccountService {
	return &AccountService{
		users: users,
		ids:   ids,
		now:   systemClock,
		log:   log.With("component", "accounts"),
	}
}

func (s *AccountService) RegisterBuyer(ctx context.Context, in RegisterBuyerInput) (*models.User, error) {
	trim(&in.UserName, &in.FullName, &in.Email, &in.PhoneNumber, &in.BusinessName, &in.Location)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if !phonePattern.MatchString(in.PhoneNumber) {
		return nil, invalid("phoneNumber", "must be a valid phone number")
	}
	u := &models.User{
		UserName:     in.UserName,
		FullName:     in.FullName,
		Email:        in.Email,
		PhoneNumber:  in.PhoneNumber,
		Role:         models.RoleBuyer,
		BusinessName: in.BusinessName,
		Location:     in.Location,
	}
	if err := s.register(ctx, u, in.Password); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AccountService) RegisterSeller(ctx context.Context, in RegisterSellerInput) (*models.User, error) {
	trim(&in.UserName, &in.License, &in.Email, &in.PhoneNumber, &in.Region)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if !phonePattern.MatchString(in.PhoneNumber) {
		return nil, invalid("phoneNumber", "must be a valid phone number")
	}
	region, ok := models.NormalizeRegion(in.Region)
	if !ok {
		return nil, invalid("region", "is not a known region")
	}
	u := &models.User{
		UserName:    in.UserName,
		Email:       in.Email,
		PhoneNumber: in.PhoneNumber,
		Role:        models.RoleSeller,
		License:     in.License,
		Region:      region,
	}
	if err := s.register(ctx, u, in.Password); err != nil {
		return nil, err
	}
	return u, nil
}

// register создаёт учётную запись, затем профиль. Если профиль не записался,
// учётная запись удаляется.
func (s *AccountService) register(ctx context.Context, u *models.User, password string) error {
	if _, err := s.users.GetUser(ctx, u.UserName); err == nil {
		return conflict("user name already taken")
	} else if !errors.Is(err, db.ErrNotFound) {
		return storeErr("get user", err, false)
	}

	accountID, err := s.ids.CreateAccount(ctx, u.Email, password)
	switch {
	case errors.Is(err, identity.ErrEmailTaken):
		return conflict("email already registered")
	case errors.Is(err, identity.ErrWeakPassword):
		return invalid("password", "must be 8 to 72 bytes")
	case err != nil:
		return storeErr("create account", err, true)
	}

	u.AccountID = accountID
	u.CreatedAt = s.now()
	if err := s.users.CreateUser(ctx, u); err != nil {
		if derr := s.ids.DeleteAccount(context.WithoutCancel(ctx), accountID); derr != nil {
			s.log.Error("account rollback failed", "account_id", accountID, "error", derr)
		}
		if errors.Is(err, db.ErrDuplicate) {
			return conflict("user name already taken")
		}
		return storeErr("create user", err, true)
	}
	return nil
}

func (s *AccountService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	trim(&in.Email)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	accountID, err := s.ids.VerifyCredentials(ctx, in.Email, in.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		return nil, ErrAuth
	}
	if err != nil {
		return nil, storeErr("verify credentials", err, false)
	}
	u, err := s.users.GetUserByAccount(ctx, accountID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrAuth
	}
	if err != nil {
		return nil, storeErr("get user", err, false)
	}
	token, exp, err := s.ids.IssueToken(accountID, u.UserName)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &LoginResult{Token: token, UserName: u.UserName, Role: u.Role, ExpiresAt: exp}, nil
}
