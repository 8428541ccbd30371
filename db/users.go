package db

import (
	"context"

	"agrimarket/models"
)

// Account (учётная запись Identity Gateway)

func (s *Storage) CreateAccount(ctx context.Context, a *models.Account) error {
	a.CreatedAt = utc(a.CreatedAt)
	query := s.rebind(`
        INSERT INTO accounts (id, email, password_hash, created_at)
        VALUES (?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, a.ID, a.Email, a.PasswordHash, a.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	a := &models.Account{}
	query := s.rebind(`SELECT id, email, password_hash, created_at FROM accounts WHERE email = ?`)
	if err := s.db.GetContext(ctx, a, query, email); err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (s *Storage) DeleteAccount(ctx context.Context, id string) error {
	query := s.rebind(`DELETE FROM accounts WHERE id = ?`)
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

// User (покупатель или продавец)

func (s *Storage) CreateUser(ctx context.Context, u *models.User) error {
	u.CreatedAt = utc(u.CreatedAt)
	query := s.rebind(`
        INSERT INTO users
            (user_name, full_name, email, phone_number, role, business_name, location, license, region, account_id, created_at)
        VALUES
            (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		u.UserName, u.FullName, u.Email, u.PhoneNumber, u.Role,
		u.BusinessName, u.Location, u.License, u.Region, u.AccountID, u.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *Storage) GetUser(ctx context.Context, userName string) (*models.User, error) {
	u := &models.User{}
	query := s.rebind(`
        SELECT user_name, full_name, email, phone_number, role, business_name, location, license, region, account_id, created_at
        FROM users WHERE user_name = ?`)
	if err := s.db.GetContext(ctx, u, query, userName); err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (s *Storage) GetUserByAccount(ctx context.Context, accountID string) (*models.User, error) {
	u := &models.User{}
	query := s.rebind(`
        SELECT user_name, full_name, email, phone_number, role, business_name, location, license, region, account_id, created_at
        FROM users WHERE account_id = ?`)
	if err := s.db.GetContext(ctx, u, query, accountID); err != nil {
		return nil, notFound(err)
	}
	return u, nil
}
