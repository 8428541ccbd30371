package db

import (
	"context"

	"agrimarket/models"
)

// CreateBid вставляет предложение, только если заказ ещё существует.
func (s *Storage) CreateBid(ctx context.Context, b *models.Bid) error {
	b.CreatedAt = utc(b.CreatedAt)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.GetContext(ctx, &exists, tx.Rebind(`SELECT COUNT(1) FROM orders WHERE id = ?`), b.OrderID)
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	query := tx.Rebind(`
        INSERT INTO bids (id, order_id, user_name, amount, pic, license, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err = tx.ExecContext(ctx, query,
		b.ID, b.OrderID, b.UserName, b.Amount, b.Pic, b.License, b.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return err
	}
	return tx.Commit()
}

func (s *Storage) GetBid(ctx context.Context, id string) (*models.Bid, error) {
	b := &models.Bid{}
	query := s.rebind(`
        SELECT id, order_id, user_name, amount, pic, license, created_at
        FROM bids WHERE id = ?`)
	if err := s.db.GetContext(ctx, b, query, id); err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

// ListBidsForOrder - предложения по заказу от новых к старым вместе с данными продавца.
func (s *Storage) ListBidsForOrder(ctx context.Context, orderID string) ([]models.Bid, error) {
	query := s.rebind(`
        SELECT b.id, b.order_id, b.user_name, b.amount, b.pic, b.license, b.created_at,
               COALESCE(u.full_name, '') AS seller_name,
               COALESCE(u.region, '') AS seller_region
        FROM bids b
        LEFT JOIN users u ON u.user_name = b.user_name
        WHERE b.order_id = ?
        ORDER BY b.created_at DESC, b.id DESC`)
	bids := []models.Bid{}
	if err := s.db.SelectContext(ctx, &bids, query, orderID); err != nil {
		return nil, err
	}
	return bids, nil
}
