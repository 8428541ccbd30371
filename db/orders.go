package db

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"agrimarket/models"
)

const orderColumns = `id, quantity, quality, region, loading_date, delivery_location, user_name,
        status, accepted_bid_id, created_at, updated_at`

// OrderFilter - фильтры выборки заказов, пустые поля не участвуют.
type OrderFilter struct {
	UserName string
	Statuses []models.OrderStatus
	Region   string
}

func (s *Storage) CreateOrder(ctx context.Context, o *models.Order) error {
	o.CreatedAt = utc(o.CreatedAt)
	o.UpdatedAt = utc(o.UpdatedAt)
	query := s.rebind(`
        INSERT INTO orders
            (id, quantity, quality, region, loading_date, delivery_location, user_name, status, created_at, updated_at)
        VALUES
            (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		o.ID, o.Quantity, o.Quality, o.Region, o.LoadingDate, o.DeliveryLocation,
		o.UserName, o.Status, o.CreatedAt, o.UpdatedAt)
	return err
}

func (s *Storage) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	o := &models.Order{}
	query := s.rebind(`SELECT ` + orderColumns + ` FROM orders WHERE id = ?`)
	if err := s.db.GetContext(ctx, o, query, id); err != nil {
		return nil, notFound(err)
	}
	return o, nil
}

// ListOrders возвращает заказы от новых к старым.
func (s *Storage) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	var (
		where []string
		args  []any
	)
	if f.UserName != "" {
		where = append(where, "user_name = ?")
		args = append(args, f.UserName)
	}
	if f.Region != "" {
		where = append(where, "region = ?")
		args = append(args, f.Region)
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN (?)")
		args = append(args, f.Statuses)
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	if len(f.Statuses) > 0 {
		var err error
		query, args, err = sqlx.In(query, args...)
		if err != nil {
			return nil, err
		}
	}

	orders := []models.Order{}
	if err := s.db.SelectContext(ctx, &orders, s.rebind(query), args...); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrderStatus меняет только статус и updated_at. Заказ с принятым
// предложением открыть заново нельзя: вернётся ErrConflict.
func (s *Storage) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, now time.Time) error {
	query := `UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`
	if status == models.StatusOpen {
		query += ` AND accepted_bid_id IS NULL`
	}
	res, err := s.db.ExecContext(ctx, s.rebind(query), status, utc(now), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := s.GetOrder(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}

// AcceptBid закрывает заказ выбранным предложением. Условие в WHERE гарантирует,
// что принятое предложение у заказа может быть только одно. false - условие не выполнено.
func (s *Storage) AcceptBid(ctx context.Context, orderID, bidID string, notBefore, now time.Time) (bool, error) {
	query := s.rebind(`
        UPDATE orders
        SET status = ?, accepted_bid_id = ?, updated_at = ?
        WHERE id = ?
          AND status = ?
          AND accepted_bid_id IS NULL
          AND created_at >= ?
          AND EXISTS (SELECT 1 FROM bids WHERE bids.id = ? AND bids.order_id = ?)`)
	res, err := s.db.ExecContext(ctx, query,
		models.StatusClosed, bidID, utc(now),
		orderID, models.StatusOpen, utc(notBefore),
		bidID, orderID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ExpireOrders переводит просроченные открытые заказы в EXPIRED.
func (s *Storage) ExpireOrders(ctx context.Context, createdBefore, now time.Time) (int64, error) {
	query := s.rebind(`
        UPDATE orders
        SET status = ?, updated_at = ?
        WHERE status = ? AND accepted_bid_id IS NULL AND created_at < ?`)
	res, err := s.db.ExecContext(ctx, query, models.StatusExpired, utc(now), models.StatusOpen, utc(createdBefore))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
