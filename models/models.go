package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultRFQTTL - срок действия запроса котировок ("RFQ valid for 24 hours").
const DefaultRFQTTL = 24 * time.Hour

// Сущность Заказа (RFQ)
type Order struct {
	ID               string      `db:"id" json:"id"`
	Quantity         int         `db:"quantity" json:"quantity"`
	Quality          Quality     `db:"quality" json:"quality"`
	Region           string      `db:"region" json:"region"`
	LoadingDate      string      `db:"loading_date" json:"loadingDate"`
	DeliveryLocation string      `db:"delivery_location" json:"deliveryLocation"`
	UserName         string      `db:"user_name" json:"userName"`
	Status           OrderStatus `db:"status" json:"status"`
	AcceptedBidID    *string     `db:"accepted_bid_id" json:"acceptedBidId"`
	CreatedAt        time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updatedAt"`
}

// ExpiresAt возвращает момент истечения RFQ.
func (o *Order) ExpiresAt(ttl time.Duration) time.Time {
	return o.CreatedAt.Add(ttl)
}

// IsExpired вычисляется при чтении: фоновая очистка может ещё не успеть сменить статус.
func (o *Order) IsExpired(now time.Time, ttl time.Duration) bool {
	switch o.Status {
	case StatusExpired:
		return true
	case StatusOpen:
		return o.AcceptedBidID == nil && now.After(o.ExpiresAt(ttl))
	default:
		return false
	}
}

// Сущность Предложения
type Bid struct {
	ID        string          `db:"id" json:"id"`
	OrderID   string          `db:"order_id" json:"orderId"`
	UserName  string          `db:"user_name" json:"userName"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Pic       Pictures        `db:"pic" json:"pic"`
	License   string          `db:"license" json:"license"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`

	// Поля продавца, подтягиваются JOIN'ом при выдаче списка
	SellerName   string `db:"seller_name" json:"sellerName"`
	SellerRegion string `db:"seller_region" json:"sellerRegion"`
}

// Pictures хранится в колонке pic как JSON {"images": [...]}.
type Pictures struct {
	Images []string `json:"images"`
}

func (p Pictures) Value() (driver.Value, error) {
	if p.Images == nil {
		p.Images = []string{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *Pictures) Scan(src any) error {
	return scanJSON(src, p)
}

// Сущность сообщения чата
type ChatMessage struct {
	ID               string     `db:"id" json:"id"`
	SenderUserName   string     `db:"sender_user_name" json:"senderUserName"`
	ReceiverUserName string     `db:"receiver_user_name" json:"receiverUserName"`
	Message          string     `db:"message" json:"message"`
	Type             ChatType   `db:"type" json:"type"`
	AudioChat        *AudioChat `db:"audio_chat" json:"audioChat,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
}

// AudioChat - ссылка на загруженный аудиофайл, {"audio": url}.
type AudioChat struct {
	Audio string `json:"audio"`
}

func (a AudioChat) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *AudioChat) Scan(src any) error {
	return scanJSON(src, a)
}

// InboxEntry - последняя переписка с одним собеседником.
type InboxEntry struct {
	Counterparty  string    `json:"counterparty"`
	LastMessage   string    `json:"lastMessage"`
	LastTimestamp time.Time `json:"lastTimestamp"`
	IsAudio       bool      `json:"isAudio"`
}

// Сущность Пользователя. Пароль здесь не хранится, только ссылка на учётную запись.
type User struct {
	UserName     string    `db:"user_name" json:"userName"`
	FullName     string    `db:"full_name" json:"fullName"`
	Email        string    `db:"email" json:"email"`
	PhoneNumber  string    `db:"phone_number" json:"phoneNumber"`
	Role         Role      `db:"role" json:"role"`
	BusinessName string    `db:"business_name" json:"businessName,omitempty"`
	Location     string    `db:"location" json:"location,omitempty"`
	License      string    `db:"license" json:"license,omitempty"`
	Region       string    `db:"region" json:"region,omitempty"`
	AccountID    string    `db:"account_id" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Учётная запись Identity Gateway
type Account struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

type Role string

const (
	RoleBuyer  Role = "BUYER"
	RoleSeller Role = "SELLER"
)

func scanJSON(src any, dest any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
	if len(b) == 0 {
		return errors.New("empty json column")
	}
	return json.Unmarshal(b, dest)
}
