package services

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"agrimarket/models"
)

const defaultAudioMessage = "No message"

// InboxCache - кэш свёрнутого списка диалогов. Ошибки кэша не ломают запрос.
// gen из GetInbox передаётся в SetInbox: если между ними была инвалидация,
// запись пропускается и устаревший список в кэш не попадает.
type InboxCache interface {
	GetInbox(ctx context.Context, userName string) (entries []models.InboxEntry, gen int64, ok bool, err error)
	SetInbox(ctx context.Context, userName string, gen int64, entries []models.InboxEntry) error
	Invalidate(ctx context.Context, userNames ...string) error
}

// SendMessageInput - тело POST /api/chats.
type SendMessageInput struct {
	SenderUserName   string            `json:"senderUserName" validate:"required"`
	ReceiverUserName string            `json:"receiverUserName" validate:"required"`
	Message          string            `json:"message"`
	Type             *models.ChatType  `json:"type" validate:"required"`
	AudioChat        *models.AudioChat `json:"audioChat"`
}

type ChatService struct {
	store ChatStore
	cache InboxCache
	now   Clock
	log   *slog.Logger
}

// NewChatService. cache может быть nil.
func NewChatService(store ChatStore, cache InboxCache, log *slog.Logger) *ChatService {
	return &ChatService{
		store: store,
		cache: cache,
		now:   systemClock,
		log:   log.With("component", "chats"),
	}
}

func (s *ChatService) WithClock(c Clock) *ChatService {
	s.now = c
	return s
}

func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*models.ChatMessage, error) {
	trim(&in.SenderUserName, &in.ReceiverUserName, &in.Message)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	msg := models.ChatMessage{
		SenderUserName:   in.SenderUserName,
		ReceiverUserName: in.ReceiverUserName,
		Message:          in.Message,
		Type:             *in.Type,
	}
	switch *in.Type {
	case models.ChatText:
		if msg.Message == "" {
			return nil, invalid("message", "is required for text messages")
		}
	case models.ChatAudio:
		if in.AudioChat == nil || !isHTTPURL(in.AudioChat.Audio) {
			return nil, invalid("audioChat.audio", "must be an absolute http(s) URL")
		}
		msg.AudioChat = &models.AudioChat{Audio: strings.TrimSpace(in.AudioChat.Audio)}
		if msg.Message == "" {
			msg.Message = defaultAudioMessage
		}
	default:
		return nil, invalid("type", "must be 0 (text) or 1 (audio)")
	}
	if err := checkActor(ctx, in.SenderUserName); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, storeErr("generate message id", err, false)
	}
	msg.ID = id.String()
	msg.CreatedAt = s.now()
	if err := s.store.CreateChat(ctx, &msg); err != nil {
		return nil, storeErr("create chat", err, true)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, msg.SenderUserName, msg.ReceiverUserName); err != nil {
			s.log.Warn("inbox cache invalidation failed", "error", err)
		}
	}
	return &msg, nil
}

// ListConversation симметрична: (a, b) и (b, a) дают одно и то же.
func (s *ChatService) ListConversation(ctx context.Context, a, b string) ([]models.ChatMessage, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" {
		return nil, invalid("senderUserName", "is required")
	}
	if b == "" {
		return nil, invalid("receiverUserName", "is required")
	}
	msgs, err := s.store.ListConversation(ctx, a, b)
	if err != nil {
		return nil, storeErr("list conversation", err, false)
	}
	return msgs, nil
}

// ListInbox - по одной записи на собеседника, свежие диалоги первыми.
func (s *ChatService) ListInbox(ctx context.Context, userName string) ([]models.InboxEntry, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" {
		return nil, invalid("username", "is required")
	}
	cacheable := false
	var gen int64
	if s.cache != nil {
		entries, g, ok, err := s.cache.GetInbox(ctx, userName)
		switch {
		case err != nil:
			s.log.Warn("inbox cache read failed", "error", err)
		case ok:
			return entries, nil
		default:
			cacheable, gen = true, g
		}
	}

	msgs, err := s.store.ListUserChats(ctx, userName)
	if err != nil {
		return nil, storeErr("list user chats", err, false)
	}
	entries := CollapseInbox(userName, msgs)

	if cacheable {
		if err := s.cache.SetInbox(ctx, userName, gen, entries); err != nil {
			s.log.Warn("inbox cache write failed", "error", err)
		}
	}
	return entries, nil
}

// CollapseInbox ждёт сообщения от новых к старым и оставляет первое по каждому собеседнику.
func CollapseInbox(userName string, msgs []models.ChatMessage) []models.InboxEntry {
	seen := make(map[string]struct{})
	entries := []models.InboxEntry{}
	for _, m := range msgs {
		other := m.SenderUserName
		if other == userName {
			other = m.ReceiverUserName
		}
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		entries = append(entries, models.InboxEntry{
			Counterparty:  other,
			LastMessage:   m.Message,
			LastTimestamp: m.CreatedAt,
			IsAudio:       m.Type == models.ChatAudio,
		})
	}
	return entries
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
