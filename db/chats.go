package db

import (
	"context"

	"agrimarket/models"
)

const chatColumns = `id, sender_user_name, receiver_user_name, message, type, audio_chat, created_at`

// CreateChat дописывает сообщение в журнал, сообщения не изменяются и не удаляются.
func (s *Storage) CreateChat(ctx context.Context, m *models.ChatMessage) error {
	m.CreatedAt = utc(m.CreatedAt)
	query := s.rebind(`
        INSERT INTO chats (` + chatColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.SenderUserName, m.ReceiverUserName, m.Message, m.Type, m.AudioChat, m.CreatedAt)
	return err
}

// ListConversation - переписка двух пользователей в хронологическом порядке.
func (s *Storage) ListConversation(ctx context.Context, a, b string) ([]models.ChatMessage, error) {
	query := s.rebind(`
        SELECT ` + chatColumns + `
        FROM chats
        WHERE (sender_user_name = ? AND receiver_user_name = ?)
           OR (sender_user_name = ? AND receiver_user_name = ?)
        ORDER BY created_at ASC, id ASC`)
	chats := []models.ChatMessage{}
	if err := s.db.SelectContext(ctx, &chats, query, a, b, b, a); err != nil {
		return nil, err
	}
	return chats, nil
}

// ListUserChats - все сообщения пользователя, от новых к старым.
func (s *Storage) ListUserChats(ctx context.Context, userName string) ([]models.ChatMessage, error) {
	query := s.rebind(`
        SELECT ` + chatColumns + `
        FROM chats
        WHERE sender_user_name = ? OR receiver_user_name = ?
        ORDER BY created_at DESC, id DESC`)
	chats := []models.ChatMessage{}
	if err := s.db.SelectContext(ctx, &chats, query, userName, userName); err != nil {
		return nil, err
	}
	return chats, nil
}
