package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"agrimarket/db"
	"agrimarket/db/dbtest"
	"agrimarket/internal/identity"
	"agrimarket/internal/logging"
	"agrimarket/internal/services"
	"agrimarket/models"
)

// fakeInbox - кэш диалогов в памяти с поколениями, запоминает сброшенных пользователей.
type fakeInbox struct {
	mu          sync.Mutex
	entries     map[string][]models.InboxEntry
	gens        map[string]int64
	invalidated []string
	getErr      error
}

func newFakeInbox() *fakeInbox {
	return &fakeInbox{entries: map[string][]models.InboxEntry{}, gens: map[string]int64{}}
}

func (f *fakeInbox) GetInbox(ctx context.Context, userName string) ([]models.InboxEntry, int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, 0, false, f.getErr
	}
	e, ok := f.entries[userName]
	return e, f.gens[userName], ok, nil
}

func (f *fakeInbox) SetInbox(ctx context.Context, userName string, gen int64, entries []models.InboxEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gens[userName] != gen {
		return nil
	}
	f.entries[userName] = entries
	return nil
}

func (f *fakeInbox) Invalidate(ctx context.Context, userNames ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range userNames {
		delete(f.entries, u)
		f.gens[u]++
		f.invalidated = append(f.invalidated, u)
	}
	return nil
}

// interleavedChats вызывает beforeList один раз, уже после того как
// список диалогов прочитан из базы.
type interleavedChats struct {
	*db.Storage
	once       sync.Once
	beforeList func()
}

func (s *interleavedChats) ListUserChats(ctx context.Context, userName string) ([]models.ChatMessage, error) {
	msgs, err := s.Storage.ListUserChats(ctx, userName)
	s.once.Do(s.beforeList)
	return msgs, err
}

func chatType(t models.ChatType) *models.ChatType { return &t }

func text(from, to, msg string) services.SendMessageInput {
	return services.SendMessageInput{
		SenderUserName:   from,
		ReceiverUserName: to,
		Message:          msg,
		Type:             chatType(models.ChatText),
	}
}

func newChatService(t *testing.T, cache services.InboxCache) (*services.ChatService, *clock) {
	c := &clock{t: base}
	svc := services.NewChatService(dbtest.NewStorage(t), cache, logging.Discard()).WithClock(c.Now)
	return svc, c
}

func TestConversationIsSymmetric(t *testing.T) {
	svc, c := newChatService(t, nil)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, text("alice", "bob", "Hi"))
	require.NoError(t, err)
	c.Advance(time.Minute)
	_, err = svc.SendMessage(ctx, text("bob", "alice", "Hello"))
	require.NoError(t, err)

	ab, err := svc.ListConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Len(t, ab, 2)
	require.Equal(t, "Hi", ab[0].Message)
	require.Equal(t, "Hello", ab[1].Message)

	ba, err := svc.ListConversation(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Equal(t, []string{ab[0].ID, ab[1].ID}, []string{ba[0].ID, ba[1].ID})

	inbox, err := svc.ListInbox(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	require.Equal(t, "bob", inbox[0].Counterparty)
	require.Equal(t, "Hello", inbox[0].LastMessage)
}

func TestListInboxOneEntryPerCounterparty(t *testing.T) {
	svc, c := newChatService(t, nil)
	ctx := context.Background()

	for _, in := range []services.SendMessageInput{
		text("alice", "bob", "t1"),
		text("bob", "alice", "t2"),
		text("alice", "carol", "t3"),
	} {
		_, err := svc.SendMessage(ctx, in)
		require.NoError(t, err)
		c.Advance(time.Minute)
	}

	inbox, err := svc.ListInbox(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	require.Equal(t, "carol", inbox[0].Counterparty)
	require.Equal(t, "t3", inbox[0].LastMessage)
	require.Equal(t, "bob", inbox[1].Counterparty)
	require.Equal(t, "t2", inbox[1].LastMessage)

	empty, err := svc.ListInbox(ctx, "dave")
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)
}

func TestCollapseInbox(t *testing.T) {
	msgs := []models.ChatMessage{
		{SenderUserName: "carol", ReceiverUserName: "alice", Message: "new", Type: models.ChatAudio, CreatedAt: base.Add(2 * time.Minute)},
		{SenderUserName: "alice", ReceiverUserName: "carol", Message: "old", CreatedAt: base.Add(time.Minute)},
		{SenderUserName: "alice", ReceiverUserName: "bob", Message: "hey", CreatedAt: base},
	}

	entries := services.CollapseInbox("alice", msgs)
	require.Equal(t, []models.InboxEntry{
		{Counterparty: "carol", LastMessage: "new", LastTimestamp: base.Add(2 * time.Minute), IsAudio: true},
		{Counterparty: "bob", LastMessage: "hey", LastTimestamp: base},
	}, entries)
}

func TestSendAudioMessage(t *testing.T) {
	svc, _ := newChatService(t, nil)
	ctx := context.Background()

	msg, err := svc.SendMessage(ctx, services.SendMessageInput{
		SenderUserName:   "alice",
		ReceiverUserName: "bob",
		Type:             chatType(models.ChatAudio),
		AudioChat:        &models.AudioChat{Audio: "https://cdn.example.com/audio/a.mp3"},
	})
	require.NoError(t, err)
	require.Equal(t, "No message", msg.Message)
	require.Equal(t, "https://cdn.example.com/audio/a.mp3", msg.AudioChat.Audio)

	conv, err := svc.ListConversation(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Len(t, conv, 1)
	require.NotNil(t, conv[0].AudioChat)
	require.Equal(t, models.ChatAudio, conv[0].Type)
}

func TestSendMessageValidation(t *testing.T) {
	cases := map[string]services.SendMessageInput{
		"no sender":     {ReceiverUserName: "bob", Message: "hi", Type: chatType(models.ChatText)},
		"no receiver":   {SenderUserName: "alice", Message: "hi", Type: chatType(models.ChatText)},
		"no type":       {SenderUserName: "alice", ReceiverUserName: "bob", Message: "hi"},
		"unknown type":  {SenderUserName: "alice", ReceiverUserName: "bob", Message: "hi", Type: chatType(5)},
		"empty text":    {SenderUserName: "alice", ReceiverUserName: "bob", Message: "  ", Type: chatType(models.ChatText)},
		"audio no url":  {SenderUserName: "alice", ReceiverUserName: "bob", Type: chatType(models.ChatAudio)},
		"audio bad url": {SenderUserName: "alice", ReceiverUserName: "bob", Type: chatType(models.ChatAudio), AudioChat: &models.AudioChat{Audio: "not a url"}},
		"audio ftp url": {SenderUserName: "alice", ReceiverUserName: "bob", Type: chatType(models.ChatAudio), AudioChat: &models.AudioChat{Audio: "ftp://host/a.mp3"}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			svc, _ := newChatService(t, nil)
			_, err := svc.SendMessage(context.Background(), in)
			require.ErrorIs(t, err, services.ErrValidation)

			conv, err := svc.ListConversation(context.Background(), "alice", "bob")
			require.NoError(t, err)
			require.Empty(t, conv)
		})
	}
}

func TestSendMessageAsOtherUser(t *testing.T) {
	svc, _ := newChatService(t, nil)
	ctx := identity.WithSession(context.Background(), &identity.Session{AccountID: "a1", UserName: "mallory"})

	_, err := svc.SendMessage(ctx, text("alice", "bob", "hi"))
	require.ErrorIs(t, err, services.ErrForbidden)
}

func TestSendMessageInvalidatesInbox(t *testing.T) {
	cache := newFakeInbox()
	svc, _ := newChatService(t, cache)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, text("alice", "bob", "t1"))
	require.NoError(t, err)
	inbox, err := svc.ListInbox(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, inbox, 1)

	// запись осталась в кэше
	_, _, ok, err := cache.GetInbox(ctx, "bob")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.SendMessage(ctx, text("carol", "bob", "t2"))
	require.NoError(t, err)
	require.Contains(t, cache.invalidated, "bob")
	require.Contains(t, cache.invalidated, "carol")

	inbox, err = svc.ListInbox(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, inbox, 2)
}

func TestListInboxSkipsStaleCacheWrite(t *testing.T) {
	cache := newFakeInbox()
	store := &interleavedChats{Storage: dbtest.NewStorage(t)}
	svc := services.NewChatService(store, cache, logging.Discard())
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, text("alice", "bob", "t1"))
	require.NoError(t, err)

	// новое сообщение приходит, пока опрос держит устаревший список
	store.beforeList = func() {
		_, err := svc.SendMessage(ctx, text("carol", "bob", "t2"))
		require.NoError(t, err)
	}
	stale, err := svc.ListInbox(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, stale, 1)

	_, _, ok, err := cache.GetInbox(ctx, "bob")
	require.NoError(t, err)
	require.False(t, ok)

	fresh, err := svc.ListInbox(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, fresh, 2)
}

func TestListInboxServedFromCache(t *testing.T) {
	cache := newFakeInbox()
	cached := []models.InboxEntry{{Counterparty: "zed", LastMessage: "cached", LastTimestamp: base}}
	require.NoError(t, cache.SetInbox(context.Background(), "alice", 0, cached))
	svc, _ := newChatService(t, cache)

	inbox, err := svc.ListInbox(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, cached, inbox)
}

func TestListInboxCacheFailureFallsBackToStore(t *testing.T) {
	cache := newFakeInbox()
	cache.getErr = errors.New("redis down")
	svc, _ := newChatService(t, cache)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, text("alice", "bob", "hi"))
	require.NoError(t, err)

	inbox, err := svc.ListInbox(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
}

func TestListConversationRequiresBothUsers(t *testing.T) {
	svc, _ := newChatService(t, nil)

	_, err := svc.ListConversation(context.Background(), "alice", "")
	require.ErrorIs(t, err, services.ErrValidation)
	_, err = svc.ListInbox(context.Background(), " ")
	require.ErrorIs(t, err, services.ErrValidation)
}
