package services_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"agrimarket/db"
	"agrimarket/db/dbtest"
	"agrimarket/internal/attachments"
	"agrimarket/internal/logging"
	"agrimarket/internal/services"
	"agrimarket/models"
)

// fakeFiles - хранилище вложений в памяти. Падает на данных, равных failOn.
type fakeFiles struct {
	mu       sync.Mutex
	failOn   []byte
	uploaded []string
	deleted  []string
}

func (f *fakeFiles) Upload(ctx context.Context, folder string, data []byte, contentType string) (attachments.Attachment, error) {
	if f.failOn != nil && bytes.Equal(data, f.failOn) {
		return attachments.Attachment{}, errors.New("upstream unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%s/%s", folder, data)
	f.uploaded = append(f.uploaded, key)
	return attachments.Attachment{URL: "https://cdn.example.com/" + key, Key: key, ResourceType: "image"}, nil
}

func (f *fakeFiles) Delete(ctx context.Context, a attachments.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, a.Key)
	return nil
}

func (f *fakeFiles) snapshot() (uploaded, deleted []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uploaded = append([]string(nil), f.uploaded...)
	deleted = append([]string(nil), f.deleted...)
	sort.Strings(uploaded)
	sort.Strings(deleted)
	return uploaded, deleted
}

// failingBids отказывает на записи предложения.
type failingBids struct {
	*db.Storage
}

func (f failingBids) CreateBid(ctx context.Context, b *models.Bid) error {
	return errors.New("disk full")
}

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

type bidFixture struct {
	store  *db.Storage
	files  *fakeFiles
	bids   *services.BidService
	orders *services.OrderService
	clock  *clock
}

func newBidFixture(t *testing.T) *bidFixture {
	store := dbtest.NewStorage(t)
	c := &clock{t: base}
	files := &fakeFiles{}
	return &bidFixture{
		store:  store,
		files:  files,
		clock:  c,
		bids:   services.NewBidService(store, files, 24*time.Hour, time.Second, logging.Discard()).WithClock(c.Now),
		orders: services.NewOrderService(store, 24*time.Hour, nil, logging.Discard()).WithClock(c.Now),
	}
}

func (f *bidFixture) openOrder(t *testing.T) string {
	t.Helper()
	o, err := f.orders.CreateOrder(context.Background(), validOrder("buyer1"))
	require.NoError(t, err)
	return o.ID
}

func TestSubmitBidWithAttachments(t *testing.T) {
	f := newBidFixture(t)
	ctx := context.Background()
	orderID := f.openOrder(t)

	bid, err := f.bids.SubmitBid(ctx, services.SubmitBidInput{
		OrderID:     orderID,
		UserName:    "seller1",
		Amount:      amount("1500.50"),
		Attachments: [][]byte{[]byte("img-1"), []byte("img-2")},
		License:     "LIC-42",
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://cdn.example.com/images/PRODUCT/img-1",
		"https://cdn.example.com/images/PRODUCT/img-2",
	}, bid.Pic.Images)

	bids, err := f.bids.ListBids(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	require.Len(t, bids[0].Pic.Images, 2)
	require.True(t, bids[0].Amount.Equal(decimal.RequireFromString("1500.5")))
}

func TestSubmitBidWithoutAttachments(t *testing.T) {
	f := newBidFixture(t)
	orderID := f.openOrder(t)

	bid, err := f.bids.SubmitBid(context.Background(), services.SubmitBidInput{
		OrderID:  orderID,
		UserName: "seller1",
		Amount:   amount("900"),
		License:  "LIC-42",
	})
	require.NoError(t, err)
	require.Empty(t, bid.Pic.Images)

	uploaded, _ := f.files.snapshot()
	require.Empty(t, uploaded)
}

func TestSubmitBidUploadFailureWritesNothing(t *testing.T) {
	f := newBidFixture(t)
	ctx := context.Background()
	orderID := f.openOrder(t)
	f.files.failOn = []byte("img-3")

	_, err := f.bids.SubmitBid(ctx, services.SubmitBidInput{
		OrderID:  orderID,
		UserName: "seller1",
		Amount:   amount("1500"),
		Attachments: [][]byte{
			[]byte("img-1"), []byte("img-2"), []byte("img-3"), []byte("img-4"), []byte("img-5"),
		},
		License: "LIC-42",
	})
	require.ErrorIs(t, err, services.ErrUpload)

	bids, err := f.store.ListBidsForOrder(ctx, orderID)
	require.NoError(t, err)
	require.Empty(t, bids)

	uploaded, deleted := f.files.snapshot()
	require.Equal(t, uploaded, deleted)
}

func TestSubmitBidWriteFailureCleansUp(t *testing.T) {
	f := newBidFixture(t)
	ctx := context.Background()
	orderID := f.openOrder(t)
	svc := services.NewBidService(failingBids{f.store}, f.files, 24*time.Hour, time.Second, logging.Discard()).WithClock(f.clock.Now)

	_, err := svc.SubmitBid(ctx, services.SubmitBidInput{
		OrderID:     orderID,
		UserName:    "seller1",
		Amount:      amount("1500"),
		Attachments: [][]byte{[]byte("img-1"), []byte("img-2")},
		License:     "LIC-42",
	})
	require.ErrorIs(t, err, services.ErrPersistence)

	uploaded, deleted := f.files.snapshot()
	require.Len(t, uploaded, 2)
	require.Equal(t, uploaded, deleted)
}

func TestSubmitBidOnClosedOrder(t *testing.T) {
	f := newBidFixture(t)
	ctx := context.Background()
	orderID := f.openOrder(t)
	_, err := f.orders.UpdateOrderStatus(ctx, orderID, "CLOSED")
	require.NoError(t, err)

	_, err = f.bids.SubmitBid(ctx, services.SubmitBidInput{
		OrderID:     orderID,
		UserName:    "seller1",
		Amount:      amount("1500"),
		Attachments: [][]byte{[]byte("img-1")},
		License:     "LIC-42",
	})
	require.ErrorIs(t, err, services.ErrConflict)

	uploaded, _ := f.files.snapshot()
	require.Empty(t, uploaded)
}

func TestSubmitBidOnExpiredOrder(t *testing.T) {
	f := newBidFixture(t)
	orderID := f.openOrder(t)
	f.clock.Advance(25 * time.Hour)

	_, err := f.bids.SubmitBid(context.Background(), services.SubmitBidInput{
		OrderID:  orderID,
		UserName: "seller1",
		Amount:   amount("1500"),
		License:  "LIC-42",
	})
	require.ErrorIs(t, err, services.ErrConflict)
}

func TestSubmitBidUnknownOrder(t *testing.T) {
	f := newBidFixture(t)

	_, err := f.bids.SubmitBid(context.Background(), services.SubmitBidInput{
		OrderID:  "missing",
		UserName: "seller1",
		Amount:   amount("1500"),
		License:  "LIC-42",
	})
	require.ErrorIs(t, err, services.ErrNotFound)
}

func TestSubmitBidValidation(t *testing.T) {
	six := make([][]byte, 6)
	for i := range six {
		six[i] = []byte{byte('a' + i)}
	}
	cases := map[string]services.SubmitBidInput{
		"no order":         {UserName: "s", Amount: amount("1"), License: "L"},
		"no user":          {OrderID: "o", Amount: amount("1"), License: "L"},
		"no amount":        {OrderID: "o", UserName: "s", License: "L"},
		"zero amount":      {OrderID: "o", UserName: "s", Amount: amount("0"), License: "L"},
		"negative amount":  {OrderID: "o", UserName: "s", Amount: amount("-10"), License: "L"},
		"no license":       {OrderID: "o", UserName: "s", Amount: amount("1")},
		"too many images":  {OrderID: "o", UserName: "s", Amount: amount("1"), License: "L", Attachments: six},
		"empty image":      {OrderID: "o", UserName: "s", Amount: amount("1"), License: "L", Attachments: [][]byte{{}}},
		"image too large":  {OrderID: "o", UserName: "s", Amount: amount("1"), License: "L", Attachments: [][]byte{make([]byte, services.MaxAttachmentBytes+1)}},
		"whitespace order": {OrderID: "  ", UserName: "s", Amount: amount("1"), License: "L"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			f := newBidFixture(t)
			_, err := f.bids.SubmitBid(context.Background(), in)
			require.ErrorIs(t, err, services.ErrValidation)
		})
	}
}

func TestListBidsRequiresOrderID(t *testing.T) {
	f := newBidFixture(t)
	_, err := f.bids.ListBids(context.Background(), " ")
	require.ErrorIs(t, err, services.ErrValidation)
}

func TestSortBids(t *testing.T) {
	bids := []models.Bid{
		{ID: "a", Amount: decimal.NewFromInt(300), CreatedAt: base.Add(1 * time.Minute)},
		{ID: "b", Amount: decimal.NewFromInt(100), CreatedAt: base.Add(3 * time.Minute)},
		{ID: "c", Amount: decimal.NewFromInt(200), CreatedAt: base.Add(2 * time.Minute)},
	}
	ids := func() []string {
		out := make([]string, len(bids))
		for i, b := range bids {
			out[i] = b.ID
		}
		return out
	}

	require.NoError(t, services.SortBids(bids, "amount", "asc"))
	require.Equal(t, []string{"b", "c", "a"}, ids())

	require.NoError(t, services.SortBids(bids, "amount", ""))
	require.Equal(t, []string{"a", "c", "b"}, ids())

	require.NoError(t, services.SortBids(bids, "date", "asc"))
	require.Equal(t, []string{"a", "c", "b"}, ids())

	require.NoError(t, services.SortBids(bids, "", ""))
	require.Equal(t, []string{"a", "c", "b"}, ids())

	require.ErrorIs(t, services.SortBids(bids, "price", ""), services.ErrValidation)
	require.ErrorIs(t, services.SortBids(bids, "date", "up"), services.ErrValidation)
}
