package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"bakery/internal/middleware"
	"bakery/internal/model"
	"bakery/internal/pricing"
	"bakery/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

const testUserID = "11111111-1111-1111-1111-111111111111"

// withUser stands in for AuthMiddleware.
func withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), middleware.UserContextKey, testUserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func newRouter(register func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	register(r)
	return r
}

var (
	nopLogger = zerolog.Nop()
	errBoom   = errors.New("boom")
)

type fakeUserService struct {
	register func(context.Context, service.RegisterInput) (*model.User, error)
	login    func(context.Context, string, string) (*service.LoginResult, error)
	session  func(context.Context, string) (*service.Session, error)
	get      func(context.Context, string) (*model.User, error)
}

func (f *fakeUserService) Register(ctx context.Context, in service.RegisterInput) (*model.User, error) {
	return f.register(ctx, in)
}

func (f *fakeUserService) Login(ctx context.Context, email, password string) (*service.LoginResult, error) {
	return f.login(ctx, email, password)
}

func (f *fakeUserService) Session(ctx context.Context, userID string) (*service.Session, error) {
	return f.session(ctx, userID)
}

func (f *fakeUserService) Get(ctx context.Context, id string) (*model.User, error) {
	return f.get(ctx, id)
}

type fakeCreditService struct {
	balance      func(context.Context, string) (*service.Balance, error)
	transactions func(context.Context, string, int, int) ([]model.CreditTransaction, error)
	quote        func(context.Context, string, json.RawMessage) (*pricing.Quote, error)
	use          func(context.Context, string, service.UseInput) (*service.UseResult, error)
	purchase     func(context.Context, string, string) (*service.PurchaseResult, error)
}

func (f *fakeCreditService) Balance(ctx context.Context, userID string) (*service.Balance, error) {
	return f.balance(ctx, userID)
}

func (f *fakeCreditService) Transactions(ctx context.Context, userID string, limit, offset int) ([]model.CreditTransaction, error) {
	return f.transactions(ctx, userID, limit, offset)
}

func (f *fakeCreditService) Quote(ctx context.Context, op string, params json.RawMessage) (*pricing.Quote, error) {
	return f.quote(ctx, op, params)
}

func (f *fakeCreditService) Use(ctx context.Context, userID string, in service.UseInput) (*service.UseResult, error) {
	return f.use(ctx, userID, in)
}

func (f *fakeCreditService) Purchase(ctx context.Context, userID, packID string) (*service.PurchaseResult, error) {
	return f.purchase(ctx, userID, packID)
}

type fakeSubscriptionService struct {
	create      func(context.Context, string, service.CreateSubscriptionInput) (*service.CreateSubscriptionResult, error)
	cancel      func(context.Context, string, string) (*model.Subscription, error)
	status      func(context.Context, string) (*service.SubscriptionStatus, error)
	listForUser func(context.Context, string, string) ([]model.Subscription, error)
}

func (f *fakeSubscriptionService) Create(ctx context.Context, userID string, in service.CreateSubscriptionInput) (*service.CreateSubscriptionResult, error) {
	return f.create(ctx, userID, in)
}

func (f *fakeSubscriptionService) Cancel(ctx context.Context, userID, subscriptionID string) (*model.Subscription, error) {
	return f.cancel(ctx, userID, subscriptionID)
}

func (f *fakeSubscriptionService) Status(ctx context.Context, userID string) (*service.SubscriptionStatus, error) {
	return f.status(ctx, userID)
}

func (f *fakeSubscriptionService) ListForUser(ctx context.Context, requesterID, userID string) ([]model.Subscription, error) {
	return f.listForUser(ctx, requesterID, userID)
}

type fakeMediaService struct {
	list      func(context.Context, string, int, int) ([]model.Media, error)
	get       func(context.Context, string, string) (*service.MediaView, error)
	uploadURL func(context.Context, string, string) (*service.UploadURL, error)
}

func (f *fakeMediaService) List(ctx context.Context, userID string, limit, offset int) ([]model.Media, error) {
	return f.list(ctx, userID, limit, offset)
}

func (f *fakeMediaService) Get(ctx context.Context, userID, mediaID string) (*service.MediaView, error) {
	return f.get(ctx, userID, mediaID)
}

func (f *fakeMediaService) UploadURL(ctx context.Context, userID, filename string) (*service.UploadURL, error) {
	return f.uploadURL(ctx, userID, filename)
}

type fakeProcessor struct {
	err    error
	events []stripe.Event
}

func (f *fakeProcessor) HandleEvent(_ context.Context, event stripe.Event) error {
	f.events = append(f.events, event)
	return f.err
}

type memDeduper struct {
	claimed  map[string]bool
	released []string
}

func newMemDeduper() *memDeduper { return &memDeduper{claimed: map[string]bool{}} }

func (d *memDeduper) Claim(_ context.Context, id string) (bool, error) {
	if d.claimed[id] {
		return false, nil
	}
	d.claimed[id] = true
	return true, nil
}

func (d *memDeduper) Release(_ context.Context, id string) error {
	delete(d.claimed, id)
	d.released = append(d.released, id)
	return nil
}
