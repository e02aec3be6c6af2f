package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"bakery/internal/billing"
	"bakery/internal/catalog"
	"bakery/internal/model"
	"bakery/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var errBoom = errors.New("boom")

func testLogger() zerolog.Logger { return zerolog.Nop() }

type fakeUserRepo struct {
	mu       sync.Mutex
	users    map[string]*model.User
	openings []*model.CreditTransaction
	err      error
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[string]*model.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) CreateUser(_ context.Context, u *model.User, opening *model.CreditTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return repository.ErrEmailTaken
		}
	}
	u.CreatedAt = time.Now()
	cp := *u
	r.users[u.ID] = &cp
	if opening != nil {
		r.openings = append(r.openings, opening)
	}
	return nil
}

func (r *fakeUserRepo) get(match func(*model.User) bool) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	return r.get(func(u *model.User) bool { return u.ID == id })
}

func (r *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	return r.get(func(u *model.User) bool { return u.Email == email })
}

func (r *fakeUserRepo) GetUserByStripeCustomerID(_ context.Context, customerID string) (*model.User, error) {
	return r.get(func(u *model.User) bool { return u.StripeCustomerID != nil && *u.StripeCustomerID == customerID })
}

func (r *fakeUserRepo) SetStripeCustomerID(_ context.Context, userID, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.StripeCustomerID = &customerID
	return nil
}

func (r *fakeUserRepo) UpdatePlan(_ context.Context, userID, plan string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Plan = plan
	return nil
}

func (r *fakeUserRepo) user(id string) *model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.users[id]
	return &cp
}

type fakeSubRepo struct {
	mu   sync.Mutex
	subs []*model.Subscription
	err  error
}

func (r *fakeSubRepo) find(match func(*model.Subscription) bool) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for i := len(r.subs) - 1; i >= 0; i-- {
		if match(r.subs[i]) {
			cp := *r.subs[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeSubRepo) GetSubscriptionByID(_ context.Context, id string) (*model.Subscription, error) {
	return r.find(func(s *model.Subscription) bool { return s.ID == id })
}

func (r *fakeSubRepo) GetSubscriptionByStripeID(_ context.Context, id string) (*model.Subscription, error) {
	return r.find(func(s *model.Subscription) bool { return s.StripeSubscriptionID == id })
}

func (r *fakeSubRepo) GetActiveSubscription(_ context.Context, userID string) (*model.Subscription, error) {
	return r.find(func(s *model.Subscription) bool { return s.UserID == userID && model.IsActiveStatus(s.Status) })
}

func (r *fakeSubRepo) ListSubscriptionsByUser(_ context.Context, userID string) ([]model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []model.Subscription
	for _, s := range r.subs {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeSubRepo) UpsertSubscription(_ context.Context, s *model.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, existing := range r.subs {
		if existing.StripeSubscriptionID == s.StripeSubscriptionID {
			s.ID, s.UserID = existing.ID, existing.UserID
			if s.CanceledAt == nil {
				s.CanceledAt = existing.CanceledAt
			}
			*existing = *s
			return nil
		}
	}
	cp := *s
	r.subs = append(r.subs, &cp)
	return nil
}

func (r *fakeSubRepo) UpdateStatus(_ context.Context, stripeID, status string, canceledAt *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	for _, s := range r.subs {
		if s.StripeSubscriptionID == stripeID {
			s.Status = status
			if canceledAt != nil {
				s.CanceledAt = canceledAt
			}
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeSubRepo) SetCancelAtPeriodEnd(_ context.Context, id string, cancel bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.ID == id {
			s.CancelAtPeriodEnd = cancel
			return nil
		}
	}
	return errors.New("no such subscription")
}

// fakeCreditRepo keeps balances on the fake user repository.
type fakeCreditRepo struct {
	mu      sync.Mutex
	users   *fakeUserRepo
	txs     []model.CreditTransaction
	media   []*model.Media
	refs    map[string]bool
	failFor map[string]bool

	lastLimit, lastOffset int
}

func newFakeCreditRepo(users *fakeUserRepo) *fakeCreditRepo {
	return &fakeCreditRepo{users: users, refs: map[string]bool{}, failFor: map[string]bool{}}
}

func (r *fakeCreditRepo) Debit(_ context.Context, d repository.UsageDebit) (model.Credits, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users.mu.Lock()
	defer r.users.mu.Unlock()

	u, ok := r.users.users[d.UserID]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	if u.Credits < d.Amount {
		return u.Credits, repository.ErrInsufficientCredits
	}
	u.Credits -= d.Amount
	t := model.CreditTransaction{ID: d.TransactionID, UserID: d.UserID, Amount: -d.Amount, Type: model.TransactionTypeUsage, Description: d.Description, Metadata: d.Metadata}
	if d.Media != nil {
		ref := d.Media.ID
		t.ReferenceID = &ref
		r.media = append(r.media, d.Media)
	}
	r.txs = append(r.txs, t)
	return u.Credits, nil
}

func (r *fakeCreditRepo) grantLocked(g repository.CreditGrant) (bool, error) {
	u, ok := r.users.users[g.UserID]
	if !ok {
		return false, repository.ErrUserNotFound
	}
	if g.ReferenceID != "" {
		key := g.Type + "|" + g.ReferenceID
		if r.refs[key] {
			return false, nil
		}
		r.refs[key] = true
	}
	u.Credits += g.Amount
	ref := g.ReferenceID
	r.txs = append(r.txs, model.CreditTransaction{ID: g.TransactionID, UserID: g.UserID, Amount: g.Amount, Type: g.Type, Description: g.Description, Metadata: g.Metadata, ReferenceID: &ref})
	return true, nil
}

func (r *fakeCreditRepo) Grant(_ context.Context, g repository.CreditGrant) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users.mu.Lock()
	defer r.users.mu.Unlock()
	return r.grantLocked(g)
}

func (r *fakeCreditRepo) TopUp(_ context.Context, g repository.CreditGrant, plan string, target model.Credits) (model.Credits, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users.mu.Lock()
	defer r.users.mu.Unlock()

	if r.failFor[g.UserID] {
		return 0, errBoom
	}
	u, ok := r.users.users[g.UserID]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	if u.Plan != plan || u.Credits >= target {
		return 0, nil
	}
	g.Amount = target - u.Credits
	applied, err := r.grantLocked(g)
	if err != nil || !applied {
		return 0, err
	}
	return g.Amount, nil
}

func (r *fakeCreditRepo) ListTransactions(_ context.Context, userID string, limit, offset int) ([]model.CreditTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastLimit, r.lastOffset = limit, offset
	var out []model.CreditTransaction
	for i := len(r.txs) - 1; i >= 0; i-- {
		if r.txs[i].UserID == userID {
			out = append(out, r.txs[i])
		}
	}
	return out, nil
}

func (r *fakeCreditRepo) ListTopUpCandidates(_ context.Context, plan string, target model.Credits, refPrefix, refSuffix, afterID string, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users.mu.Lock()
	defer r.users.mu.Unlock()

	var ids []string
	for id, u := range r.users.users {
		if id <= afterID || u.Plan != plan || u.Credits >= target {
			continue
		}
		if r.refs[model.TransactionTypeSubscriptionRenewal+"|"+refPrefix+id+refSuffix] {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *fakeCreditRepo) transactions(txType string) []model.CreditTransaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.CreditTransaction
	for _, t := range r.txs {
		if t.Type == txType {
			out = append(out, t)
		}
	}
	return out
}

type fakeCatalogRepo struct {
	plans    []model.SubscriptionPlan
	packs    []model.CreditPackage
	settings []model.CreditUsageSetting
	err      error
	replaced *catalog.Catalog
	calls    int
}

func (r *fakeCatalogRepo) ListActivePlans(context.Context) ([]model.SubscriptionPlan, error) {
	r.calls++
	return r.plans, r.err
}

func (r *fakeCatalogRepo) GetPlanByID(_ context.Context, planID string) (*model.SubscriptionPlan, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, p := range r.plans {
		if p.PlanID == planID {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeCatalogRepo) GetPlanByStripePriceID(_ context.Context, priceID string) (*model.SubscriptionPlan, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, p := range r.plans {
		if p.StripePriceID == priceID {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeCatalogRepo) ListActivePackages(context.Context) ([]model.CreditPackage, error) {
	r.calls++
	return r.packs, r.err
}

func (r *fakeCatalogRepo) GetPackageByID(_ context.Context, packID string) (*model.CreditPackage, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, p := range r.packs {
		if p.PackID == packID {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeCatalogRepo) ListActiveUsageSettings(context.Context) ([]model.CreditUsageSetting, error) {
	return r.settings, r.err
}

func (r *fakeCatalogRepo) GetUsageSetting(_ context.Context, modelID string) (*model.CreditUsageSetting, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, s := range r.settings {
		if s.ModelID == modelID {
			cp := s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeCatalogRepo) ReplaceCatalog(_ context.Context, c *catalog.Catalog) error {
	if r.err != nil {
		return r.err
	}
	r.replaced = c
	return nil
}

// emptyCatalog serves the built-in catalogue through the fallback path.
func emptyCatalog() CatalogService {
	return NewCatalogService(&fakeCatalogRepo{}, nil, nil, testLogger())
}

type mapCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (c *mapCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *mapCache) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

type fakeGateway struct {
	mu sync.Mutex

	customers     int
	subscriptions map[string]*billing.Subscription
	intents       []billing.PaymentIntentRequest
	checkouts     []billing.CheckoutRequest
	portals       []string
	canceled      []string
	err           error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{subscriptions: map[string]*billing.Subscription{}}
}

func (g *fakeGateway) CreateCustomer(_ context.Context, _, _, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.customers++
	return "cus_" + uuid.NewString()[:8], nil
}

func (g *fakeGateway) CreateSubscription(_ context.Context, customerID, priceID string, metadata map[string]string) (*billing.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	sub := &billing.Subscription{
		ID:           "sub_" + uuid.NewString()[:8],
		CustomerID:   customerID,
		Status:       model.SubscriptionStatusIncomplete,
		PriceID:      priceID,
		Metadata:     metadata,
		ClientSecret: "pi_secret_123",
	}
	g.subscriptions[sub.ID] = sub
	return sub, nil
}

func (g *fakeGateway) GetSubscription(_ context.Context, id string) (*billing.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sub, ok := g.subscriptions[id]
	if !ok {
		return nil, errors.New("no such subscription: " + id)
	}
	cp := *sub
	return &cp, nil
}

func (g *fakeGateway) SetCancelAtPeriodEnd(_ context.Context, id string, cancel bool) (*billing.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.canceled = append(g.canceled, id)
	return &billing.Subscription{ID: id, CancelAtPeriodEnd: cancel}, nil
}

func (g *fakeGateway) CreatePaymentIntent(_ context.Context, req billing.PaymentIntentRequest) (string, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", "", g.err
	}
	g.intents = append(g.intents, req)
	return "pi_123", "pi_123_secret", nil
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req billing.CheckoutRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkouts = append(g.checkouts, req)
	return "https://checkout.stripe.test/" + req.PriceID, nil
}

func (g *fakeGateway) CreatePortalSession(_ context.Context, customerID, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.portals = append(g.portals, customerID)
	return "https://billing.stripe.test/" + customerID, nil
}

type fakeStore struct {
	objects map[string]int64
}

func (s *fakeStore) PresignPut(_ context.Context, key string) (string, error) {
	return "https://bucket.test/" + key + "?X-Amz-Signature=put", nil
}

func (s *fakeStore) PresignGet(_ context.Context, key string) (string, error) {
	return "https://bucket.test/" + key + "?X-Amz-Signature=get", nil
}

func (s *fakeStore) Stat(_ context.Context, key string) (int64, bool, error) {
	size, ok := s.objects[key]
	return size, ok, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload []byte, _ map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return "msg-1", nil
}

type fakeMediaRepo struct {
	media []model.Media
}

func (r *fakeMediaRepo) GetMediaByID(_ context.Context, id string) (*model.Media, error) {
	for _, m := range r.media {
		if m.ID == id {
			cp := m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeMediaRepo) ListMediaByUser(_ context.Context, userID string, limit, offset int) ([]model.Media, error) {
	var out []model.Media
	for _, m := range r.media {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func strPtr(s string) *string { return &s }
