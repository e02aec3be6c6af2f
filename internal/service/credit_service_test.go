package service

import (
	"context"
	"encoding/json"
	"testing"

	"bakery/internal/model"
	"bakery/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type creditFixture struct {
	users     *fakeUserRepo
	subs      *fakeSubRepo
	credits   *fakeCreditRepo
	gateway   *fakeGateway
	store     *fakeStore
	publisher *recordingPublisher
	svc       CreditService
}

func newCreditFixture(t *testing.T, balance model.Credits) *creditFixture {
	t.Helper()
	f := &creditFixture{
		users:     newFakeUserRepo(&model.User{ID: "u1", Email: "a@example.com", Plan: model.FreePlanID, Credits: balance}),
		subs:      &fakeSubRepo{},
		gateway:   newFakeGateway(),
		store:     &fakeStore{objects: map[string]int64{"media/u1/clip.mp4": 2048}},
		publisher: &recordingPublisher{},
	}
	f.credits = newFakeCreditRepo(f.users)
	f.svc = NewCreditService(f.users, f.subs, f.credits, emptyCatalog(), f.gateway, f.store, f.publisher,
		CreditServiceConfig{UsageTopic: "usage"}, testLogger())
	return f
}

func TestQuote(t *testing.T) {
	f := newCreditFixture(t, 0)
	ctx := context.Background()

	tests := []struct {
		name      string
		operation string
		params    string
		want      model.Credits
		desc      string
		err       error
	}{
		{"standard video", pricing.OperationVideo, `{"model":"character3","durationSeconds":10}`, 3500, "Generated 10s video with character3_540p", nil},
		{"high quality video", pricing.OperationVideo, `{"model":"character3","quality":"high","durationSeconds":10}`, 7000, "Generated 10s video with character3_720p", nil},
		{"image", pricing.OperationImage, `{"model":"flux_pro","megapixels":2}`, 1400, "Generated image with flux_pro at 2MP", nil},
		{"audio", pricing.OperationAudio, `{"model":"elevenlabs","characters":1500}`, 2250, "Generated audio with elevenlabs, 1500 characters", nil},
		{"unknown operation", "text_generation", `{"model":"x"}`, 0, "", pricing.ErrInvalidOperation},
		{"missing model", pricing.OperationImage, `{}`, 0, "", pricing.ErrMissingModel},
		{"unknown model", pricing.OperationImage, `{"model":"dalle"}`, 0, "", pricing.ErrUnknownModel},
		{"model of another category", pricing.OperationImage, `{"model":"character3_540p","megapixels":1}`, 0, "", pricing.ErrUnknownModel},
		{"missing duration", pricing.OperationVideo, `{"model":"character3"}`, 0, "", pricing.ErrMissingQuantity},
		{"not an object", pricing.OperationVideo, `[1,2]`, 0, "", ErrInvalidParameters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := f.svc.Quote(ctx, tt.operation, json.RawMessage(tt.params))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.Cost)
			assert.Equal(t, tt.desc, q.Description)
		})
	}
}

func TestUseDebitsAndRecordsMedia(t *testing.T) {
	f := newCreditFixture(t, 40000)
	ctx := context.Background()

	res, err := f.svc.Use(ctx, "u1", UseInput{
		Operation:  pricing.OperationVideo,
		Parameters: json.RawMessage(`{"model":"character3","durationSeconds":10,"prompt":"a cat"}`),
		OutputURL:  "https://cdn.example.com/out/clip.mp4",
	})
	require.NoError(t, err)
	assert.Equal(t, model.Credits(3500), res.CreditCost)
	assert.Equal(t, model.Credits(36500), res.RemainingCredits)
	require.NotEmpty(t, res.MediaID)

	require.Len(t, f.credits.media, 1)
	m := f.credits.media[0]
	assert.Equal(t, res.MediaID, m.ID)
	assert.Equal(t, "Video Generation", m.Title)
	assert.Equal(t, "mp4", m.Format)
	assert.Equal(t, "a cat", m.PromptText)
	assert.Nil(t, m.StorageKey)
	require.NotNil(t, m.Duration)
	assert.Equal(t, 10.0, *m.Duration)

	usage := f.credits.transactions(model.TransactionTypeUsage)
	require.Len(t, usage, 1)
	assert.Equal(t, model.Credits(-3500), usage[0].Amount)
	assert.Equal(t, res.MediaID, *usage[0].ReferenceID)
	assert.JSONEq(t, `{"model":"character3","durationSeconds":10,"prompt":"a cat"}`, string(usage[0].Metadata))

	require.Len(t, f.publisher.payloads, 1)
	assert.Equal(t, "usage", f.publisher.topics[0])
	var event UsageEvent
	require.NoError(t, json.Unmarshal(f.publisher.payloads[0], &event))
	assert.Equal(t, "character3_540p", event.ModelID)
	assert.Equal(t, res.MediaID, event.MediaID)
	assert.Equal(t, model.Credits(36500), event.RemainingCredits)
}

func TestUseWithStorageKey(t *testing.T) {
	f := newCreditFixture(t, 40000)
	ctx := context.Background()
	params := json.RawMessage(`{"model":"character3","durationSeconds":1}`)

	res, err := f.svc.Use(ctx, "u1", UseInput{Operation: pricing.OperationVideo, Parameters: params, Title: "Intro", OutputURL: "media/u1/clip.mp4"})
	require.NoError(t, err)
	m := f.credits.media[0]
	assert.Equal(t, res.MediaID, m.ID)
	assert.Equal(t, "Intro", m.Title)
	require.NotNil(t, m.StorageKey)
	assert.Equal(t, "media/u1/clip.mp4", *m.StorageKey)
	assert.Equal(t, int64(2048), m.FileSize)

	for _, out := range []string{"media/u2/clip.mp4", "media/u1/missing.mp4", "ftp://example.com/a.mp4"} {
		_, err := f.svc.Use(ctx, "u1", UseInput{Operation: pricing.OperationVideo, Parameters: params, OutputURL: out})
		assert.ErrorIs(t, err, ErrInvalidOutputURL, out)
	}
	assert.Len(t, f.credits.transactions(model.TransactionTypeUsage), 1)
}

func TestUseInsufficientCredits(t *testing.T) {
	f := newCreditFixture(t, 500)

	_, err := f.svc.Use(context.Background(), "u1", UseInput{
		Operation:  pricing.OperationVideo,
		Parameters: json.RawMessage(`{"model":"character3","durationSeconds":10}`),
	})
	require.ErrorIs(t, err, ErrInsufficientCredits)

	var insufficient *InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, model.Credits(3500), insufficient.Required)
	assert.Equal(t, model.Credits(500), insufficient.Available)

	assert.Equal(t, model.Credits(500), f.users.user("u1").Credits)
	assert.Empty(t, f.publisher.payloads)
}

func TestUseUnknownUser(t *testing.T) {
	f := newCreditFixture(t, 0)
	_, err := f.svc.Use(context.Background(), "ghost", UseInput{
		Operation:  pricing.OperationImage,
		Parameters: json.RawMessage(`{"model":"flux_dev","megapixels":1}`),
	})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestTransactionsClampsLimit(t *testing.T) {
	f := newCreditFixture(t, 0)
	ctx := context.Background()

	_, err := f.svc.Transactions(ctx, "u1", 0, -5)
	require.NoError(t, err)
	assert.Equal(t, 20, f.credits.lastLimit)
	assert.Equal(t, 0, f.credits.lastOffset)

	_, err = f.svc.Transactions(ctx, "u1", 1000, 40)
	require.NoError(t, err)
	assert.Equal(t, 100, f.credits.lastLimit)
	assert.Equal(t, 40, f.credits.lastOffset)
}

func TestPurchase(t *testing.T) {
	f := newCreditFixture(t, 0)
	ctx := context.Background()

	_, err := f.svc.Purchase(ctx, "u1", "huge")
	assert.ErrorIs(t, err, ErrInvalidPack)

	_, err = f.svc.Purchase(ctx, "u1", "medium")
	assert.ErrorIs(t, err, ErrSubscriptionRequired)

	_, err = f.svc.Purchase(ctx, "ghost", "medium")
	assert.ErrorIs(t, err, ErrUserNotFound)

	f.subs.subs = append(f.subs.subs, &model.Subscription{ID: "s1", UserID: "u1", PlanID: "basic", Status: model.SubscriptionStatusTrialing})
	f.users.users["u1"].StripeCustomerID = strPtr("cus_1")

	res, err := f.svc.Purchase(ctx, "u1", "medium")
	require.NoError(t, err)
	assert.Equal(t, "pi_123_secret", res.ClientSecret)
	assert.Equal(t, model.Credits(500000), res.Package.Credits)

	require.Len(t, f.gateway.intents, 1)
	req := f.gateway.intents[0]
	assert.Equal(t, int64(4500), req.AmountCents)
	assert.Equal(t, "usd", req.Currency)
	assert.Equal(t, "cus_1", req.CustomerID)
	assert.Equal(t, map[string]string{"type": "credit_purchase", "userId": "u1", "credits": "5000", "packId": "medium"}, req.Metadata)

	assert.Equal(t, model.Credits(0), f.users.user("u1").Credits, "credits arrive with the webhook")
}

func TestBalance(t *testing.T) {
	f := newCreditFixture(t, 12345)
	b, err := f.svc.Balance(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, &Balance{Credits: 12345, Plan: model.FreePlanID}, b)
}
