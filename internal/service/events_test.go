package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/gophermarket/internal/events"
	"github.com/mmeshcher/gophermarket/internal/model"
)

type recordingPublisher struct {
	mu   sync.Mutex
	envs []events.Envelope
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envs = append(p.envs, env)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.envs))
	for _, e := range p.envs {
		out = append(out, e.EventType)
	}
	return out
}

func (p *recordingPublisher) last(eventType string) (events.Envelope, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.envs) - 1; i >= 0; i-- {
		if p.envs[i].EventType == eventType {
			return p.envs[i], true
		}
	}
	return events.Envelope{}, false
}

func TestEvents_OrderLifecycle(t *testing.T) {
	repo := newMemRepo()
	pub := &recordingPublisher{}
	svc := NewService(repo, Deps{Gateway: newTestGateway(), Events: pub})
	ctx := context.Background()
	a := repo.addProduct(100, "A", "10.00", 5)

	o := placeOrder(t, svc, 1, map[int64]int{a: 2})
	_, err := svc.UpdateOrderStatus(ctx, o.ID, model.OrderStatusDelivered)
	require.NoError(t, err)
	_, err = svc.UpdateOrderStatus(ctx, o.ID, model.OrderStatusDelivered)
	require.NoError(t, err)

	assert.Equal(t, []string{
		events.EventOrderCreated,
		events.EventOrderStatusChanged,
		events.EventOrderSettled,
		events.EventOrderStatusChanged,
	}, pub.types())

	env, ok := pub.last(events.EventOrderSettled)
	require.True(t, ok)
	assert.Equal(t, events.OrderKey(o.ID), env.CorrelationID)

	var payload events.OrderSettledPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.True(t, money("15.00").Equal(payload.SellerTotal), "seller total %s", payload.SellerTotal)
	assert.True(t, money("5.00").Equal(payload.PlatformTotal), "platform total %s", payload.PlatformTotal)
	require.Len(t, payload.Lines, 1)
	assert.Equal(t, int64(100), payload.Lines[0].SellerID)
}

func TestEvents_RolledBackCheckoutPublishesNothing(t *testing.T) {
	repo := newMemRepo()
	pub := &recordingPublisher{}
	svc := NewService(repo, Deps{Events: pub})

	_, err := svc.Checkout(context.Background(), 1, checkoutRequest())
	require.Error(t, err)
	assert.Empty(t, pub.types())
}

func TestEvents_WithdrawalFinalizedOnce(t *testing.T) {
	repo := newMemRepo()
	repo.setBalance(1, "100.00")
	pub := &recordingPublisher{}
	svc := NewService(repo, Deps{Gateway: newTestGateway(), Events: pub})
	ctx := context.Background()

	res, err := svc.CreateWithdrawalRequest(ctx, WithdrawalRequest{UserID: 1, Amount: money("40.00"), BankCode: "NCB"})
	require.NoError(t, err)

	cb := signedCallback(res.Transaction.TransactionCode, "00")
	_, err = svc.ProcessWithdrawalCallback(ctx, cb)
	require.NoError(t, err)
	_, err = svc.ProcessWithdrawalCallback(ctx, cb)
	require.NoError(t, err)

	assert.Equal(t, []string{events.EventWithdrawalRequested, events.EventWithdrawalFinalized}, pub.types())

	env, _ := pub.last(events.EventWithdrawalFinalized)
	var payload events.WithdrawalFinalizedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, string(model.WithdrawalStatusCompleted), payload.Status)
}

func TestEvents_PublishFailureDoesNotFailOperation(t *testing.T) {
	repo := newMemRepo()
	pub := &recordingPublisher{err: errors.New("buffer full")}
	svc := NewService(repo, Deps{Events: pub})
	a := repo.addProduct(100, "A", "10.00", 5)

	o := placeOrder(t, svc, 1, map[int64]int{a: 1})

	assert.NotZero(t, o.ID)
	assert.Equal(t, 4, repo.stock(a))
}
