package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/royalti/internal/clock"
	"github.com/smallbiznis/royalti/internal/config"
	"github.com/smallbiznis/royalti/internal/lock"
	obsctx "github.com/smallbiznis/royalti/internal/observability/context"
	"github.com/smallbiznis/royalti/internal/payout/domain"
	"github.com/smallbiznis/royalti/internal/payout/remittance"
	"github.com/smallbiznis/royalti/internal/payout/repository"
	recorddomain "github.com/smallbiznis/royalti/internal/record/domain"
	walletdomain "github.com/smallbiznis/royalti/internal/wallet/domain"
	walletrepo "github.com/smallbiznis/royalti/internal/wallet/repository"
	walletservice "github.com/smallbiznis/royalti/internal/wallet/service"
	"github.com/smallbiznis/royalti/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureRenderer struct {
	advice remittance.Advice
}

func (r *captureRenderer) Render(_ context.Context, advice remittance.Advice) ([]byte, error) {
	r.advice = advice
	return []byte("%PDF-fake"), nil
}

type fixture struct {
	svc      domain.Service
	wallets  walletdomain.Service
	renderer *captureRenderer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t, &domain.Payout{}, &walletdomain.Wallet{}, &walletdomain.Adjustment{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC))
	log := zap.NewNop()
	cfg := config.Config{AppName: "royalti", StrictInvariants: true}
	ingestion := config.NewStaticIngestionConfig(config.DefaultIngestionConfig())
	locker := lock.NewLocal()

	wallets := walletservice.New(walletservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     clk,
		Cfg:       cfg,
		Ingestion: ingestion,
		Locker:    locker,
		Repo:      walletrepo.Provide(),
	})
	renderer := &captureRenderer{}
	svc := New(Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     clk,
		Cfg:       cfg,
		Ingestion: ingestion,
		Locker:    locker,
		Repo:      repository.Provide(),
		Wallets:   wallets,
		Renderer:  renderer,
	})
	return &fixture{svc: svc, wallets: wallets, renderer: renderer}
}

func (f *fixture) fund(t *testing.T, userID string, amount int64) {
	t.Helper()
	_, err := f.wallets.Credit(context.Background(), nil, walletdomain.CreditRequest{
		UserID: userID,
		Delta:  recorddomain.Earnings{Regular: decimal.NewFromInt(amount)},
	})
	require.NoError(t, err)
}

func (f *fixture) wallet(t *testing.T, userID string) walletdomain.Wallet {
	t.Helper()
	w, err := f.wallets.Get(context.Background(), userID)
	require.NoError(t, err)
	return w
}

func (f *fixture) create(t *testing.T, userID string, amount int64) domain.Payout {
	t.Helper()
	p, err := f.svc.Create(context.Background(), domain.CreateRequest{
		UserID: userID,
		Amount: decimal.NewFromInt(amount),
		Method: "Bank_Transfer",
	})
	require.NoError(t, err)
	return p
}

func TestCreateReservesFunds(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "artist-1", 500)

	ctx := obsctx.WithActor(context.Background(), obsctx.ActorTypeUser, "artist-1")
	p, err := f.svc.Create(ctx, domain.CreateRequest{
		UserID: "artist-1",
		Amount: decimal.NewFromInt(150),
		Method: "bank_transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, p.Status)
	assert.Equal(t, "USD", p.Currency)
	assert.Equal(t, "artist-1", p.RequestedBy)

	w := f.wallet(t, "artist-1")
	assert.True(t, w.PendingPayout.Equal(decimal.NewFromInt(150)))
	assert.True(t, w.WithdrawableBalance.Equal(decimal.NewFromInt(350)))
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "artist-1", 500)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.CreateRequest
		want error
	}{
		{"missing user", domain.CreateRequest{Amount: decimal.NewFromInt(150), Method: "bank"}, domain.ErrInvalidUser},
		{"zero amount", domain.CreateRequest{UserID: "artist-1", Method: "bank"}, domain.ErrInvalidAmount},
		{"below minimum", domain.CreateRequest{UserID: "artist-1", Amount: decimal.NewFromInt(99), Method: "bank"}, domain.ErrBelowMinimum},
		{"missing method", domain.CreateRequest{UserID: "artist-1", Amount: decimal.NewFromInt(150)}, domain.ErrInvalidMethod},
		{"over withdrawable", domain.CreateRequest{UserID: "artist-1", Amount: decimal.NewFromInt(501), Method: "bank"}, walletdomain.ErrInsufficientBalance},
		{"currency mismatch", domain.CreateRequest{UserID: "artist-1", Amount: decimal.NewFromInt(150), Method: "bank", Currency: "eur"}, domain.ErrCurrencyMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	// failed requests leave nothing reserved
	w := f.wallet(t, "artist-1")
	assert.True(t, w.PendingPayout.IsZero())
	assert.True(t, w.WithdrawableBalance.Equal(decimal.NewFromInt(500)))
}

func TestMinimumPayoutIsInclusive(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "artist-1", 100)

	p := f.create(t, "artist-1", 100)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(100)))
	assert.True(t, f.wallet(t, "artist-1").WithdrawableBalance.IsZero())
}

func TestApproveAndPaySettlesWallet(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "artist-1", 500)
	p := f.create(t, "artist-1", 200)
	ctx := obsctx.WithActor(context.Background(), obsctx.ActorTypeUser, "ops-1")

	approved, err := f.svc.Approve(ctx, p.ID.String(), domain.TransitionRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)
	assert.Equal(t, "ops-1", approved.ReviewedBy)
	assert.NotNil(t, approved.ApprovedAt)

	paid, err := f.svc.MarkPaid(ctx, p.ID.String(), domain.TransitionRequest{Note: "wire ref 991"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)
	assert.Equal(t, "wire ref 991", paid.Note)
	assert.NotNil(t, paid.PaidAt)

	w := f.wallet(t, "artist-1")
	assert.True(t, w.PendingPayout.IsZero())
	assert.True(t, w.TotalPaidOut.Equal(decimal.NewFromInt(200)))
	assert.True(t, w.WithdrawableBalance.Equal(decimal.NewFromInt(300)))

	// paid is terminal
	for _, fn := range []func(context.Context, string, domain.TransitionRequest) (domain.Payout, error){
		f.svc.Approve, f.svc.Reject, f.svc.Cancel, f.svc.MarkPaid,
	} {
		_, err := fn(ctx, p.ID.String(), domain.TransitionRequest{})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	}
}

func TestRejectAndCancelReleaseFunds(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "artist-1", 500)
	ctx := context.Background()

	approved := f.create(t, "artist-1", 200)
	_, err := f.svc.Approve(ctx, approved.ID.String(), domain.TransitionRequest{})
	require.NoError(t, err)
	rejected, err := f.svc.Reject(ctx, approved.ID.String(), domain.TransitionRequest{Note: "bank details invalid"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)
	assert.NotNil(t, rejected.ClosedAt)

	pending := f.create(t, "artist-1", 150)
	cancelled, err := f.svc.Cancel(ctx, pending.ID.String(), domain.TransitionRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	w := f.wallet(t, "artist-1")
	assert.True(t, w.PendingPayout.IsZero())
	assert.True(t, w.TotalPaidOut.IsZero())
	assert.True(t, w.WithdrawableBalance.Equal(decimal.NewFromInt(500)))
}

func TestPayRequiresApproval(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "artist-1", 500)
	p := f.create(t, "artist-1", 200)

	_, err := f.svc.MarkPaid(context.Background(), p.ID.String(), domain.TransitionRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.True(t, f.wallet(t, "artist-1").TotalPaidOut.IsZero())
}

func TestListFiltersByUserAndStatus(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "artist-1", 1000)
	f.fund(t, "artist-2", 1000)
	first := f.create(t, "artist-1", 100)
	f.create(t, "artist-1", 200)
	f.create(t, "artist-2", 300)
	_, err := f.svc.Approve(context.Background(), first.ID.String(), domain.TransitionRequest{})
	require.NoError(t, err)

	all, err := f.svc.List(context.Background(), domain.ListRequest{UserID: "artist-1"})
	require.NoError(t, err)
	assert.Len(t, all.Payouts, 2)

	approved, err := f.svc.List(context.Background(), domain.ListRequest{Status: "approved"})
	require.NoError(t, err)
	require.Len(t, approved.Payouts, 1)
	assert.Equal(t, first.ID, approved.Payouts[0].ID)

	_, err = f.svc.List(context.Background(), domain.ListRequest{Status: "settled"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestRemittanceOnlyForPaidPayouts(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "artist-1", 500)
	p := f.create(t, "artist-1", 200)
	ctx := context.Background()

	_, err := f.svc.Remittance(ctx, p.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotPaid)

	_, err = f.svc.Approve(ctx, p.ID.String(), domain.TransitionRequest{})
	require.NoError(t, err)
	_, err = f.svc.MarkPaid(ctx, p.ID.String(), domain.TransitionRequest{})
	require.NoError(t, err)

	out, err := f.svc.Remittance(ctx, p.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-fake", string(out))
	assert.Equal(t, "200.00", f.renderer.advice.Amount)
	assert.Equal(t, "300.00", f.renderer.advice.Withdrawable)
	assert.Equal(t, "200.00", f.renderer.advice.TotalPaidOut)
	assert.Equal(t, "2024-02-01 09:30 UTC", f.renderer.advice.PaidAt)
	assert.Equal(t, "royalti", f.renderer.advice.Issuer)
}

func TestGetUnknownPayout(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), "42")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}
