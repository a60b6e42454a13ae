package service

import (
	"context"
	"testing"
	"time"

	"phone-rental-gateway/internal/core/domain"
	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/internal/core/ports/mocks"
	"phone-rental-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type rapidTestDeps struct {
	svc      *RapidCheckServiceImpl
	checks   *mocks.MockRapidCheckRepository
	wallet   *mocks.MockWalletService
	prices   *mocks.MockPriceService
	platform *mocks.MockPlatformClient
	txr      *mocks.MockDBTransactor
	ctrl     *gomock.Controller
}

func setupRapidCheckService(t *testing.T) *rapidTestDeps {
	ctrl := gomock.NewController(t)
	d := &rapidTestDeps{
		checks:   mocks.NewMockRapidCheckRepository(ctrl),
		wallet:   mocks.NewMockWalletService(ctrl),
		prices:   mocks.NewMockPriceService(ctrl),
		platform: mocks.NewMockPlatformClient(ctrl),
		txr:      mocks.NewMockDBTransactor(ctrl),
		ctrl:     ctrl,
	}
	d.svc = NewRapidCheckService(d.checks, d.wallet, d.prices, d.platform, d.txr, zerolog.Nop())
	return d
}

func TestRapidCheckService_Check_FreshSuccess(t *testing.T) {
	d := setupRapidCheckService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	cookie := "SPC_F=rapid-check-cookie-value-01"

	d.checks.EXPECT().FindRecentSuccess(ctx, userID, domain.CookieFingerprint(cookie), gomock.Any()).Return(nil, nil)
	d.prices.EXPECT().Price(ctx, domain.ServiceRapidCheck).Return(int64(1000), nil)
	d.wallet.EXPECT().Charge(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, p ports.ChargeParams) (*ports.WalletResult, error) {
			assert.Contains(t, p.Reference, "rapid:")
			assert.Equal(t, domain.TransactionTypeRapid, p.Type)
			return &ports.WalletResult{Transaction: &domain.Transaction{ID: uuid.New()}}, nil
		})
	d.txr.EXPECT().Begin(ctx).Return(&mockTx{}, nil)
	d.checks.EXPECT().Create(ctx, gomock.Any(), gomock.Any()).Return(nil)

	d.platform.EXPECT().RecentOrders(ctx, cookie, rapidOrderLimit).Return([]ports.PlatformOrder{
		{OrderID: "ord-1"}, {OrderID: "ord-2"},
	}, nil)
	d.platform.EXPECT().OrderDetail(ctx, cookie, "ord-1").Return(&ports.PlatformOrderDetail{
		OrderID: "ord-1",
	}, nil)
	d.platform.EXPECT().OrderDetail(ctx, cookie, "ord-2").Return(&ports.PlatformOrderDetail{
		OrderID: "ord-2",
		Shipper: ports.PlatformShipper{
			DriverPhone: "0901234567", DriverName: "Nguyen Van A", VehiclePlate: "59X1-123.45",
		},
	}, nil)

	d.checks.EXPECT().Update(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, c *domain.RapidCheck) error {
			assert.True(t, c.Found)
			require.NotNil(t, c.DriverPhone)
			assert.Equal(t, "0901234567", *c.DriverPhone)
			assert.NotEmpty(t, c.OrdersJSON)
			return nil
		})

	res, err := d.svc.Check(ctx, userID, cookie)
	require.NoError(t, err)
	assert.True(t, res.Status)
	assert.True(t, res.Charged)
	assert.False(t, res.IsFromHistory)
	require.NotNil(t, res.DriverPhone)
	assert.Equal(t, "0901234567", *res.DriverPhone)
}

func TestRapidCheckService_Check_HistoryIsFree(t *testing.T) {
	d := setupRapidCheckService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	cookie := "SPC_F=rapid-check-cookie-value-02"
	phone := "0909999999"

	d.checks.EXPECT().FindRecentSuccess(ctx, userID, domain.CookieFingerprint(cookie), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, _ string, since time.Time) (*domain.RapidCheck, error) {
			assert.WithinDuration(t, time.Now().UTC().Add(-domain.RapidDedupWindow), since, time.Minute)
			return &domain.RapidCheck{
				ID: uuid.New(), UserID: userID, Found: true, DriverPhone: &phone,
			}, nil
		})

	// No charge, no platform traffic for a replay.
	res, err := d.svc.Check(ctx, userID, cookie)
	require.NoError(t, err)
	assert.True(t, res.IsFromHistory)
	assert.False(t, res.Charged)
	require.NotNil(t, res.DriverPhone)
	assert.Equal(t, phone, *res.DriverPhone)
}

func TestRapidCheckService_Check_NoDriverRefunds(t *testing.T) {
	d := setupRapidCheckService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	cookie := "SPC_F=rapid-check-cookie-value-03"

	d.checks.EXPECT().FindRecentSuccess(ctx, userID, gomock.Any(), gomock.Any()).Return(nil, nil)
	d.prices.EXPECT().Price(ctx, domain.ServiceRapidCheck).Return(int64(1000), nil)
	d.wallet.EXPECT().Charge(ctx, gomock.Any()).Return(&ports.WalletResult{
		Transaction: &domain.Transaction{ID: uuid.New()},
	}, nil)
	d.txr.EXPECT().Begin(ctx).Return(&mockTx{}, nil)
	d.checks.EXPECT().Create(ctx, gomock.Any(), gomock.Any()).Return(nil)

	d.platform.EXPECT().RecentOrders(ctx, cookie, rapidOrderLimit).Return([]ports.PlatformOrder{
		{OrderID: "ord-1"},
	}, nil)
	d.platform.EXPECT().OrderDetail(ctx, cookie, "ord-1").Return(&ports.PlatformOrderDetail{
		OrderID: "ord-1",
	}, nil)

	d.wallet.EXPECT().Refund(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, p ports.RefundParams) (*ports.WalletResult, error) {
			assert.Contains(t, p.Reference, "refund:rapid:")
			return &ports.WalletResult{Transaction: &domain.Transaction{ID: uuid.New()}}, nil
		})
	d.checks.EXPECT().Update(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, c *domain.RapidCheck) error {
			assert.False(t, c.Found)
			assert.NotNil(t, c.RefundTxnID)
			return nil
		})

	res, err := d.svc.Check(ctx, userID, cookie)
	require.NoError(t, err)
	assert.False(t, res.Status)
	assert.False(t, res.Charged)
}

func TestRapidCheckService_Check_CookieExpiredAborts(t *testing.T) {
	d := setupRapidCheckService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	cookie := "SPC_F=rapid-check-cookie-value-04"

	d.checks.EXPECT().FindRecentSuccess(ctx, userID, gomock.Any(), gomock.Any()).Return(nil, nil)
	d.prices.EXPECT().Price(ctx, domain.ServiceRapidCheck).Return(int64(1000), nil)
	d.wallet.EXPECT().Charge(ctx, gomock.Any()).Return(&ports.WalletResult{
		Transaction: &domain.Transaction{ID: uuid.New()},
	}, nil)
	d.txr.EXPECT().Begin(ctx).Return(&mockTx{}, nil)
	d.checks.EXPECT().Create(ctx, gomock.Any(), gomock.Any()).Return(nil)

	d.platform.EXPECT().RecentOrders(ctx, cookie, rapidOrderLimit).
		Return(nil, apperror.ErrCookieExpired())

	d.wallet.EXPECT().Refund(ctx, gomock.Any()).Return(&ports.WalletResult{
		Transaction: &domain.Transaction{ID: uuid.New()},
	}, nil)
	d.checks.EXPECT().Update(ctx, gomock.Any()).Return(nil)

	_, err := d.svc.Check(ctx, userID, cookie)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, "UP_002"))
}

func TestRapidCheckService_Check_EmptyCookie(t *testing.T) {
	d := setupRapidCheckService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Check(context.Background(), uuid.New(), "")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, "VAL_001"))
}
