package service

import (
	"context"
	"testing"

	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/internal/core/ports/mocks"
	"phone-rental-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAccountService_CheckAccounts_MixedResults(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	platform := mocks.NewMockPlatformClient(ctrl)
	svc := NewAccountService(platform, zerolog.Nop())
	ctx := context.Background()

	good := "SPC_F=live-cookie-value-0000000001"
	bad := "SPC_F=dead-cookie-value-0000000002"

	platform.EXPECT().AccountInfo(ctx, good).Return(&ports.PlatformAccount{
		Username: "shopper01", Email: "s***@gmail.com",
	}, "", nil)
	platform.EXPECT().AccountInfo(ctx, bad).Return(nil, "", apperror.ErrCookieExpired())

	entries := svc.CheckAccounts(ctx, uuid.New(), []string{good, bad})
	require.Len(t, entries, 2)

	assert.True(t, entries[0].Status)
	require.NotNil(t, entries[0].Account)
	assert.Equal(t, "shopper01", entries[0].Account.Username)

	assert.False(t, entries[1].Status)
	assert.NotEmpty(t, entries[1].Message)
}

func TestAccountService_CheckTracking_SkipsFailedDetails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	platform := mocks.NewMockPlatformClient(ctrl)
	svc := NewAccountService(platform, zerolog.Nop())
	ctx := context.Background()

	cookie := "SPC_F=tracking-cookie-value-000003"

	platform.EXPECT().RecentOrders(ctx, cookie, trackingOrderLimit).Return([]ports.PlatformOrder{
		{OrderID: "ord-1"}, {OrderID: "ord-2"},
	}, nil)
	platform.EXPECT().OrderDetail(ctx, cookie, "ord-1").Return(nil, apperror.ErrUpstreamUnavailable(nil))
	platform.EXPECT().OrderDetail(ctx, cookie, "ord-2").Return(&ports.PlatformOrderDetail{
		OrderID: "ord-2",
	}, nil)

	entries := svc.CheckTracking(ctx, uuid.New(), []string{cookie})
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Status)
	require.Len(t, entries[0].Orders, 1)
	assert.Equal(t, "ord-2", entries[0].Orders[0].OrderID)
}

func TestAccountService_CheckTracking_ListFailureIsPerEntry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	platform := mocks.NewMockPlatformClient(ctrl)
	svc := NewAccountService(platform, zerolog.Nop())
	ctx := context.Background()

	cookie := "SPC_F=tracking-cookie-value-000004"
	platform.EXPECT().RecentOrders(ctx, cookie, trackingOrderLimit).
		Return(nil, apperror.ErrCookieExpired())

	entries := svc.CheckTracking(ctx, uuid.New(), []string{cookie})
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Status)
	assert.NotEmpty(t, entries[0].Message)
}
