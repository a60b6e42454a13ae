package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"phone-rental-gateway/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPlatform(baseURL string) *Platform {
	return NewPlatform(newTestClient(), nil, baseURL, 0, 0, zerolog.Nop())
}

func TestPlatform_IsPhoneRegistered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/authentication/check_phone_exists", r.URL.Path)
		exists := r.URL.Query().Get("phone") == "84911222333"
		json.NewEncoder(w).Encode(map[string]any{
			"error": 0,
			"data":  map[string]any{"exists": exists},
		})
	}))
	defer srv.Close()

	p := newTestPlatform(srv.URL)

	registered, err := p.IsPhoneRegistered(context.Background(), "84911222333")
	require.NoError(t, err)
	assert.True(t, registered)

	registered, err = p.IsPhoneRegistered(context.Background(), "84900000000")
	require.NoError(t, err)
	assert.False(t, registered)
}

func TestPlatform_IsPhoneRegistered_ErrorIsNotAClearNegative(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":5,"data":{"exists":false}}`))
	}))
	defer srv.Close()

	p := newTestPlatform(srv.URL)
	_, err := p.IsPhoneRegistered(context.Background(), "84911222333")
	require.Error(t, err)
	assert.Equal(t, "UP_001", appErrCode(t, err))
}

func TestPlatform_RecentOrders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SPC_F=cookie1", r.Header.Get("Cookie"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Write([]byte(`{
			"error": 0,
			"data": {"order_data": {"details_list": [
				{"info_card": {"order_id": 170092331144, "final_total": 125000}},
				{"info_card": {"order_id": 170092331145, "final_total": 89000}}
			]}}
		}`))
	}))
	defer srv.Close()

	p := newTestPlatform(srv.URL)
	orders, err := p.RecentOrders(context.Background(), "SPC_F=cookie1", 5)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "170092331144", orders[0].OrderID)
	assert.Equal(t, int64(125000), orders[0].FinalTotal)
	assert.Equal(t, int64(89000), orders[1].FinalTotal)
}

func TestPlatform_RecentOrders_CookieExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":19,"error_msg":"login required"}`))
	}))
	defer srv.Close()

	p := newTestPlatform(srv.URL)
	_, err := p.RecentOrders(context.Background(), "SPC_F=dead", 5)
	require.Error(t, err)
	assert.Equal(t, "UP_002", appErrCode(t, err))
}

func TestPlatform_OrderDetail_ShipperFromTrackingInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "170092331144", r.URL.Query().Get("order_id"))
		w.Write([]byte(`{
			"error": 0,
			"data": {
				"shipping": {"name": "Nguyen Van A"},
				"address": "12 Le Loi, Q1, HCM",
				"tracking_info": {"driver_phone": "0901234567", "driver_name": "Tran B"},
				"delivery_info": {"vehicle_plate": "59X1-12345"},
				"processing_info": {"info_rows": [{"text": "Đang giao hàng"}]}
			}
		}`))
	}))
	defer srv.Close()

	p := newTestPlatform(srv.URL)
	detail, err := p.OrderDetail(context.Background(), "SPC_F=cookie1", "170092331144")
	require.NoError(t, err)
	assert.Equal(t, "Nguyen Van A", detail.ShippingName)
	assert.Equal(t, "12 Le Loi, Q1, HCM", detail.Address)
	assert.Equal(t, "0901234567", detail.Shipper.DriverPhone)
	assert.Equal(t, "Tran B", detail.Shipper.DriverName)
	assert.Equal(t, "59X1-12345", detail.Shipper.VehiclePlate)
	assert.Equal(t, []string{"Đang giao hàng"}, detail.InfoRows)
}

func TestPlatform_OrderDetail_ShipperFromDriverInfoFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"error": 0,
			"data": {"driver_info": {"name": "Le C", "phone": "0912345678", "plate": "51F-999.99"}}
		}`))
	}))
	defer srv.Close()

	p := newTestPlatform(srv.URL)
	detail, err := p.OrderDetail(context.Background(), "SPC_F=cookie1", "1")
	require.NoError(t, err)
	assert.Equal(t, "0912345678", detail.Shipper.DriverPhone)
	assert.Equal(t, "Le C", detail.Shipper.DriverName)
	assert.Equal(t, "51F-999.99", detail.Shipper.VehiclePlate)
}

func TestPlatform_OrderDetail_NoShipperData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":0,"data":{"shipping":{"name":"X"}}}`))
	}))
	defer srv.Close()

	p := newTestPlatform(srv.URL)
	detail, err := p.OrderDetail(context.Background(), "SPC_F=cookie1", "1")
	require.NoError(t, err)
	assert.Equal(t, ports.PlatformShipper{}, detail.Shipper)
}

func TestPlatform_AccountInfo_RefreshedCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", "SPC_U=other; Path=/")
		w.Header().Add("Set-Cookie", "SPC_F=fresh-token; Path=/; HttpOnly")
		w.Write([]byte(`{
			"error": 0,
			"data": {"userid": 998877, "username": "shopabc", "phone": "84911222333", "shopid": 112233}
		}`))
	}))
	defer srv.Close()

	p := newTestPlatform(srv.URL)
	account, refreshed, err := p.AccountInfo(context.Background(), "SPC_F=old")
	require.NoError(t, err)
	assert.Equal(t, int64(998877), account.UserID)
	assert.Equal(t, "shopabc", account.Username)
	assert.Equal(t, "SPC_F=fresh-token", refreshed)
}

func TestPlatform_VoucherCatalogue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"error": 0,
			"data": {"vouchers": [
				{"voucher_promotionid": "881122", "voucher_code": "FSV-ABC", "signature": "sig1"},
				{"voucher_promotionid": "881123", "voucher_code": "FSV-DEF", "signature": "sig2"}
			]}
		}`))
	}))
	defer srv.Close()

	p := newTestPlatform(srv.URL)
	vouchers, err := p.VoucherCatalogue(context.Background(), "SPC_F=cookie1", false)
	require.NoError(t, err)
	require.Len(t, vouchers, 2)
	assert.Equal(t, "881122", vouchers[0].PromotionID)
	assert.Equal(t, "FSV-DEF", vouchers[1].Code)
}

func TestPlatform_SaveVoucher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "881122", payload["voucher_promotionid"])
		assert.Equal(t, "sig1", payload["signature"])
		assert.Equal(t, "0", payload["signature_source"])
		w.Write([]byte(`{"error":0}`))
	}))
	defer srv.Close()

	p := newTestPlatform(srv.URL)
	code, err := p.SaveVoucher(context.Background(), "SPC_F=cookie1",
		ports.PlatformVoucher{PromotionID: "881122", Signature: "sig1"})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestPlatform_SaveVoucher_PlatformErrorCodePassedThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":7,"error_msg":"voucher expired"}`))
	}))
	defer srv.Close()

	p := newTestPlatform(srv.URL)
	code, err := p.SaveVoucher(context.Background(), "SPC_F=cookie1",
		ports.PlatformVoucher{PromotionID: "881122", Signature: "sig1"})
	require.NoError(t, err)
	assert.Equal(t, 7, code)
}

func TestPlatform_SaveVoucher_UnauthorizedIsCookieExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := newTestPlatform(srv.URL)
	_, err := p.SaveVoucher(context.Background(), "SPC_F=dead",
		ports.PlatformVoucher{PromotionID: "881122", Signature: "sig1"})
	require.Error(t, err)
	assert.Equal(t, "UP_002", appErrCode(t, err))
}
