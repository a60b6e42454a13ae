package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"phone-rental-gateway/config"
	"phone-rental-gateway/internal/core/domain"
	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/internal/upstream"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *upstream.Client {
	return upstream.NewClient(zerolog.Nop()).WithHostValidator(func(string) error { return nil })
}

func providerCfg(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{BaseURL: baseURL, APIKey: "test-key"}
}

func TestRegistry_TierBindings(t *testing.T) {
	r := NewRegistry(testClient(), config.ProvidersConfig{}, zerolog.Nop())

	p1, ok := r.ForTier(domain.TierOne)
	require.True(t, ok)
	assert.Equal(t, "viotp", p1.Name())

	p2, ok := r.ForTier(domain.TierTwo)
	require.True(t, ok)
	assert.Equal(t, "chaylua", p2.Name())

	p3, ok := r.ForTier(domain.TierThree)
	require.True(t, ok)
	assert.Equal(t, "sim24h", p3.Name())

	p4, ok := r.ForTier(domain.TierPlatform)
	require.True(t, ok)
	assert.Equal(t, "funotp", p4.Name())

	assert.Len(t, r.All(), 6)
	for _, name := range []string{"viotp", "chaylua", "sim24h", "funotp", "ironsim", "otpdashe"} {
		_, ok := r.ByName(name)
		assert.True(t, ok, "provider %s missing from registry", name)
	}
}

func TestViotp_RequestNumber_CarrierAsString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/request/getv2", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("token"))
		assert.Equal(t, "VIETTEL", r.URL.Query().Get("network"))
		w.Write([]byte(`{"status_code":200,"data":{"request_id":99112,"phone_number":"0968123456"}}`))
	}))
	defer srv.Close()

	p := NewViotp(testClient(), providerCfg(srv.URL), zerolog.Nop())
	got, err := p.RequestNumber(context.Background(), CarrierViettel)
	require.NoError(t, err)
	assert.Equal(t, "99112", got.RequestID)
	assert.Equal(t, "0968123456", got.PhoneNumber)
	assert.NotEmpty(t, got.Raw)
}

func TestViotp_RequestNumber_UnknownCarrier(t *testing.T) {
	p := NewViotp(testClient(), providerCfg("http://example.invalid"), zerolog.Nop())
	_, err := p.RequestNumber(context.Background(), "tmobile")
	assert.Error(t, err)
}

func TestViotp_GetOtp_States(t *testing.T) {
	cases := []struct {
		name string
		body string
		want ports.OtpState
		code string
	}{
		{"waiting", `{"status_code":200,"data":{"Status":0}}`, ports.OtpWaiting, ""},
		{"completed", `{"status_code":200,"data":{"Status":1,"Code":"482913"}}`, ports.OtpCompleted, "482913"},
		{"expired", `{"status_code":200,"data":{"Status":2}}`, ports.OtpExpired, ""},
		{"error", `{"status_code":500}`, ports.OtpError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			p := NewViotp(testClient(), providerCfg(srv.URL), zerolog.Nop())
			got, err := p.GetOtp(context.Background(), "99112")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.State)
			assert.Equal(t, tc.code, got.Code)
		})
	}
}

func TestChaylua_RequestNumber_CarrierAsNumericID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/get-number", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("carrier_id"))
		w.Write([]byte(`{"success":true,"id":55001,"phone":"0901234567"}`))
	}))
	defer srv.Close()

	p := NewChaylua(testClient(), providerCfg(srv.URL), zerolog.Nop())
	got, err := p.RequestNumber(context.Background(), CarrierMobifone)
	require.NoError(t, err)
	assert.Equal(t, "55001", got.RequestID)
	assert.Equal(t, "0901234567", got.PhoneNumber)
}

func TestChaylua_RequestNumber_OutOfBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"So du khong du"}`))
	}))
	defer srv.Close()

	p := NewChaylua(testClient(), providerCfg(srv.URL), zerolog.Nop())
	_, err := p.RequestNumber(context.Background(), CarrierAny)
	assert.ErrorIs(t, err, ports.ErrProviderOutOfBalance)
}

func TestSim24h_RequestNumber_CarrierAsBitMask(t *testing.T) {
	var gotMask string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMask = r.URL.Query().Get("carrier")
		w.Write([]byte(`{"status":1,"id":7701,"number":"0912000111"}`))
	}))
	defer srv.Close()

	p := NewSim24h(testClient(), providerCfg(srv.URL), zerolog.Nop())

	_, err := p.RequestNumber(context.Background(), CarrierVinaphone)
	require.NoError(t, err)
	assert.Equal(t, "4", gotMask)

	// Empty carrier sends the full mask.
	_, err = p.RequestNumber(context.Background(), CarrierAny)
	require.NoError(t, err)
	assert.Equal(t, "15", gotMask)
}

func TestSim24h_CancelNotSupported(t *testing.T) {
	p := NewSim24h(testClient(), providerCfg("http://example.invalid"), zerolog.Nop())
	err := p.CancelNumber(context.Background(), "7701")
	assert.ErrorIs(t, err, ports.ErrCancelNotSupported)
}

func TestSim24h_GetOtp_ExpiredByMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":0,"msg":"Yeu cau da het han"}`))
	}))
	defer srv.Close()

	p := NewSim24h(testClient(), providerCfg(srv.URL), zerolog.Nop())
	got, err := p.GetOtp(context.Background(), "7701")
	require.NoError(t, err)
	assert.Equal(t, ports.OtpExpired, got.State)
}

func TestFunotp_RequestNumber_OutOfBalanceByCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error_code":2}`))
	}))
	defer srv.Close()

	p := NewFunotp(testClient(), providerCfg(srv.URL), zerolog.Nop())
	_, err := p.RequestNumber(context.Background(), CarrierAny)
	assert.ErrorIs(t, err, ports.ErrProviderOutOfBalance)
}

func TestIronsim_AuthHeaderAndNetworkID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "30", r.URL.Query().Get("network_id"))
		w.Write([]byte(`{"code":0,"result":{"order_id":"ord-1","msisdn":"0888777666"}}`))
	}))
	defer srv.Close()

	p := NewIronsim(testClient(), providerCfg(srv.URL), zerolog.Nop())
	got, err := p.RequestNumber(context.Background(), CarrierVinaphone)
	require.NoError(t, err)
	assert.Equal(t, "ord-1", got.RequestID)
	assert.Equal(t, "0888777666", got.PhoneNumber)
}

func TestOtpdashe_BearerAuthAndShortCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "VTL", r.URL.Query().Get("carrier"))
		w.Write([]byte(`{"status":"ok","rental":{"token":"tok-9","phone":"0399888777"}}`))
	}))
	defer srv.Close()

	p := NewOtpdashe(testClient(), providerCfg(srv.URL), zerolog.Nop())
	got, err := p.RequestNumber(context.Background(), CarrierViettel)
	require.NoError(t, err)
	assert.Equal(t, "tok-9", got.RequestID)
}

func TestOtpdashe_OutOfBalanceByReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","reason":"insufficient_funds"}`))
	}))
	defer srv.Close()

	p := NewOtpdashe(testClient(), providerCfg(srv.URL), zerolog.Nop())
	_, err := p.RequestNumber(context.Background(), CarrierAny)
	assert.ErrorIs(t, err, ports.ErrProviderOutOfBalance)
}

func TestProviders_Balance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/balance":
			w.Write([]byte(`{"status_code":200,"data":{"balance":150000}}`))
		case "/api/balance":
			if r.URL.Query().Get("key") != "" { // funotp
				w.Write([]byte(`{"error_code":0,"data":{"balance":42000}}`))
			} else {
				w.Write([]byte(`{"success":true,"balance":98000}`))
			}
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	viotp := NewViotp(testClient(), providerCfg(srv.URL), zerolog.Nop())
	got, err := viotp.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(150000), got)

	chaylua := NewChaylua(testClient(), providerCfg(srv.URL), zerolog.Nop())
	got, err = chaylua.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(98000), got)

	funotp := NewFunotp(testClient(), providerCfg(srv.URL), zerolog.Nop())
	got, err = funotp.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42000), got)
}
