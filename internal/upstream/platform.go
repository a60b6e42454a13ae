package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

const platformFamily = "platform"

// Platform implements ports.PlatformClient against the e-commerce platform
// seller API. All responses share the `{data, error, error_msg}` envelope;
// a non-zero error field (or HTTP 401/403) means the cookie is dead.
type Platform struct {
	client      *Client
	proxies     ProxySource
	baseURL     string
	dataTimeout time.Duration
	authTimeout time.Duration
	log         zerolog.Logger
}

// NewPlatform creates the platform client.
func NewPlatform(client *Client, proxies ProxySource, baseURL string, dataTimeout, authTimeout time.Duration, log zerolog.Logger) *Platform {
	if dataTimeout <= 0 {
		dataTimeout = DefaultDataTimeout
	}
	if authTimeout <= 0 {
		authTimeout = DefaultAuthTimeout
	}
	return &Platform{
		client:      client,
		proxies:     proxies,
		baseURL:     strings.TrimRight(baseURL, "/"),
		dataTimeout: dataTimeout,
		authTimeout: authTimeout,
		log:         log,
	}
}

var _ ports.PlatformClient = (*Platform)(nil)

// IsPhoneRegistered probes whether a phone number already has a platform
// account. Only a clean negative (no error AND not registered) lets the
// orchestrator accept a number.
func (p *Platform) IsPhoneRegistered(ctx context.Context, phoneNumber string) (bool, error) {
	u := fmt.Sprintf("%s/api/v2/authentication/check_phone_exists?phone=%s",
		p.baseURL, url.QueryEscape(phoneNumber))

	res, err := p.client.Call(ctx, Request{Method: http.MethodGet, URL: u},
		Options{Family: platformFamily, Timeout: p.authTimeout})
	if err != nil {
		return false, err
	}

	var body struct {
		Error int `json:"error"`
		Data  struct {
			Exists bool `json:"exists"`
		} `json:"data"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return false, apperror.ErrUpstreamUnavailable(fmt.Errorf("decoding phone probe: %w", err))
	}
	if body.Error != 0 {
		return false, apperror.ErrUpstreamUnavailable(fmt.Errorf("phone probe error %d", body.Error))
	}
	return body.Data.Exists, nil
}

// RecentOrders lists the newest orders for a logged-in cookie.
func (p *Platform) RecentOrders(ctx context.Context, cookie string, limit int) ([]ports.PlatformOrder, error) {
	if limit <= 0 {
		limit = 5
	}
	u := fmt.Sprintf("%s/api/v3/order/get_order_list?limit=%d", p.baseURL, limit)

	res, err := p.client.Call(ctx, Request{Method: http.MethodGet, URL: u, Cookie: cookie},
		Options{Family: platformFamily, Timeout: p.dataTimeout, DetectCookieExpiry: true})
	if err != nil {
		return nil, err
	}

	var body struct {
		Error int `json:"error"`
		Data  struct {
			OrderData struct {
				DetailsList []struct {
					InfoCard struct {
						OrderID    json.Number `json:"order_id"`
						FinalTotal int64       `json:"final_total"`
					} `json:"info_card"`
				} `json:"details_list"`
			} `json:"order_data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("decoding order list: %w", err))
	}

	orders := make([]ports.PlatformOrder, 0, len(body.Data.OrderData.DetailsList))
	for _, d := range body.Data.OrderData.DetailsList {
		orders = append(orders, ports.PlatformOrder{
			OrderID:    d.InfoCard.OrderID.String(),
			FinalTotal: d.InfoCard.FinalTotal,
		})
	}
	return orders, nil
}

// OrderDetail fetches one order and opportunistically extracts driver and
// vehicle fields from whichever subtree carries them.
func (p *Platform) OrderDetail(ctx context.Context, cookie, orderID string) (*ports.PlatformOrderDetail, error) {
	u := fmt.Sprintf("%s/api/v3/order/get_order_detail?order_id=%s", p.baseURL, url.QueryEscape(orderID))

	res, err := p.client.Call(ctx, Request{Method: http.MethodGet, URL: u, Cookie: cookie},
		Options{Family: platformFamily, Timeout: p.dataTimeout, DetectCookieExpiry: true})
	if err != nil {
		return nil, err
	}

	var body struct {
		Error    int             `json:"error"`
		ErrorMsg string          `json:"error_msg"`
		Data     json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("decoding order detail: %w", err))
	}

	detail := &ports.PlatformOrderDetail{OrderID: orderID}

	var data struct {
		Shipping struct {
			Name string `json:"name"`
		} `json:"shipping"`
		Address        string `json:"address"`
		ProcessingInfo struct {
			InfoRows []struct {
				Text string `json:"text"`
			} `json:"info_rows"`
		} `json:"processing_info"`
	}
	if err := json.Unmarshal(body.Data, &data); err == nil {
		detail.ShippingName = data.Shipping.Name
		detail.Address = data.Address
		for _, row := range data.ProcessingInfo.InfoRows {
			if row.Text != "" {
				detail.InfoRows = append(detail.InfoRows, row.Text)
			}
		}
	}

	detail.Shipper = extractShipper(body.Data)
	return detail, nil
}

// shipperSubtrees are probed in order; the first populated field of each
// kind wins.
var shipperSubtrees = []string{"shipping", "tracking_info", "delivery_info", "driver_info"}

func extractShipper(data json.RawMessage) ports.PlatformShipper {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return ports.PlatformShipper{}
	}

	var out ports.PlatformShipper
	for _, key := range shipperSubtrees {
		raw, ok := root[key]
		if !ok {
			continue
		}
		var sub struct {
			DriverPhone  string `json:"driver_phone"`
			DriverName   string `json:"driver_name"`
			Phone        string `json:"phone"`
			Name         string `json:"name"`
			VehiclePlate string `json:"vehicle_plate"`
			Plate        string `json:"plate"`
		}
		if err := json.Unmarshal(raw, &sub); err != nil {
			continue
		}
		if out.DriverPhone == "" {
			if sub.DriverPhone != "" {
				out.DriverPhone = sub.DriverPhone
			} else if key != "shipping" && sub.Phone != "" {
				out.DriverPhone = sub.Phone
			}
		}
		if out.DriverName == "" {
			if sub.DriverName != "" {
				out.DriverName = sub.DriverName
			} else if key == "driver_info" && sub.Name != "" {
				out.DriverName = sub.Name
			}
		}
		if out.VehiclePlate == "" {
			if sub.VehiclePlate != "" {
				out.VehiclePlate = sub.VehiclePlate
			} else if sub.Plate != "" {
				out.VehiclePlate = sub.Plate
			}
		}
	}
	return out
}

// AccountInfo returns the account payload plus the refreshed SPC_F cookie
// the platform sets on every call.
func (p *Platform) AccountInfo(ctx context.Context, cookie string) (*ports.PlatformAccount, string, error) {
	u := p.baseURL + "/api/v2/user/account_info"

	res, err := p.client.Call(ctx, Request{Method: http.MethodGet, URL: u, Cookie: cookie},
		Options{Family: platformFamily, Timeout: p.dataTimeout, DetectCookieExpiry: true})
	if err != nil {
		return nil, "", err
	}

	var body struct {
		Error int                   `json:"error"`
		Data  ports.PlatformAccount `json:"data"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, "", apperror.ErrUpstreamUnavailable(fmt.Errorf("decoding account info: %w", err))
	}

	var refreshed string
	for _, sc := range res.SetCookies() {
		if strings.HasPrefix(sc, "SPC_F=") {
			refreshed = strings.SplitN(sc, ";", 2)[0]
			break
		}
	}
	return &body.Data, refreshed, nil
}

// VoucherCatalogue fetches the claimable voucher list. The retry pass goes
// through the proxy pool.
func (p *Platform) VoucherCatalogue(ctx context.Context, cookie string, withProxy bool) ([]ports.PlatformVoucher, error) {
	u := p.baseURL + "/api/v2/voucher_wallet/get_claimable_vouchers"
	req := Request{Method: http.MethodGet, URL: u, Cookie: cookie}
	opts := Options{Family: platformFamily, Timeout: p.dataTimeout, DetectCookieExpiry: true}

	var (
		res *Result
		err error
	)
	if withProxy {
		res, err = p.client.CallWithFailover(ctx, req, opts, p.proxies, 3)
	} else {
		res, err = p.client.Call(ctx, req, opts)
	}
	if err != nil {
		return nil, err
	}

	var body struct {
		Error int `json:"error"`
		Data  struct {
			Vouchers []ports.PlatformVoucher `json:"vouchers"`
		} `json:"data"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("decoding voucher catalogue: %w", err))
	}
	return body.Data.Vouchers, nil
}

// SaveVoucher posts one claim. The returned int is the platform error code;
// 0 means the voucher was saved.
func (p *Platform) SaveVoucher(ctx context.Context, cookie string, voucher ports.PlatformVoucher) (int, error) {
	u := p.baseURL + "/api/v2/voucher_wallet/save_voucher"

	payload, err := json.Marshal(map[string]string{
		"voucher_promotionid":         voucher.PromotionID,
		"signature":                   voucher.Signature,
		"security_device_fingerprint": "",
		"signature_source":            "0",
	})
	if err != nil {
		return -1, apperror.InternalError(err)
	}

	res, err := p.client.Call(ctx, Request{
		Method:  http.MethodPost,
		URL:     u,
		Cookie:  cookie,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    payload,
	}, Options{Family: platformFamily, Timeout: p.dataTimeout})
	if err != nil {
		return -1, err
	}
	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return -1, apperror.ErrCookieExpired()
	}

	var body struct {
		Error int `json:"error"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return -1, apperror.ErrUpstreamUnavailable(fmt.Errorf("decoding save response: %w", err))
	}
	return body.Error, nil
}
