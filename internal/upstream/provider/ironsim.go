package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"phone-rental-gateway/config"
	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/internal/upstream"
	"phone-rental-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// Ironsim authenticates with an X-Api-Key header and selects carriers with
// numeric network ids (0 = any). Envelope is `{code, message, result}` with
// code 0 meaning success.
type Ironsim struct {
	base
}

// NewIronsim creates the ironsim provider.
func NewIronsim(client *upstream.Client, cfg config.ProviderConfig, log zerolog.Logger) *Ironsim {
	return &Ironsim{base{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		log:     log,
	}}
}

var _ ports.SMSProvider = (*Ironsim)(nil)

func (i *Ironsim) Name() string { return "ironsim" }

func (i *Ironsim) headers() map[string]string {
	return map[string]string{"X-Api-Key": i.apiKey}
}

var ironsimNetworkIDs = map[string]int{
	CarrierViettel:      10,
	CarrierMobifone:     20,
	CarrierVinaphone:    30,
	CarrierVietnamobile: 40,
}

func (i *Ironsim) RequestNumber(ctx context.Context, carrier string) (*ports.NumberResult, error) {
	networkID := 0
	if carrier != CarrierAny {
		id, ok := ironsimNetworkIDs[carrier]
		if !ok {
			return nil, unknownCarrier(i.Name(), carrier)
		}
		networkID = id
	}

	q := url.Values{}
	q.Set("network_id", strconv.Itoa(networkID))

	res, err := i.get(ctx, i.Name(), i.baseURL+"/v1/numbers/rent?"+q.Encode(), i.headers())
	if err != nil {
		return nil, err
	}

	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Result  struct {
			OrderID string `json:"order_id"`
			Msisdn  string `json:"msisdn"`
		} `json:"result"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("ironsim: decoding number response: %w", err))
	}
	switch body.Code {
	case 0:
	case 402:
		return nil, ports.ErrProviderOutOfBalance
	default:
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("ironsim: code %d: %s", body.Code, body.Message))
	}

	return &ports.NumberResult{
		RequestID:   body.Result.OrderID,
		PhoneNumber: body.Result.Msisdn,
		Raw:         res.Body,
	}, nil
}

func (i *Ironsim) CancelNumber(ctx context.Context, requestID string) error {
	q := url.Values{}
	q.Set("order_id", requestID)

	res, err := i.get(ctx, i.Name(), i.baseURL+"/v1/numbers/cancel?"+q.Encode(), i.headers())
	if err != nil {
		return err
	}

	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return apperror.ErrUpstreamUnavailable(fmt.Errorf("ironsim: decoding cancel response: %w", err))
	}
	if body.Code != 0 {
		return apperror.ErrUpstreamUnavailable(fmt.Errorf("ironsim: cancel code %d: %s", body.Code, body.Message))
	}
	return nil
}

func (i *Ironsim) GetOtp(ctx context.Context, requestID string) (*ports.OtpResult, error) {
	q := url.Values{}
	q.Set("order_id", requestID)

	res, err := i.get(ctx, i.Name(), i.baseURL+"/v1/numbers/sms?"+q.Encode(), i.headers())
	if err != nil {
		return nil, err
	}

	var body struct {
		Code   int `json:"code"`
		Result struct {
			// 0 pending, 1 received, 2 expired
			State int    `json:"state"`
			Otp   string `json:"otp"`
		} `json:"result"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("ironsim: decoding otp response: %w", err))
	}
	if body.Code != 0 {
		return &ports.OtpResult{State: ports.OtpError, Retryable: true, Raw: res.Body}, nil
	}

	switch body.Result.State {
	case 1:
		return &ports.OtpResult{State: ports.OtpCompleted, Code: body.Result.Otp, Raw: res.Body}, nil
	case 2:
		return &ports.OtpResult{State: ports.OtpExpired, Raw: res.Body}, nil
	default:
		return &ports.OtpResult{State: ports.OtpWaiting, Raw: res.Body}, nil
	}
}

func (i *Ironsim) Balance(ctx context.Context) (int64, error) {
	res, err := i.get(ctx, i.Name(), i.baseURL+"/v1/account/balance", i.headers())
	if err != nil {
		return 0, err
	}

	var body struct {
		Code   int `json:"code"`
		Result struct {
			Balance int64 `json:"balance"`
		} `json:"result"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return 0, apperror.ErrUpstreamUnavailable(fmt.Errorf("ironsim: decoding balance response: %w", err))
	}
	if body.Code != 0 {
		return 0, apperror.ErrUpstreamUnavailable(fmt.Errorf("ironsim: balance code %d", body.Code))
	}
	return body.Result.Balance, nil
}
