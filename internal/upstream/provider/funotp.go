package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"phone-rental-gateway/config"
	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/internal/upstream"
	"phone-rental-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// Funotp selects carriers with lowercase string keys and wraps everything in
// `{error_code, data}`; error_code 0 is success, 2 means the provider-side
// balance is gone.
type Funotp struct {
	base
}

// NewFunotp creates the funotp provider.
func NewFunotp(client *upstream.Client, cfg config.ProviderConfig, log zerolog.Logger) *Funotp {
	return &Funotp{base{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		log:     log,
	}}
}

var _ ports.SMSProvider = (*Funotp)(nil)

func (f *Funotp) Name() string { return "funotp" }

const funotpOutOfBalanceCode = 2

func (f *Funotp) RequestNumber(ctx context.Context, carrier string) (*ports.NumberResult, error) {
	if carrier != CarrierAny {
		switch carrier {
		case CarrierViettel, CarrierMobifone, CarrierVinaphone, CarrierVietnamobile:
		default:
			return nil, unknownCarrier(f.Name(), carrier)
		}
	}

	q := url.Values{}
	q.Set("key", f.apiKey)
	if carrier != CarrierAny {
		q.Set("network", carrier)
	}

	res, err := f.get(ctx, f.Name(), f.baseURL+"/api/number/get?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		ErrorCode int `json:"error_code"`
		Data      struct {
			RequestID string `json:"request_id"`
			Phone     string `json:"phone"`
		} `json:"data"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("funotp: decoding number response: %w", err))
	}
	switch body.ErrorCode {
	case 0:
	case funotpOutOfBalanceCode:
		return nil, ports.ErrProviderOutOfBalance
	default:
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("funotp: error_code %d", body.ErrorCode))
	}

	return &ports.NumberResult{
		RequestID:   body.Data.RequestID,
		PhoneNumber: body.Data.Phone,
		Raw:         res.Body,
	}, nil
}

func (f *Funotp) CancelNumber(ctx context.Context, requestID string) error {
	return ports.ErrCancelNotSupported
}

func (f *Funotp) GetOtp(ctx context.Context, requestID string) (*ports.OtpResult, error) {
	q := url.Values{}
	q.Set("key", f.apiKey)
	q.Set("request_id", requestID)

	res, err := f.get(ctx, f.Name(), f.baseURL+"/api/otp/get?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		ErrorCode int `json:"error_code"`
		Data      struct {
			Status string `json:"status"` // pending | done | expired
			Otp    string `json:"otp"`
		} `json:"data"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("funotp: decoding otp response: %w", err))
	}
	if body.ErrorCode != 0 {
		return &ports.OtpResult{State: ports.OtpError, Retryable: true, Raw: res.Body}, nil
	}

	switch body.Data.Status {
	case "done":
		return &ports.OtpResult{State: ports.OtpCompleted, Code: body.Data.Otp, Raw: res.Body}, nil
	case "expired":
		return &ports.OtpResult{State: ports.OtpExpired, Raw: res.Body}, nil
	default:
		return &ports.OtpResult{State: ports.OtpWaiting, Raw: res.Body}, nil
	}
}

func (f *Funotp) Balance(ctx context.Context) (int64, error) {
	q := url.Values{}
	q.Set("key", f.apiKey)

	res, err := f.get(ctx, f.Name(), f.baseURL+"/api/balance?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}

	var body struct {
		ErrorCode int `json:"error_code"`
		Data      struct {
			Balance int64 `json:"balance"`
		} `json:"data"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return 0, apperror.ErrUpstreamUnavailable(fmt.Errorf("funotp: decoding balance response: %w", err))
	}
	if body.ErrorCode != 0 {
		return 0, apperror.ErrUpstreamUnavailable(fmt.Errorf("funotp: balance error_code %d", body.ErrorCode))
	}
	return body.Data.Balance, nil
}
