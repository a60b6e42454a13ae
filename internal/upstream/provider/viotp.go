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

// Viotp selects carriers with uppercase network names. Envelope is
// `{status_code, message, data}` with 200 meaning success.
type Viotp struct {
	base
}

// NewViotp creates the viotp provider.
func NewViotp(client *upstream.Client, cfg config.ProviderConfig, log zerolog.Logger) *Viotp {
	return &Viotp{base{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		log:     log,
	}}
}

var _ ports.SMSProvider = (*Viotp)(nil)

func (v *Viotp) Name() string { return "viotp" }

var viotpNetworks = map[string]string{
	CarrierViettel:      "VIETTEL",
	CarrierMobifone:     "MOBIFONE",
	CarrierVinaphone:    "VINAPHONE",
	CarrierVietnamobile: "VIETNAMOBILE",
}

func (v *Viotp) RequestNumber(ctx context.Context, carrier string) (*ports.NumberResult, error) {
	q := url.Values{}
	q.Set("token", v.apiKey)
	q.Set("serviceId", "73")
	if carrier != CarrierAny {
		network, ok := viotpNetworks[carrier]
		if !ok {
			return nil, unknownCarrier(v.Name(), carrier)
		}
		q.Set("network", network)
	}

	res, err := v.get(ctx, v.Name(), v.baseURL+"/request/getv2?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		StatusCode int    `json:"status_code"`
		Message    string `json:"message"`
		Data       struct {
			RequestID   json.Number `json:"request_id"`
			PhoneNumber string      `json:"phone_number"`
		} `json:"data"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("viotp: decoding number response: %w", err))
	}
	if body.StatusCode != 200 {
		if strings.Contains(strings.ToLower(body.Message), "balance") ||
			strings.Contains(body.Message, "không đủ") {
			return nil, ports.ErrProviderOutOfBalance
		}
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("viotp: status %d: %s", body.StatusCode, body.Message))
	}

	return &ports.NumberResult{
		RequestID:   body.Data.RequestID.String(),
		PhoneNumber: body.Data.PhoneNumber,
		Raw:         res.Body,
	}, nil
}

func (v *Viotp) CancelNumber(ctx context.Context, requestID string) error {
	q := url.Values{}
	q.Set("token", v.apiKey)
	q.Set("requestId", requestID)

	res, err := v.get(ctx, v.Name(), v.baseURL+"/request/cancel?"+q.Encode(), nil)
	if err != nil {
		return err
	}

	var body struct {
		StatusCode int `json:"status_code"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return apperror.ErrUpstreamUnavailable(fmt.Errorf("viotp: decoding cancel response: %w", err))
	}
	if body.StatusCode != 200 {
		return apperror.ErrUpstreamUnavailable(fmt.Errorf("viotp: cancel status %d", body.StatusCode))
	}
	return nil
}

func (v *Viotp) GetOtp(ctx context.Context, requestID string) (*ports.OtpResult, error) {
	q := url.Values{}
	q.Set("token", v.apiKey)
	q.Set("requestId", requestID)

	res, err := v.get(ctx, v.Name(), v.baseURL+"/session/getv2?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		StatusCode int `json:"status_code"`
		Data       struct {
			// 0 waiting, 1 completed, 2 expired
			Status int    `json:"Status"`
			Code   string `json:"Code"`
		} `json:"data"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("viotp: decoding otp response: %w", err))
	}
	if body.StatusCode != 200 {
		return &ports.OtpResult{State: ports.OtpError, Retryable: true, Raw: res.Body}, nil
	}

	switch body.Data.Status {
	case 1:
		return &ports.OtpResult{State: ports.OtpCompleted, Code: body.Data.Code, Raw: res.Body}, nil
	case 2:
		return &ports.OtpResult{State: ports.OtpExpired, Raw: res.Body}, nil
	default:
		return &ports.OtpResult{State: ports.OtpWaiting, Raw: res.Body}, nil
	}
}

func (v *Viotp) Balance(ctx context.Context) (int64, error) {
	q := url.Values{}
	q.Set("token", v.apiKey)

	res, err := v.get(ctx, v.Name(), v.baseURL+"/users/balance?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}

	var body struct {
		StatusCode int `json:"status_code"`
		Data       struct {
			Balance int64 `json:"balance"`
		} `json:"data"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return 0, apperror.ErrUpstreamUnavailable(fmt.Errorf("viotp: decoding balance response: %w", err))
	}
	if body.StatusCode != 200 {
		return 0, apperror.ErrUpstreamUnavailable(fmt.Errorf("viotp: balance status %d", body.StatusCode))
	}
	return body.Data.Balance, nil
}
