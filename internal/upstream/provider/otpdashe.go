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

// Otpdashe authenticates with a bearer token and uses string statuses
// throughout; carriers are uppercase short codes (VTL, MBF, VNP, VNM).
// No cancellation endpoint.
type Otpdashe struct {
	base
}

// NewOtpdashe creates the otpdashe provider.
func NewOtpdashe(client *upstream.Client, cfg config.ProviderConfig, log zerolog.Logger) *Otpdashe {
	return &Otpdashe{base{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		log:     log,
	}}
}

var _ ports.SMSProvider = (*Otpdashe)(nil)

func (o *Otpdashe) Name() string { return "otpdashe" }

func (o *Otpdashe) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + o.apiKey}
}

var otpdasheCarrierCodes = map[string]string{
	CarrierViettel:      "VTL",
	CarrierMobifone:     "MBF",
	CarrierVinaphone:    "VNP",
	CarrierVietnamobile: "VNM",
}

func (o *Otpdashe) RequestNumber(ctx context.Context, carrier string) (*ports.NumberResult, error) {
	q := url.Values{}
	if carrier != CarrierAny {
		code, ok := otpdasheCarrierCodes[carrier]
		if !ok {
			return nil, unknownCarrier(o.Name(), carrier)
		}
		q.Set("carrier", code)
	}

	res, err := o.get(ctx, o.Name(), o.baseURL+"/api/rent?"+q.Encode(), o.headers())
	if err != nil {
		return nil, err
	}

	var body struct {
		Status string `json:"status"` // ok | error
		Reason string `json:"reason"`
		Rental struct {
			Token string `json:"token"`
			Phone string `json:"phone"`
		} `json:"rental"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("otpdashe: decoding number response: %w", err))
	}
	if body.Status != "ok" {
		if body.Reason == "insufficient_funds" {
			return nil, ports.ErrProviderOutOfBalance
		}
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("otpdashe: %s", body.Reason))
	}

	return &ports.NumberResult{
		RequestID:   body.Rental.Token,
		PhoneNumber: body.Rental.Phone,
		Raw:         res.Body,
	}, nil
}

func (o *Otpdashe) CancelNumber(ctx context.Context, requestID string) error {
	return ports.ErrCancelNotSupported
}

func (o *Otpdashe) GetOtp(ctx context.Context, requestID string) (*ports.OtpResult, error) {
	q := url.Values{}
	q.Set("token", requestID)

	res, err := o.get(ctx, o.Name(), o.baseURL+"/api/sms?"+q.Encode(), o.headers())
	if err != nil {
		return nil, err
	}

	var body struct {
		Status string `json:"status"` // ok | error
		Reason string `json:"reason"`
		Sms    struct {
			State string `json:"state"` // waiting | received | expired
			Code  string `json:"code"`
		} `json:"sms"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("otpdashe: decoding otp response: %w", err))
	}
	if body.Status != "ok" {
		return &ports.OtpResult{State: ports.OtpError, Retryable: true, Raw: res.Body}, nil
	}

	switch body.Sms.State {
	case "received":
		return &ports.OtpResult{State: ports.OtpCompleted, Code: body.Sms.Code, Raw: res.Body}, nil
	case "expired":
		return &ports.OtpResult{State: ports.OtpExpired, Raw: res.Body}, nil
	default:
		return &ports.OtpResult{State: ports.OtpWaiting, Raw: res.Body}, nil
	}
}

func (o *Otpdashe) Balance(ctx context.Context) (int64, error) {
	res, err := o.get(ctx, o.Name(), o.baseURL+"/api/me", o.headers())
	if err != nil {
		return 0, err
	}

	var body struct {
		Status  string `json:"status"`
		Account struct {
			Balance int64 `json:"balance"`
		} `json:"account"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return 0, apperror.ErrUpstreamUnavailable(fmt.Errorf("otpdashe: decoding balance response: %w", err))
	}
	if body.Status != "ok" {
		return 0, apperror.ErrUpstreamUnavailable(fmt.Errorf("otpdashe: balance status %s", body.Status))
	}
	return body.Account.Balance, nil
}
