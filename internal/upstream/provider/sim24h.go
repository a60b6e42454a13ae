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

// Sim24h selects carriers with a bit-flag mask (viettel=1, mobifone=2,
// vinaphone=4, vietnamobile=8); the empty carrier sends the full mask.
// Envelope is `{status int, msg}` with 1 meaning success. No cancellation
// endpoint.
type Sim24h struct {
	base
}

// NewSim24h creates the sim24h provider.
func NewSim24h(client *upstream.Client, cfg config.ProviderConfig, log zerolog.Logger) *Sim24h {
	return &Sim24h{base{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		log:     log,
	}}
}

var _ ports.SMSProvider = (*Sim24h)(nil)

func (s *Sim24h) Name() string { return "sim24h" }

var sim24hCarrierBits = map[string]int{
	CarrierViettel:      1,
	CarrierMobifone:     2,
	CarrierVinaphone:    4,
	CarrierVietnamobile: 8,
}

const sim24hAllCarriers = 1 | 2 | 4 | 8

func sim24hMask(carrier string) (int, error) {
	if carrier == CarrierAny {
		return sim24hAllCarriers, nil
	}
	bit, ok := sim24hCarrierBits[carrier]
	if !ok {
		return 0, unknownCarrier("sim24h", carrier)
	}
	return bit, nil
}

func (s *Sim24h) RequestNumber(ctx context.Context, carrier string) (*ports.NumberResult, error) {
	mask, err := sim24hMask(carrier)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("act", "number")
	q.Set("apik", s.apiKey)
	q.Set("carrier", strconv.Itoa(mask))

	res, err := s.get(ctx, s.Name(), s.baseURL+"/api?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		Status int         `json:"status"`
		Msg    string      `json:"msg"`
		ID     json.Number `json:"id"`
		Number string      `json:"number"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("sim24h: decoding number response: %w", err))
	}
	if body.Status != 1 {
		if strings.Contains(strings.ToLower(body.Msg), "het tien") ||
			strings.Contains(strings.ToLower(body.Msg), "hết tiền") {
			return nil, ports.ErrProviderOutOfBalance
		}
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("sim24h: %s", body.Msg))
	}

	return &ports.NumberResult{
		RequestID:   body.ID.String(),
		PhoneNumber: body.Number,
		Raw:         res.Body,
	}, nil
}

func (s *Sim24h) CancelNumber(ctx context.Context, requestID string) error {
	return ports.ErrCancelNotSupported
}

func (s *Sim24h) GetOtp(ctx context.Context, requestID string) (*ports.OtpResult, error) {
	q := url.Values{}
	q.Set("act", "code")
	q.Set("apik", s.apiKey)
	q.Set("id", requestID)

	res, err := s.get(ctx, s.Name(), s.baseURL+"/api?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		Status int    `json:"status"`
		Msg    string `json:"msg"`
		Code   string `json:"code"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("sim24h: decoding otp response: %w", err))
	}

	switch {
	case body.Status == 1 && body.Code != "":
		return &ports.OtpResult{State: ports.OtpCompleted, Code: body.Code, Raw: res.Body}, nil
	case body.Status == 1:
		return &ports.OtpResult{State: ports.OtpWaiting, Raw: res.Body}, nil
	case strings.Contains(strings.ToLower(body.Msg), "het han"),
		strings.Contains(strings.ToLower(body.Msg), "hết hạn"):
		return &ports.OtpResult{State: ports.OtpExpired, Raw: res.Body}, nil
	default:
		return &ports.OtpResult{State: ports.OtpError, Retryable: true, Raw: res.Body}, nil
	}
}

func (s *Sim24h) Balance(ctx context.Context) (int64, error) {
	q := url.Values{}
	q.Set("act", "balance")
	q.Set("apik", s.apiKey)

	res, err := s.get(ctx, s.Name(), s.baseURL+"/api?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}

	var body struct {
		Status  int   `json:"status"`
		Balance int64 `json:"balance"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return 0, apperror.ErrUpstreamUnavailable(fmt.Errorf("sim24h: decoding balance response: %w", err))
	}
	if body.Status != 1 {
		return 0, apperror.ErrUpstreamUnavailable(fmt.Errorf("sim24h: balance status %d", body.Status))
	}
	return body.Balance, nil
}
