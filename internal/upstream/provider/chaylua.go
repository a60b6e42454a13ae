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

// Chaylua selects carriers with numeric ids. Envelope is `{success bool,
// message, ...}`; OTP status is a string field.
type Chaylua struct {
	base
}

// NewChaylua creates the chaylua provider.
func NewChaylua(client *upstream.Client, cfg config.ProviderConfig, log zerolog.Logger) *Chaylua {
	return &Chaylua{base{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		log:     log,
	}}
}

var _ ports.SMSProvider = (*Chaylua)(nil)

func (c *Chaylua) Name() string { return "chaylua" }

var chayluaCarrierIDs = map[string]int{
	CarrierViettel:      1,
	CarrierMobifone:     2,
	CarrierVinaphone:    3,
	CarrierVietnamobile: 4,
}

func (c *Chaylua) RequestNumber(ctx context.Context, carrier string) (*ports.NumberResult, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	if carrier != CarrierAny {
		id, ok := chayluaCarrierIDs[carrier]
		if !ok {
			return nil, unknownCarrier(c.Name(), carrier)
		}
		q.Set("carrier_id", strconv.Itoa(id))
	}

	res, err := c.get(ctx, c.Name(), c.baseURL+"/api/get-number?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		Success bool        `json:"success"`
		Message string      `json:"message"`
		ID      json.Number `json:"id"`
		Phone   string      `json:"phone"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("chaylua: decoding number response: %w", err))
	}
	if !body.Success {
		if strings.Contains(strings.ToLower(body.Message), "so du") ||
			strings.Contains(strings.ToLower(body.Message), "số dư") {
			return nil, ports.ErrProviderOutOfBalance
		}
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("chaylua: %s", body.Message))
	}

	return &ports.NumberResult{
		RequestID:   body.ID.String(),
		PhoneNumber: body.Phone,
		Raw:         res.Body,
	}, nil
}

func (c *Chaylua) CancelNumber(ctx context.Context, requestID string) error {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("id", requestID)

	res, err := c.get(ctx, c.Name(), c.baseURL+"/api/cancel?"+q.Encode(), nil)
	if err != nil {
		return err
	}

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return apperror.ErrUpstreamUnavailable(fmt.Errorf("chaylua: decoding cancel response: %w", err))
	}
	if !body.Success {
		return apperror.ErrUpstreamUnavailable(fmt.Errorf("chaylua: cancel: %s", body.Message))
	}
	return nil
}

func (c *Chaylua) GetOtp(ctx context.Context, requestID string) (*ports.OtpResult, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("id", requestID)

	res, err := c.get(ctx, c.Name(), c.baseURL+"/api/get-otp?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		Success bool   `json:"success"`
		Status  string `json:"status"` // waiting | success | timeout
		Otp     string `json:"otp"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("chaylua: decoding otp response: %w", err))
	}
	if !body.Success {
		return &ports.OtpResult{State: ports.OtpError, Retryable: true, Raw: res.Body}, nil
	}

	switch body.Status {
	case "success":
		return &ports.OtpResult{State: ports.OtpCompleted, Code: body.Otp, Raw: res.Body}, nil
	case "timeout":
		return &ports.OtpResult{State: ports.OtpExpired, Raw: res.Body}, nil
	default:
		return &ports.OtpResult{State: ports.OtpWaiting, Raw: res.Body}, nil
	}
}

func (c *Chaylua) Balance(ctx context.Context) (int64, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)

	res, err := c.get(ctx, c.Name(), c.baseURL+"/api/balance?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}

	var body struct {
		Success bool  `json:"success"`
		Balance int64 `json:"balance"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return 0, apperror.ErrUpstreamUnavailable(fmt.Errorf("chaylua: decoding balance response: %w", err))
	}
	if !body.Success {
		return 0, apperror.ErrUpstreamUnavailable(fmt.Errorf("chaylua: balance query failed"))
	}
	return body.Balance, nil
}
