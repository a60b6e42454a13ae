// Package provider implements the closed set of SMS rental providers behind
// ports.SMSProvider. Each upstream speaks its own dialect: carrier selectors
// are strings, numeric ids, or bit-flag masks depending on the provider, and
// the response envelopes differ per vendor.
package provider

import (
	"context"
	"fmt"
	"net/http"

	"phone-rental-gateway/config"
	"phone-rental-gateway/internal/core/domain"
	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/internal/upstream"

	"github.com/rs/zerolog"
)

// Normalized carrier selectors accepted by every provider. The empty string
// means "any carrier".
const (
	CarrierAny          = ""
	CarrierViettel      = "viettel"
	CarrierMobifone     = "mobifone"
	CarrierVinaphone    = "vinaphone"
	CarrierVietnamobile = "vietnamobile"
)

// base carries the shared HTTP plumbing of a provider implementation.
type base struct {
	client  *upstream.Client
	baseURL string
	apiKey  string
	log     zerolog.Logger
}

func (b *base) get(ctx context.Context, family, url string, headers map[string]string) (*upstream.Result, error) {
	return b.client.Call(ctx, upstream.Request{
		Method:  http.MethodGet,
		URL:     url,
		Headers: headers,
	}, upstream.Options{Family: family})
}

func unknownCarrier(provider, carrier string) error {
	return fmt.Errorf("%s: unsupported carrier %q", provider, carrier)
}

// Registry holds the closed provider set and the tier bindings.
type Registry struct {
	byName map[string]ports.SMSProvider
	byTier map[domain.RentalTier]ports.SMSProvider
}

// NewRegistry constructs all six providers from config and binds the
// rentable tiers, including the secondary platform tier. All providers
// remain reachable by name for balance reporting even when not bound to
// a tier.
func NewRegistry(client *upstream.Client, cfg config.ProvidersConfig, log zerolog.Logger) *Registry {
	viotp := NewViotp(client, cfg.Viotp, log)
	chaylua := NewChaylua(client, cfg.Chaylua, log)
	sim24h := NewSim24h(client, cfg.Sim24h, log)
	funotp := NewFunotp(client, cfg.Funotp, log)
	ironsim := NewIronsim(client, cfg.Ironsim, log)
	otpdashe := NewOtpdashe(client, cfg.Otpdashe, log)

	r := &Registry{
		byName: map[string]ports.SMSProvider{
			viotp.Name():    viotp,
			chaylua.Name():  chaylua,
			sim24h.Name():   sim24h,
			funotp.Name():   funotp,
			ironsim.Name():  ironsim,
			otpdashe.Name(): otpdashe,
		},
		byTier: map[domain.RentalTier]ports.SMSProvider{
			domain.TierOne:      viotp,
			domain.TierTwo:      chaylua,
			domain.TierThree:    sim24h,
			domain.TierPlatform: funotp,
		},
	}
	return r
}

// ForTier returns the provider bound to a rental tier.
func (r *Registry) ForTier(tier domain.RentalTier) (ports.SMSProvider, bool) {
	p, ok := r.byTier[tier]
	return p, ok
}

// ByName returns a provider by its identifier.
func (r *Registry) ByName(name string) (ports.SMSProvider, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// All returns every registered provider, for balance sweeps.
func (r *Registry) All() []ports.SMSProvider {
	out := make([]ports.SMSProvider, 0, len(r.byName))
	for _, p := range r.byName {
		out = append(out, p)
	}
	return out
}
