package vin

import (
	"log/slog"
	"net/http"

	"github.com/maiwanamini/unnamed-tms-backend/pkg/config"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/metrics"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/resilience"
)

// BreakerOpts builds breaker options from cfg. State changes are logged
// and, when reg is set, exported as tms_breaker_state{name}.
func BreakerOpts(cfg config.Upstream, reg *metrics.Registry, logger *slog.Logger) resilience.BreakerOpts {
	if logger == nil {
		logger = slog.Default()
	}
	return resilience.BreakerOpts{
		FailThreshold: cfg.BreakerFailThreshold,
		Timeout:       cfg.BreakerOpenTimeout,
		HalfOpenMax:   1,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("circuit breaker state change", "upstream", name, "from", from.String(), "to", to.String())
			if reg != nil {
				reg.Gauge(metrics.WithLabels("tms_breaker_state", "name", name),
					"Circuit breaker state (0 closed, 1 open, 2 half-open)").Set(int64(to))
			}
		},
	}
}

// FromConfig wires both providers and a Decoder from service configuration.
// client is shared by the providers.
func FromConfig(cfg config.Config, client *http.Client, reg *metrics.Registry, logger *slog.Logger) *Decoder {
	primary := NewVincario(VincarioConfig{
		APIKey:    cfg.VIN.VincarioKey,
		SecretKey: cfg.VIN.VincarioSecret,
		Prefix:    cfg.VIN.VincarioPrefix,
		Client:    client,
	})
	fallback := NewNHTSA(NHTSAConfig{Base: cfg.VIN.NHTSABase, Client: client})

	bo := BreakerOpts(cfg.Upstream, reg, logger)
	opts := DefaultOptions()
	opts.Mode = ParseMode(cfg.VIN.Provider)
	opts.Metrics = reg
	opts.Breaker = &bo

	d := New(primary, fallback, opts, logger)
	if opts.Mode != ModeNHTSA && !primary.Configured() {
		d.logger.Info("vincario credentials missing, using nhtsa only", "mode", opts.Mode)
	}
	return d
}
