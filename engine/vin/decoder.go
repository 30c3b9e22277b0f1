package vin

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/maiwanamini/unnamed-tms-backend/engine/domain"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/fn"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/metrics"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/resilience"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Mode selects which providers a Decoder consults.
type Mode string

const (
	// ModeAuto queries both providers concurrently and merges the answers.
	ModeAuto Mode = "auto"
	// ModePrimary tries the primary provider and falls back to NHTSA.
	ModePrimary Mode = "vincario"
	// ModeNHTSA uses NHTSA only.
	ModeNHTSA Mode = "nhtsa"
)

// ParseMode maps a provider setting to a Mode. Unknown and empty values
// select ModeAuto.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nhtsa":
		return ModeNHTSA
	case "vincario", "vindecoder", "vindecoder_eu":
		return ModePrimary
	default:
		return ModeAuto
	}
}

// Options configures a Decoder.
type Options struct {
	Mode Mode
	// Now supplies the current year for model-year checks. Default time.Now.
	Now func() time.Time
	// Metrics, if set, receives decode and provider counters.
	Metrics *metrics.Registry
	// Breaker, if set, guards each provider with its own circuit breaker.
	Breaker *resilience.BreakerOpts
}

// DefaultOptions returns auto mode with no metrics or breakers.
func DefaultOptions() Options {
	return Options{Mode: ModeAuto, Now: time.Now}
}

type providerCall struct {
	name  string
	stage fn.Stage[string, *Vehicle]
}

// Decoder validates VINs and reconciles provider answers. It holds no
// per-request state and is safe for concurrent use.
type Decoder struct {
	primary  providerCall
	fallback providerCall
	opts     Options
	logger   *slog.Logger
}

// New creates a Decoder. primary is normally Vincario and fallback NHTSA.
func New(primary, fallback Provider, opts Options, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Mode == "" {
		opts.Mode = ModeAuto
	}
	opts.Now = nowOr(opts.Now)
	d := &Decoder{opts: opts, logger: logger.With("component", "vin")}
	d.primary = d.wrap(primary)
	d.fallback = d.wrap(fallback)
	return d
}

// Mode returns the configured mode.
func (d *Decoder) Mode() Mode { return d.opts.Mode }

// wrap turns p into a traced, optionally breaker-guarded stage that records
// provider metrics.
func (d *Decoder) wrap(p Provider) providerCall {
	name := p.Name()
	stage := fn.Stage[string, *Vehicle](func(ctx context.Context, vin string) fn.Result[*Vehicle] {
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("vin.provider", name))
		start := time.Now()
		v, err := p.Decode(ctx, vin)
		d.observeProvider(name, v, err, start)
		return fn.FromPair(v, err)
	})
	if d.opts.Breaker != nil {
		bo := *d.opts.Breaker
		bo.Name = name
		stage = resilience.BreakerStage(resilience.NewBreaker(bo), stage)
	}
	return providerCall{name: name, stage: fn.TracedStage("vin.provider."+name, stage)}
}

func (d *Decoder) observeProvider(name string, v *Vehicle, err error, start time.Time) {
	if d.opts.Metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case v == nil:
		outcome = "empty"
	}
	d.opts.Metrics.Counter(metrics.WithLabels("tms_vin_provider_calls_total", "provider", name, "outcome", outcome),
		"VIN provider calls by outcome").Inc()
	d.opts.Metrics.Histogram(metrics.WithLabels("tms_vin_provider_duration_seconds", "provider", name),
		"VIN provider latency", nil).Since(start)
}

func (d *Decoder) observeDecode(err error) {
	if d.opts.Metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = strings.ToLower(domain.ErrorCode(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	d.opts.Metrics.Counter(metrics.WithLabels("tms_vin_decode_total", "mode", string(d.opts.Mode), "outcome", outcome),
		"VIN decodes by mode and outcome").Inc()
}

// Decode validates raw and decodes it according to the configured Mode.
//
// Validation failures wrap domain.ErrVINRequired or domain.ErrVINInvalid and
// happen before any provider is called. When no provider has an answer the
// error wraps domain.ErrVINNotFound. Provider errors are only returned when
// no other provider remains to try.
func (d *Decoder) Decode(ctx context.Context, raw string) (*Vehicle, error) {
	v, err := d.decode(ctx, raw)
	d.observeDecode(err)
	return v, err
}

func (d *Decoder) decode(ctx context.Context, raw string) (*Vehicle, error) {
	vin, err := domain.ValidateVIN(raw)
	if err != nil {
		return nil, err
	}

	var a, b *Vehicle
	switch d.opts.Mode {
	case ModeNHTSA:
		if b, err = d.fallback.stage(ctx, vin).Unwrap(); err != nil {
			return nil, err
		}
	case ModePrimary:
		a = d.tolerant(ctx, d.primary, vin)
		if a == nil {
			if b, err = d.fallback.stage(ctx, vin).Unwrap(); err != nil {
				return nil, err
			}
		}
	default:
		both := fn.FanOut(
			func() *Vehicle { return d.tolerant(ctx, d.primary, vin) },
			func() *Vehicle { return d.tolerant(ctx, d.fallback, vin) },
		)
		a, b = both[0], both[1]
	}

	v := Merge(vin, a, b, d.opts.Now().Year())
	if v == nil {
		return nil, domain.NewValidationError("vin", vin, domain.ErrVINNotFound)
	}
	return v, nil
}

// tolerant calls c and downgrades an error to "no answer".
func (d *Decoder) tolerant(ctx context.Context, c providerCall, vin string) *Vehicle {
	v, err := c.stage(ctx, vin).Unwrap()
	if err != nil {
		d.logger.Warn("vin provider failed", "provider", c.name, "vin", vin, "err", err)
		return nil
	}
	return v
}

// Merge reconciles a primary answer a with a fallback answer b. With only
// one present it is returned as is. With both, the year is a's else b's
// (checked against the VIN again), model and type are a's unless empty,
// and Raw records both providers.
func Merge(vin string, a, b *Vehicle, currentYear int) *Vehicle {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}

	year := a.Year
	if year == nil {
		year = b.Year
	}
	if year != nil {
		if y, ok := CoerceYear(vin, float64(*year), currentYear); ok {
			year = intPtr(y)
		}
	}

	return &Vehicle{
		VIN:   vin,
		Year:  year,
		Model: firstNonEmpty(a.Model, b.Model),
		Type:  fn.Coalesce(a.Type, b.Type),
		Raw: Raw{
			Provider: string(ModeAuto),
			Providers: map[string]Raw{
				a.Raw.Provider: a.Raw,
				b.Raw.Provider: b.Raw,
			},
		},
	}
}
