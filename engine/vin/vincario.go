package vin

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maiwanamini/unnamed-tms-backend/pkg/mid"
)

// VincarioName is the provider name reported in Raw.Provider.
const VincarioName = "vincario"

// DefaultVincarioPrefix is the vindecoder.eu API root.
const DefaultVincarioPrefix = "https://api.vindecoder.eu/3.2"

const vincarioAction = "decode"

// VincarioConfig configures the Vincario adapter. Without both keys the
// adapter is disabled and Decode returns (nil, nil).
type VincarioConfig struct {
	APIKey    string
	SecretKey string
	Prefix    string // default DefaultVincarioPrefix
	Client    *http.Client
	Now       func() time.Time
}

// Vincario decodes VINs with the vindecoder.eu (Vincario) API.
type Vincario struct {
	key    string
	secret string
	prefix string
	client *http.Client
	now    func() time.Time
}

func NewVincario(cfg VincarioConfig) *Vincario {
	prefix := strings.TrimRight(strings.TrimSpace(cfg.Prefix), "/")
	if prefix == "" {
		prefix = DefaultVincarioPrefix
	}
	return &Vincario{
		key:    strings.TrimSpace(cfg.APIKey),
		secret: strings.TrimSpace(cfg.SecretKey),
		prefix: prefix,
		client: defaultClient(cfg.Client),
		now:    nowOr(cfg.Now),
	}
}

func (v *Vincario) Name() string { return VincarioName }

// Configured reports whether both keys are set.
func (v *Vincario) Configured() bool { return v.key != "" && v.secret != "" }

// controlSum signs a request: the first 10 hex chars of
// sha1("vin|decode|key|secret").
func (v *Vincario) controlSum(vin string) string {
	sum := sha1.Sum([]byte(vin + "|" + vincarioAction + "|" + v.key + "|" + v.secret))
	return hex.EncodeToString(sum[:])[:10]
}

func (v *Vincario) url(vin string) string {
	return v.prefix + "/" + url.PathEscape(v.key) + "/" + url.PathEscape(v.controlSum(vin)) +
		"/" + vincarioAction + "/" + url.PathEscape(vin) + ".json"
}

type vincarioResponse struct {
	Decode []LabelEntry `json:"decode"`
}

func (v *Vincario) Decode(ctx context.Context, vin string) (*Vehicle, error) {
	if !v.Configured() {
		return nil, nil
	}
	resp, err := mid.GetJSON[vincarioResponse](ctx, v.client, VincarioName, v.url(vin)).Unwrap()
	if err != nil {
		return nil, err
	}
	labels := BuildLabelMap(resp.Decode)

	make_ := labels.Pick("make", "manufacturer", "manufacturer_name", "brand")
	model := labels.Pick("model", "model_name")
	year := labels.Pick("model_year", "production_year", "year")
	vehicleType := labels.Pick("product_type", "vehicle_type", "vehicle_category", "body")
	bodyClass := labels.Pick("body", "body_class", "cab_type", "series")
	modelName := firstNonEmpty(model, labels.Pick("series", "trim", "variant"), bodyClass)

	combined := combineModel(make_, modelName)
	typ := Classify(Fields{VehicleType: vehicleType, BodyClass: bodyClass, Make: make_, Model: combined})

	raw := Raw{
		Provider:    VincarioName,
		Make:        make_,
		Model:       modelName,
		VehicleType: vehicleType,
		BodyClass:   bodyClass,
	}
	return buildVehicle(vin, year, combined, typ, raw, v.now().Year()), nil
}
