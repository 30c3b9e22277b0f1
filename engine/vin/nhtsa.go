package vin

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maiwanamini/unnamed-tms-backend/pkg/mid"
)

// NHTSAName is the provider name reported in Raw.Provider.
const NHTSAName = "nhtsa"

// DefaultNHTSABase is the public vPIC host.
const DefaultNHTSABase = "https://vpic.nhtsa.dot.gov"

// NHTSAConfig configures the NHTSA vPIC adapter.
type NHTSAConfig struct {
	Base   string // default DefaultNHTSABase
	Client *http.Client
	Now    func() time.Time
}

// NHTSA decodes VINs with the vPIC DecodeVinValuesExtended endpoint. It
// needs no credentials.
type NHTSA struct {
	base   string
	client *http.Client
	now    func() time.Time
}

func NewNHTSA(cfg NHTSAConfig) *NHTSA {
	base := strings.TrimRight(strings.TrimSpace(cfg.Base), "/")
	if base == "" {
		base = DefaultNHTSABase
	}
	return &NHTSA{base: base, client: defaultClient(cfg.Client), now: nowOr(cfg.Now)}
}

func (n *NHTSA) Name() string { return NHTSAName }

// vpicResult holds the fields read from the first Results element. vPIC
// reports every value as a string.
type vpicResult struct {
	Make             string `json:"Make"`
	ManufacturerName string `json:"ManufacturerName"`
	Manufacturer     string `json:"Manufacturer"`
	Model            string `json:"Model"`
	ModelName        string `json:"ModelName"`
	Series           string `json:"Series"`
	Trim             string `json:"Trim"`
	BodyClass        string `json:"BodyClass"`
	VehicleType      string `json:"VehicleType"`
	ModelYear        string `json:"ModelYear"`
}

type vpicResponse struct {
	Results []*vpicResult `json:"Results"`
}

func (n *NHTSA) url(vin string) string {
	return n.base + "/api/vehicles/DecodeVinValuesExtended/" + url.PathEscape(vin) + "?format=json"
}

func (n *NHTSA) Decode(ctx context.Context, vin string) (*Vehicle, error) {
	resp, err := mid.GetJSON[vpicResponse](ctx, n.client, NHTSAName, n.url(vin)).Unwrap()
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 || resp.Results[0] == nil {
		return nil, nil
	}
	r := resp.Results[0]

	make_ := firstNonEmpty(r.Make, r.ManufacturerName, r.Manufacturer)
	// BodyClass is the last resort: still more telling than the make alone.
	modelName := firstNonEmpty(r.Model, r.ModelName, r.Series, r.Trim, r.BodyClass)
	typ := Classify(Fields{VehicleType: r.VehicleType, BodyClass: r.BodyClass, Make: r.Make, Model: r.Model})

	raw := Raw{
		Provider:    NHTSAName,
		Make:        make_,
		Model:       modelName,
		VehicleType: strings.TrimSpace(r.VehicleType),
		BodyClass:   strings.TrimSpace(r.BodyClass),
	}
	return buildVehicle(vin, r.ModelYear, combineModel(make_, modelName), typ, raw, n.now().Year()), nil
}
