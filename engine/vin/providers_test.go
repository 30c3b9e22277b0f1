package vin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maiwanamini/unnamed-tms-backend/engine/domain"
)

const (
	freightlinerVIN = "1M8GDM9AXKP042788"
	dafVIN          = "XLRTEH430A0123456"
)

func fixedNow() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

func vpicServer(t *testing.T, body string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		if !strings.HasPrefix(r.URL.Path, "/api/vehicles/DecodeVinValuesExtended/") {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("expected format=json, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNHTSA_Freightliner(t *testing.T) {
	var calls atomic.Int32
	srv := vpicServer(t, `{"Count":1,"Results":[{
		"Make":"Freightliner","Model":"","BodyClass":"Truck-Tractor",
		"VehicleType":"","ModelYear":"1989","ManufacturerName":"DAIMLER TRUCKS NORTH AMERICA"
	}]}`, &calls)

	n := NewNHTSA(NHTSAConfig{Base: srv.URL + "/", Now: fixedNow})
	v, err := n.Decode(context.Background(), freightlinerVIN)
	if err != nil {
		t.Fatal(err)
	}
	if v == nil {
		t.Fatal("expected a vehicle")
	}
	if v.Model != "Freightliner Truck-Tractor" {
		t.Errorf("model = %q", v.Model)
	}
	if v.Type != domain.TruckTractorUnit {
		t.Errorf("type = %q", v.Type)
	}
	if v.Year == nil || *v.Year != 1989 {
		t.Errorf("year = %v", v.Year)
	}
	if v.Raw.Provider != NHTSAName || v.Raw.Make != "Freightliner" || v.Raw.Model != "Truck-Tractor" {
		t.Errorf("raw = %+v", v.Raw)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestNHTSA_NoSignal(t *testing.T) {
	cases := map[string]string{
		"no results":           `{"Results":[]}`,
		"null result":          `{"Results":[null]}`,
		"empty body":           ``,
		"blank fields":         `{"Results":[{"Make":"","Model":"","ModelYear":"0","VehicleType":""}]}`,
		"fractional year only": `{"Results":[{"ModelYear":"2019.5"}]}`,
		"negative year only":   `{"Results":[{"ModelYear":"-2019"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := vpicServer(t, body, nil)
			v, err := NewNHTSA(NHTSAConfig{Base: srv.URL, Now: fixedNow}).Decode(context.Background(), freightlinerVIN)
			if err != nil || v != nil {
				t.Fatalf("expected (nil, nil), got (%+v, %v)", v, err)
			}
		})
	}
}

func TestNHTSA_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewNHTSA(NHTSAConfig{Base: srv.URL}).Decode(context.Background(), freightlinerVIN)
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if ue.StatusCode != http.StatusServiceUnavailable || ue.Upstream != NHTSAName {
		t.Fatalf("unexpected %+v", ue)
	}
	if !strings.Contains(ue.Body, "maintenance") {
		t.Fatalf("expected body excerpt, got %q", ue.Body)
	}
}

func TestNHTSA_BadJSON(t *testing.T) {
	srv := vpicServer(t, `<html>`, nil)
	_, err := NewNHTSA(NHTSAConfig{Base: srv.URL}).Decode(context.Background(), freightlinerVIN)
	if err == nil || !strings.Contains(err.Error(), "nhtsa: decode") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestVincario_ControlSumAndURL(t *testing.T) {
	v := NewVincario(VincarioConfig{APIKey: "demo-key", SecretKey: "demo-secret"})
	if got := v.controlSum(dafVIN); got != "fb4f25d825" {
		t.Fatalf("controlSum = %q", got)
	}
	want := DefaultVincarioPrefix + "/demo-key/fb4f25d825/decode/" + dafVIN + ".json"
	if got := v.url(dafVIN); got != want {
		t.Fatalf("url = %q, want %q", got, want)
	}
}

func TestVincario_NotConfigured(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	for _, cfg := range []VincarioConfig{
		{Prefix: srv.URL},
		{Prefix: srv.URL, APIKey: "k"},
		{Prefix: srv.URL, SecretKey: "s"},
		{Prefix: srv.URL, APIKey: "  ", SecretKey: "s"},
	} {
		v := NewVincario(cfg)
		if v.Configured() {
			t.Fatalf("%+v should not be configured", cfg)
		}
		got, err := v.Decode(context.Background(), dafVIN)
		if got != nil || err != nil {
			t.Fatalf("expected (nil, nil), got (%+v, %v)", got, err)
		}
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no upstream calls, got %d", calls.Load())
	}
}

func TestVincario_Decode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "/3.2/demo-key/fb4f25d825/decode/" + dafVIN + ".json"
		if r.URL.Path != want {
			t.Errorf("path = %q, want %q", r.URL.Path, want)
		}
		w.Write([]byte(`{"decode":[
			{"label":"Make","value":"DAF"},
			{"label":"Manufacturer","value":"DAF Trucks N.V."},
			{"label":"Model","value":"XF 480"},
			{"label":"Model Year","value":2019},
			{"label":"Product Type","value":"Truck"},
			{"label":"Body","value":"Cab-over"}
		]}`))
	}))
	defer srv.Close()

	v, err := NewVincario(VincarioConfig{
		APIKey:    "demo-key",
		SecretKey: "demo-secret",
		Prefix:    srv.URL + "/3.2",
		Now:       fixedNow,
	}).Decode(context.Background(), dafVIN)
	if err != nil {
		t.Fatal(err)
	}
	if v == nil {
		t.Fatal("expected a vehicle")
	}
	if v.Model != "DAF XF 480" {
		t.Errorf("model = %q", v.Model)
	}
	if v.Type != domain.TruckTractorUnit {
		t.Errorf("type = %q", v.Type)
	}
	if v.Year == nil || *v.Year != 2019 {
		t.Errorf("year = %v", v.Year)
	}
	want := Raw{Provider: VincarioName, Make: "DAF", Model: "XF 480", VehicleType: "Truck", BodyClass: "Cab-over"}
	if v.Raw.Provider != want.Provider || v.Raw.Make != want.Make || v.Raw.Model != want.Model ||
		v.Raw.VehicleType != want.VehicleType || v.Raw.BodyClass != want.BodyClass {
		t.Errorf("raw = %+v, want %+v", v.Raw, want)
	}
}

func TestVincario_ModelFallsBackToBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"decode":[{"label":"Brand","value":"Scania"},{"label":"Body Class","value":"Flatbed"}]}`))
	}))
	defer srv.Close()

	v, err := NewVincario(VincarioConfig{APIKey: "k", SecretKey: "s", Prefix: srv.URL, Now: fixedNow}).
		Decode(context.Background(), dafVIN)
	if err != nil || v == nil {
		t.Fatalf("got (%+v, %v)", v, err)
	}
	if v.Model != "Scania Flatbed" || v.Type != domain.TruckFlatbed || v.Year != nil {
		t.Fatalf("unexpected %+v", v)
	}
}

func TestVincario_ErrorsHideCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	prefix := srv.URL
	srv.Close()

	_, err := NewVincario(VincarioConfig{APIKey: "top-secret-key", SecretKey: "s", Prefix: prefix}).
		Decode(context.Background(), dafVIN)
	if err == nil {
		t.Fatal("expected transport error")
	}
	if strings.Contains(err.Error(), "top-secret-key") {
		t.Fatalf("error leaks the API key: %v", err)
	}
}
