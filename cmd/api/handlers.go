package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/maiwanamini/unnamed-tms-backend/engine/domain"
	"github.com/maiwanamini/unnamed-tms-backend/engine/fleet"
	"github.com/maiwanamini/unnamed-tms-backend/engine/geo"
	"github.com/maiwanamini/unnamed-tms-backend/engine/vin"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/mid"
)

type vinDecoder interface {
	Decode(ctx context.Context, raw string) (*vin.Vehicle, error)
}

type geoClient interface {
	Autocomplete(ctx context.Context, q string, limit int) ([]geo.Suggestion, error)
	Directions(ctx context.Context, from, to geo.Point) (geo.Route, error)
}

type truckService interface {
	Create(ctx context.Context, in fleet.Input) (fleet.Truck, error)
	Get(ctx context.Context, id string) (fleet.Truck, error)
	List(ctx context.Context, companyID string, offset, limit int) (fleet.Page, error)
	Update(ctx context.Context, id string, in fleet.Input) (fleet.Truck, error)
	Delete(ctx context.Context, id string) error
	Prefill(ctx context.Context, raw string) (fleet.Truck, error)
}

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// errorBody is the JSON error shape. Field and Code are set for domain
// errors; Error carries the cause for unexpected failures.
type errorBody struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	mid.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeDomainError reports a coded domain error. It returns false when err
// carries no code, leaving the response to the caller.
func writeDomainError(w http.ResponseWriter, err error) bool {
	code := domain.ErrorCode(err)
	if code == "" {
		return false
	}
	body := errorBody{Message: err.Error(), Code: code}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body.Message = ve.Message()
		body.Field = ve.Field
	}

	status := http.StatusBadRequest
	switch code {
	case domain.CodeVINNotFound, domain.CodeTruckNotFound:
		status = http.StatusNotFound
		if code == domain.CodeVINNotFound {
			body.Message, body.Field = domain.ErrVINNotFound.Error(), "vin"
		} else {
			body.Message = domain.ErrTruckNotFound.Error()
		}
	case domain.CodeDuplicatePlate:
		status = http.StatusConflict
	}
	mid.WriteJSON(w, status, body)
	return true
}

func handleDecodeVIN(dec vinDecoder, pub *vin.Publisher, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := dec.Decode(r.Context(), r.URL.Query().Get("vin"))
		if err != nil {
			if writeDomainError(w, err) {
				return
			}
			logger.Error("vin decode failed", "err", err, "request_id", mid.RequestIDFrom(r.Context()))
			mid.WriteJSON(w, http.StatusInternalServerError, errorBody{Message: "Failed to decode VIN", Error: err.Error()})
			return
		}
		pub.Decoded(r.Context(), v)
		mid.WriteJSON(w, http.StatusOK, v)
	}
}

// writeGeoError maps a Mapbox failure to a response.
func writeGeoError(w http.ResponseWriter, err error, fallback string, logger *slog.Logger) {
	var ue *geo.UpstreamError
	switch {
	case errors.Is(err, geo.ErrNotConfigured):
		mid.WriteJSON(w, http.StatusInternalServerError, errorBody{Message: err.Error()})
	case errors.Is(err, geo.ErrInvalidPoint):
		mid.WriteJSON(w, http.StatusBadRequest, errorBody{Message: err.Error()})
	case errors.Is(err, geo.ErrNoRoute):
		mid.WriteJSON(w, http.StatusBadGateway, errorBody{Message: err.Error()})
	case errors.As(err, &ue):
		mid.WriteJSON(w, http.StatusBadGateway, map[string]any{
			"message": "Mapbox request failed",
			"status":  ue.StatusCode,
			"details": ue.Body,
		})
	default:
		logger.Error("geo request failed", "err", err)
		mid.WriteJSON(w, http.StatusInternalServerError, errorBody{Message: fallback, Error: err.Error()})
	}
}

func handleAutocomplete(g geoClient, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		out, err := g.Autocomplete(r.Context(), q.Get("q"), geo.ClampLimit(q.Get("limit")))
		if err != nil {
			writeGeoError(w, err, "Failed to autocomplete address", logger)
			return
		}
		mid.WriteJSON(w, http.StatusOK, out)
	}
}

// parseCoord reads a query coordinate. Missing or malformed values are
// NaN, which geo rejects.
func parseCoord(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func handleDirections(g geoClient, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		from := geo.Point{Lat: parseCoord(q.Get("fromLat")), Lng: parseCoord(q.Get("fromLng"))}
		to := geo.Point{Lat: parseCoord(q.Get("toLat")), Lng: parseCoord(q.Get("toLng"))}
		route, err := g.Directions(r.Context(), from, to)
		if err != nil {
			writeGeoError(w, err, "Failed to fetch directions", logger)
			return
		}
		mid.WriteJSON(w, http.StatusOK, route)
	}
}

// decodeBody reads a JSON request body into v, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		mid.WriteJSON(w, http.StatusBadRequest, errorBody{Message: "invalid request body", Error: err.Error()})
		return false
	}
	return true
}

// writeTruckError reports a fleet failure; unexpected errors become 500
// with message.
func writeTruckError(w http.ResponseWriter, r *http.Request, err error, message string, logger *slog.Logger) {
	if writeDomainError(w, err) {
		return
	}
	logger.Error("truck request failed", "err", err, "request_id", mid.RequestIDFrom(r.Context()))
	mid.WriteJSON(w, http.StatusInternalServerError, errorBody{Message: message, Error: err.Error()})
}

func handleListTrucks(svc truckService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		offset, _ := strconv.Atoi(q.Get("offset"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		page, err := svc.List(r.Context(), q.Get("companyId"), offset, limit)
		if err != nil {
			writeTruckError(w, r, err, "Failed to fetch trucks", logger)
			return
		}
		mid.WriteJSON(w, http.StatusOK, page)
	}
}

func handleCreateTruck(svc truckService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in fleet.Input
		if !decodeBody(w, r, &in) {
			return
		}
		t, err := svc.Create(r.Context(), in)
		if err != nil {
			writeTruckError(w, r, err, "Failed to create truck", logger)
			return
		}
		mid.WriteJSON(w, http.StatusCreated, t)
	}
}

func handleGetTruck(svc truckService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := svc.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeTruckError(w, r, err, "Failed to fetch truck", logger)
			return
		}
		mid.WriteJSON(w, http.StatusOK, t)
	}
}

func handleUpdateTruck(svc truckService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in fleet.Input
		if !decodeBody(w, r, &in) {
			return
		}
		t, err := svc.Update(r.Context(), r.PathValue("id"), in)
		if err != nil {
			writeTruckError(w, r, err, "Failed to update truck", logger)
			return
		}
		mid.WriteJSON(w, http.StatusOK, t)
	}
}

func handleDeleteTruck(svc truckService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), r.PathValue("id")); err != nil {
			writeTruckError(w, r, err, "Failed to delete truck", logger)
			return
		}
		mid.WriteJSON(w, http.StatusOK, map[string]string{"message": "Truck deleted successfully"})
	}
}

// prefillRequest is the body of POST /api/trucks/prefill.
type prefillRequest struct {
	VIN string `json:"vin"`
}

func handlePrefillTruck(svc truckService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req prefillRequest
		if !decodeBody(w, r, &req) {
			return
		}
		draft, err := svc.Prefill(r.Context(), req.VIN)
		if err != nil {
			writeTruckError(w, r, err, "Failed to decode VIN", logger)
			return
		}
		mid.WriteJSON(w, http.StatusOK, draft)
	}
}
