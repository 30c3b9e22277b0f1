package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maiwanamini/unnamed-tms-backend/engine/domain"
	"github.com/maiwanamini/unnamed-tms-backend/engine/vin"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/repo"
)

// Decoder is the part of vin.Decoder the Service uses.
type Decoder interface {
	Decode(ctx context.Context, raw string) (*vin.Vehicle, error)
}

// MaxPageSize caps List.
const MaxPageSize = 100

// Service implements the truck registry.
type Service struct {
	store   Store
	decoder Decoder
	now     func() time.Time
	newID   func() string
	logger  *slog.Logger
}

// NewService creates a Service. decoder may be nil, in which case Prefill
// reports domain.ErrVINNotFound.
func NewService(store Store, decoder Decoder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		decoder: decoder,
		now:     time.Now,
		newID:   uuid.NewString,
		logger:  logger.With("component", "fleet"),
	}
}

// Create validates in and stores a new truck. Status defaults to inactive.
func (s *Service) Create(ctx context.Context, in Input) (Truck, error) {
	now := s.now().UTC()
	t := Truck{ID: s.newID(), Status: domain.TruckInactive, CreatedAt: now, UpdatedAt: now}
	in.apply(&t)
	if t.Status == "" {
		t.Status = domain.TruckInactive
	}
	if err := domain.ValidateTruck(t.fields(), now.Year()); err != nil {
		return Truck{}, err
	}
	if err := s.checkPlate(ctx, t); err != nil {
		return Truck{}, err
	}

	created, err := s.store.Create(ctx, t)
	if err != nil {
		return Truck{}, s.mapWriteError("create", t, err)
	}
	s.logger.Info("truck created", "id", created.ID, "company", created.CompanyID, "plate", created.LicensePlate)
	return created, nil
}

// Get returns one truck.
func (s *Service) Get(ctx context.Context, id string) (Truck, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return Truck{}, mapNotFound(err)
	}
	return t, nil
}

// List returns a page of trucks, ordered by plate. An empty companyID lists
// every company. limit is clamped to [1, MaxPageSize].
func (s *Service) List(ctx context.Context, companyID string, offset, limit int) (Page, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	offset = max(offset, 0)

	var filter map[string]any
	if companyID != "" {
		filter = map[string]any{"companyId": companyID}
	}
	items, err := s.store.List(ctx, repo.ListOpts{Offset: offset, Limit: limit, Filter: filter, OrderBy: "licensePlate"})
	if err != nil {
		return Page{}, fmt.Errorf("list trucks: %w", err)
	}
	total, err := s.store.Count(ctx, filter)
	if err != nil {
		return Page{}, fmt.Errorf("count trucks: %w", err)
	}
	return Page{Items: items, Total: total, Offset: offset, Limit: limit}, nil
}

// Update applies the set fields of in to truck id.
func (s *Service) Update(ctx context.Context, id string, in Input) (Truck, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return Truck{}, err
	}
	oldPlate, oldCompany := t.LicensePlate, t.CompanyID

	in.apply(&t)
	t.UpdatedAt = s.now().UTC()
	if err := domain.ValidateTruck(t.fields(), t.UpdatedAt.Year()); err != nil {
		return Truck{}, err
	}
	if t.LicensePlate != oldPlate || t.CompanyID != oldCompany {
		if err := s.checkPlate(ctx, t); err != nil {
			return Truck{}, err
		}
	}

	updated, err := s.store.Update(ctx, t)
	if err != nil {
		return Truck{}, s.mapWriteError("update", t, err)
	}
	return updated, nil
}

// Delete removes truck id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return mapNotFound(err)
	}
	s.logger.Info("truck deleted", "id", id)
	return nil
}

// Prefill decodes raw and returns a draft truck for the create form. The
// draft is not stored and has no ID or plate.
func (s *Service) Prefill(ctx context.Context, raw string) (Truck, error) {
	if s.decoder == nil {
		if _, err := domain.ValidateVIN(raw); err != nil {
			return Truck{}, err
		}
		return Truck{}, domain.ErrVINNotFound
	}
	v, err := s.decoder.Decode(ctx, raw)
	if err != nil {
		return Truck{}, err
	}

	brand, model := rawMakeModel(v.Raw)
	if model == "" || brand == "" {
		model = v.Model
	}
	return Truck{
		VIN:    v.VIN,
		Brand:  brand,
		Model:  model,
		Year:   v.Year,
		Type:   v.Type,
		Status: domain.TruckInactive,
	}, nil
}

// rawMakeModel returns the provider's make and model name, preferring the
// primary provider when the answer was merged.
func rawMakeModel(r vin.Raw) (string, string) {
	if len(r.Providers) == 0 {
		return r.Make, r.Model
	}
	var brand, model string
	for _, name := range []string{vin.VincarioName, vin.NHTSAName} {
		p := r.Providers[name]
		if brand == "" {
			brand = p.Make
		}
		if model == "" {
			model = p.Model
		}
	}
	return brand, model
}

// checkPlate rejects t when another truck of the same company has its plate.
func (s *Service) checkPlate(ctx context.Context, t Truck) error {
	other, err := s.store.FindOne(ctx, map[string]any{"companyId": t.CompanyID, "licensePlate": t.LicensePlate})
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("check plate: %w", err)
	case other.ID != t.ID:
		return domain.NewValidationError("licensePlate", t.LicensePlate, domain.ErrDuplicatePlate)
	}
	return nil
}

// mapWriteError turns a constraint rejection from a concurrent write with the
// same plate into the duplicate-plate error checkPlate would have returned.
func (s *Service) mapWriteError(op string, t Truck, err error) error {
	if isConstraintViolation(err) {
		s.logger.Info("plate taken by concurrent write", "op", op, "company", t.CompanyID, "plate", t.LicensePlate)
		return domain.NewValidationError("licensePlate", t.LicensePlate, domain.ErrDuplicatePlate)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return mapNotFound(err)
	}
	return fmt.Errorf("%s truck: %w", op, err)
}

func mapNotFound(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%w: %w", domain.ErrTruckNotFound, err)
	}
	return err
}
