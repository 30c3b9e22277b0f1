package fleet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/maiwanamini/unnamed-tms-backend/engine/domain"
	"github.com/maiwanamini/unnamed-tms-backend/engine/vin"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// memStore is an in-memory Store.
type memStore struct {
	trucks   map[string]Truck
	err      error
	writeErr error
}

func newMemStore() *memStore { return &memStore{trucks: map[string]Truck{}} }

func matches(t Truck, filter map[string]any) bool {
	for k, v := range filter {
		p := truckToMap(t)[k]
		if p != v {
			return false
		}
	}
	return true
}

func (m *memStore) Get(_ context.Context, id string) (Truck, error) {
	t, ok := m.trucks[id]
	if !ok {
		return Truck{}, fmt.Errorf("Truck: %w", repo.ErrNotFound)
	}
	return t, nil
}

func (m *memStore) FindOne(_ context.Context, filter map[string]any) (Truck, error) {
	if m.err != nil {
		return Truck{}, m.err
	}
	for _, t := range m.trucks {
		if matches(t, filter) {
			return t, nil
		}
	}
	return Truck{}, repo.ErrNotFound
}

func (m *memStore) List(_ context.Context, opts repo.ListOpts) ([]Truck, error) {
	out := []Truck{}
	for _, t := range m.trucks {
		if matches(t, opts.Filter) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LicensePlate < out[j].LicensePlate })
	if opts.Offset >= len(out) {
		return []Truck{}, nil
	}
	out = out[opts.Offset:]
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memStore) Count(_ context.Context, filter map[string]any) (int64, error) {
	var n int64
	for _, t := range m.trucks {
		if matches(t, filter) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) Create(_ context.Context, t Truck) (Truck, error) {
	if m.writeErr != nil {
		return Truck{}, m.writeErr
	}
	m.trucks[t.ID] = t
	return t, nil
}

func (m *memStore) Update(_ context.Context, t Truck) (Truck, error) {
	if m.writeErr != nil {
		return Truck{}, m.writeErr
	}
	if _, ok := m.trucks[t.ID]; !ok {
		return Truck{}, repo.ErrNotFound
	}
	m.trucks[t.ID] = t
	return t, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	if _, ok := m.trucks[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.trucks, id)
	return nil
}

type stubDecoder struct {
	v   *vin.Vehicle
	err error
}

func (s stubDecoder) Decode(_ context.Context, raw string) (*vin.Vehicle, error) {
	if _, err := domain.ValidateVIN(raw); err != nil {
		return nil, err
	}
	return s.v, s.err
}

func ptr[T any](v T) *T { return &v }

func newTestService(store Store, dec Decoder) *Service {
	s := NewService(store, dec, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	n := 0
	s.newID = func() string { n++; return fmt.Sprintf("truck-%d", n) }
	return s
}

func TestCreate(t *testing.T) {
	store := newMemStore()
	s := newTestService(store, nil)

	tr, err := s.Create(context.Background(), Input{
		CompanyID:    ptr("acme"),
		LicensePlate: ptr(" 1-abc-123 "),
		VIN:          ptr("1m8gdm9axkp042788"),
		Year:         ptr(1989),
		Type:         ptr(domain.TruckTractorUnit),
	})
	if err != nil {
		t.Fatal(err)
	}
	if tr.ID != "truck-1" || tr.LicensePlate != "1-ABC-123" || tr.VIN != "1M8GDM9AXKP042788" {
		t.Fatalf("unexpected %+v", tr)
	}
	if tr.Status != domain.TruckInactive {
		t.Fatalf("status should default to inactive, got %q", tr.Status)
	}
	if tr.CreatedAt.IsZero() || !tr.CreatedAt.Equal(tr.UpdatedAt) {
		t.Fatalf("timestamps = %v / %v", tr.CreatedAt, tr.UpdatedAt)
	}
	if len(store.trucks) != 1 {
		t.Fatalf("expected 1 stored truck, got %d", len(store.trucks))
	}
}

func TestCreate_Invalid(t *testing.T) {
	s := newTestService(newMemStore(), nil)
	cases := []struct {
		name  string
		in    Input
		field string
	}{
		{"no plate", Input{}, "licensePlate"},
		{"bad vin", Input{LicensePlate: ptr("X"), VIN: ptr("123")}, "vin"},
		{"bad type", Input{LicensePlate: ptr("X"), Type: ptr(domain.TruckType("Bus"))}, "type"},
		{"bad status", Input{LicensePlate: ptr("X"), Status: ptr(domain.TruckStatus("parked"))}, "status"},
		{"future year", Input{LicensePlate: ptr("X"), Year: ptr(2040)}, "year"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(context.Background(), tt.in)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestCreate_DuplicatePlate(t *testing.T) {
	s := newTestService(newMemStore(), nil)
	ctx := context.Background()

	if _, err := s.Create(ctx, Input{CompanyID: ptr("acme"), LicensePlate: ptr("AB 12 CD")}); err != nil {
		t.Fatal(err)
	}
	_, err := s.Create(ctx, Input{CompanyID: ptr("acme"), LicensePlate: ptr("ab  12 cd")})
	if !errors.Is(err, domain.ErrDuplicatePlate) || domain.ErrorCode(err) != domain.CodeDuplicatePlate {
		t.Fatalf("expected duplicate plate, got %v", err)
	}
	if _, err := s.Create(ctx, Input{CompanyID: ptr("other"), LicensePlate: ptr("AB 12 CD")}); err != nil {
		t.Fatalf("plates are unique per company, got %v", err)
	}
}

func TestCreate_StoreError(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("neo4j unavailable")
	s := newTestService(store, nil)

	_, err := s.Create(context.Background(), Input{LicensePlate: ptr("X")})
	if err == nil || errors.Is(err, domain.ErrDuplicatePlate) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestCreate_ConstraintRace(t *testing.T) {
	store := newMemStore()
	s := newTestService(store, nil)
	ctx := context.Background()

	a, err := s.Create(ctx, Input{CompanyID: ptr("acme"), LicensePlate: ptr("A-1")})
	if err != nil {
		t.Fatal(err)
	}

	// Another writer took the plate between checkPlate and the write.
	store.writeErr = &neo4j.Neo4jError{
		Code: "Neo.ClientError.Schema.ConstraintValidationFailed",
		Msg:  "Node(12) already exists with label `Truck` and properties `companyId` = 'acme', `licensePlate` = 'B-2'",
	}
	_, err = s.Create(ctx, Input{CompanyID: ptr("acme"), LicensePlate: ptr("B-2")})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "licensePlate" || domain.ErrorCode(err) != domain.CodeDuplicatePlate {
		t.Fatalf("create: expected duplicate plate on licensePlate, got %v", err)
	}
	_, err = s.Update(ctx, a.ID, Input{LicensePlate: ptr("B-2")})
	if domain.ErrorCode(err) != domain.CodeDuplicatePlate {
		t.Fatalf("update: expected duplicate plate, got %v", err)
	}

	store.writeErr = &neo4j.Neo4jError{Code: "Neo.TransientError.General.DatabaseUnavailable"}
	_, err = s.Create(ctx, Input{CompanyID: ptr("acme"), LicensePlate: ptr("C-3")})
	if err == nil || domain.ErrorCode(err) != "" {
		t.Fatalf("other neo4j errors stay uncoded, got %v", err)
	}
}

func TestGetUpdateDelete(t *testing.T) {
	s := newTestService(newMemStore(), nil)
	ctx := context.Background()

	a, _ := s.Create(ctx, Input{CompanyID: ptr("acme"), LicensePlate: ptr("A-1")})
	b, _ := s.Create(ctx, Input{CompanyID: ptr("acme"), LicensePlate: ptr("B-2")})

	got, err := s.Get(ctx, a.ID)
	if err != nil || got.LicensePlate != "A-1" {
		t.Fatalf("got (%+v, %v)", got, err)
	}

	updated, err := s.Update(ctx, a.ID, Input{Status: ptr(domain.TruckActive), Model: ptr("FH16")})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != domain.TruckActive || updated.Model != "FH16" || updated.LicensePlate != "A-1" {
		t.Fatalf("unexpected %+v", updated)
	}

	if _, err := s.Update(ctx, a.ID, Input{LicensePlate: ptr("b-2")}); !errors.Is(err, domain.ErrDuplicatePlate) {
		t.Fatalf("expected duplicate plate, got %v", err)
	}
	if _, err := s.Update(ctx, b.ID, Input{LicensePlate: ptr("B-2")}); err != nil {
		t.Fatalf("keeping the same plate should be allowed, got %v", err)
	}
	if _, err := s.Update(ctx, a.ID, Input{Type: ptr(domain.TruckType("Bus"))}); err == nil {
		t.Fatal("expected validation error")
	}

	if err := s.Delete(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	for _, err := range []error{
		s.Delete(ctx, a.ID),
		func() error { _, err := s.Get(ctx, a.ID); return err }(),
		func() error { _, err := s.Update(ctx, a.ID, Input{}); return err }(),
	} {
		if !errors.Is(err, domain.ErrTruckNotFound) || domain.ErrorCode(err) != domain.CodeTruckNotFound {
			t.Fatalf("expected truck not found, got %v", err)
		}
	}
}

func TestList(t *testing.T) {
	s := newTestService(newMemStore(), nil)
	ctx := context.Background()
	for _, p := range []string{"C-3", "A-1", "B-2"} {
		if _, err := s.Create(ctx, Input{CompanyID: ptr("acme"), LicensePlate: ptr(p)}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Create(ctx, Input{CompanyID: ptr("other"), LicensePlate: ptr("Z-9")}); err != nil {
		t.Fatal(err)
	}

	page, err := s.List(ctx, "acme", 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 || len(page.Items) != 1 || page.Items[0].LicensePlate != "B-2" {
		t.Fatalf("unexpected page %+v", page)
	}

	page, err = s.List(ctx, "", -5, 0)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 4 || page.Offset != 0 || page.Limit != MaxPageSize {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestPrefill(t *testing.T) {
	merged := &vin.Vehicle{
		VIN:   "YV2RT40A8GB123456",
		Year:  ptr(2015),
		Model: "Volvo FH16",
		Type:  domain.TruckRigidBox,
		Raw: vin.Raw{Provider: "auto", Providers: map[string]vin.Raw{
			vin.VincarioName: {Provider: vin.VincarioName, Make: "Volvo", Model: "FH16"},
			vin.NHTSAName:    {Provider: vin.NHTSAName, BodyClass: "Truck"},
		}},
	}
	store := newMemStore()
	s := newTestService(store, stubDecoder{v: merged})

	draft, err := s.Prefill(context.Background(), "yv2rt40a8gb123456")
	if err != nil {
		t.Fatal(err)
	}
	if draft.Brand != "Volvo" || draft.Model != "FH16" || *draft.Year != 2015 || draft.Type != domain.TruckRigidBox {
		t.Fatalf("unexpected draft %+v", draft)
	}
	if draft.ID != "" || draft.Status != domain.TruckInactive {
		t.Fatalf("draft should be unsaved and inactive, got %+v", draft)
	}
	if len(store.trucks) != 0 {
		t.Fatal("prefill must not persist")
	}

	single := &vin.Vehicle{VIN: "1M8GDM9AXKP042788", Model: "Freightliner Truck-Tractor",
		Raw: vin.Raw{Provider: vin.NHTSAName, Make: "Freightliner", Model: "Truck-Tractor"}}
	draft, _ = newTestService(store, stubDecoder{v: single}).Prefill(context.Background(), single.VIN)
	if draft.Brand != "Freightliner" || draft.Model != "Truck-Tractor" {
		t.Fatalf("unexpected draft %+v", draft)
	}

	_, err = s.Prefill(context.Background(), "short")
	if !errors.Is(err, domain.ErrVINInvalid) {
		t.Fatalf("expected VIN_INVALID, got %v", err)
	}

	_, err = newTestService(store, stubDecoder{err: domain.ErrVINNotFound}).Prefill(context.Background(), single.VIN)
	if !errors.Is(err, domain.ErrVINNotFound) {
		t.Fatalf("expected VIN_NOT_FOUND, got %v", err)
	}

	_, err = newTestService(store, nil).Prefill(context.Background(), single.VIN)
	if !errors.Is(err, domain.ErrVINNotFound) {
		t.Fatalf("expected VIN_NOT_FOUND without a decoder, got %v", err)
	}
}
