package fleet

import (
	"context"
	"errors"
	"time"

	"github.com/maiwanamini/unnamed-tms-backend/engine/domain"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// Label is the node label trucks are stored under.
const Label = "Truck"

// Store is the persistence the Service needs. *repo.Neo4jRepo[Truck, string]
// implements it.
type Store interface {
	repo.Repository[Truck, string]
	FindOne(ctx context.Context, filter map[string]any) (Truck, error)
}

var _ Store = (*repo.Neo4jRepo[Truck, string])(nil)

// NewStore returns a Neo4j-backed truck store.
func NewStore(driver neo4j.DriverWithContext, database string) *repo.Neo4jRepo[Truck, string] {
	return repo.NewNeo4jRepo[Truck, string](
		driver,
		Label,
		truckToMap,
		truckFromRecord,
		repo.WithDatabase[Truck, string](database),
	)
}

var schema = []string{
	"CREATE CONSTRAINT truck_id IF NOT EXISTS FOR (n:Truck) REQUIRE n.id IS UNIQUE",
	"CREATE CONSTRAINT truck_company_plate IF NOT EXISTS FOR (n:Truck) REQUIRE (n.companyId, n.licensePlate) IS UNIQUE",
	"CREATE INDEX truck_vin IF NOT EXISTS FOR (n:Truck) ON (n.vin)",
}

// constraintFailed is the Neo4j status code for a schema constraint violation.
const constraintFailed = "Neo.ClientError.Schema.ConstraintValidationFailed"

// isConstraintViolation reports whether err is Neo4j rejecting a write on a
// uniqueness constraint. The id is generated, so in practice this is the
// (companyId, licensePlate) pair.
func isConstraintViolation(err error) bool {
	var ne *neo4j.Neo4jError
	return errors.As(err, &ne) && ne.Code == constraintFailed
}

// EnsureSchema creates the truck constraints and indexes if missing.
func EnsureSchema(ctx context.Context, r *repo.Neo4jRepo[Truck, string]) error {
	for _, stmt := range schema {
		if err := r.Exec(ctx, stmt, nil); err != nil {
			return err
		}
	}
	return nil
}

func truckToMap(t Truck) map[string]any {
	m := map[string]any{
		"id":           t.ID,
		"companyId":    t.CompanyID,
		"licensePlate": t.LicensePlate,
		"vin":          t.VIN,
		"brand":        t.Brand,
		"model":        t.Model,
		"type":         string(t.Type),
		"status":       string(t.Status),
		"createdAt":    t.CreatedAt,
		"updatedAt":    t.UpdatedAt,
		"year":         nil,
	}
	if t.Year != nil {
		m["year"] = int64(*t.Year)
	}
	return m
}

func truckFromRecord(rec *neo4j.Record) (Truck, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return Truck{}, err
	}
	return truckFromProps(node.Props), nil
}

func truckFromProps(props map[string]any) Truck {
	t := Truck{
		ID:           strProp(props, "id"),
		CompanyID:    strProp(props, "companyId"),
		LicensePlate: strProp(props, "licensePlate"),
		VIN:          strProp(props, "vin"),
		Brand:        strProp(props, "brand"),
		Model:        strProp(props, "model"),
		Type:         domain.TruckType(strProp(props, "type")),
		Status:       domain.TruckStatus(strProp(props, "status")),
		CreatedAt:    timeProp(props, "createdAt"),
		UpdatedAt:    timeProp(props, "updatedAt"),
	}
	if y, ok := props["year"].(int64); ok {
		v := int(y)
		t.Year = &v
	}
	return t
}

func strProp(props map[string]any, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}

func timeProp(props map[string]any, key string) time.Time {
	switch v := props[key].(type) {
	case time.Time:
		return v.UTC()
	case string:
		t, _ := time.Parse(time.RFC3339Nano, v)
		return t
	}
	return time.Time{}
}
