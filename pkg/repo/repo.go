// Package repo defines the generic Repository interface and its Neo4j
// implementation.
package repo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
)

// ErrNotFound is returned when no node matches the requested ID.
var ErrNotFound = errors.New("not found")

// Repository is a generic CRUD interface.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Count(ctx context.Context, filter map[string]any) (int64, error)
	Create(ctx context.Context, entity T) (T, error)
	Update(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, id ID) error
}

// ListOpts controls pagination and filtering for List operations.
type ListOpts struct {
	Offset int
	Limit  int
	// Filter matches properties by equality.
	Filter  map[string]any
	OrderBy string
	Desc    bool
}

// DefaultLimit applies when ListOpts.Limit is not positive.
const DefaultLimit = 100

var propName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// whereClause renders filter as `WHERE n.a = $f_a AND ...` with keys in a
// stable order, adding the values to params. Property names are validated
// since they are interpolated into the query.
func whereClause(filter map[string]any, params map[string]any) (string, error) {
	if len(filter) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		if !propName.MatchString(k) {
			return "", fmt.Errorf("repo: invalid filter property %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clause := " WHERE "
	for i, k := range keys {
		if i > 0 {
			clause += " AND "
		}
		clause += fmt.Sprintf("n.%s = $f_%s", k, k)
		params["f_"+k] = filter[k]
	}
	return clause, nil
}
