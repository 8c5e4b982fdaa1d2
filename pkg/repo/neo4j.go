package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// cursor is the slice of neo4j result the repository reads.
type cursor interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// runner is the slice of neo4j session the repository needs.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (cursor, error)
	Close(ctx context.Context) error
}

// Neo4jRepo maps one node label onto a Go type. The caller supplies the
// property codec; ids live in the idKey property.
type Neo4jRepo[T any, ID comparable] struct {
	driver     neo4j.DriverWithContext
	label      string
	idKey      string
	toMap      func(T) map[string]any
	fromRecord func(*neo4j.Record) (T, error)
	newSession func(ctx context.Context) runner // test seam
}

// Neo4jOption configures a Neo4jRepo.
type Neo4jOption[T any, ID comparable] func(*Neo4jRepo[T, ID])

// WithIDKey overrides the id property name (default "id").
func WithIDKey[T any, ID comparable](key string) Neo4jOption[T, ID] {
	return func(r *Neo4jRepo[T, ID]) { r.idKey = key }
}

// NewNeo4jRepo creates a repository for the label.
func NewNeo4jRepo[T any, ID comparable](
	driver neo4j.DriverWithContext,
	label string,
	toMap func(T) map[string]any,
	fromRecord func(*neo4j.Record) (T, error),
	opts ...Neo4jOption[T, ID],
) *Neo4jRepo[T, ID] {
	r := &Neo4jRepo[T, ID]{
		driver:     driver,
		label:      label,
		idKey:      "id",
		toMap:      toMap,
		fromRecord: fromRecord,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

var _ Repository[any, string] = (*Neo4jRepo[any, string])(nil)

// sessionAdapter narrows neo4j.SessionWithContext to runner.
type sessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *sessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (cursor, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *sessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

func (r *Neo4jRepo[T, ID]) session(ctx context.Context) runner {
	if r.newSession != nil {
		return r.newSession(ctx)
	}
	return &sessionAdapter{sess: r.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

func (r *Neo4jRepo[T, ID]) Get(ctx context.Context, id ID) (T, error) {
	var zero T
	sess := r.session(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) RETURN n", r.label, r.idKey)
	rows, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return zero, err
	}
	if !rows.Next(ctx) {
		return zero, fmt.Errorf("%s %v: %w", r.label, id, ErrNotFound)
	}
	return r.fromRecord(rows.Record())
}

func (r *Neo4jRepo[T, ID]) List(ctx context.Context, opts ListOpts) ([]T, error) {
	sess := r.session(ctx)
	defer sess.Close(ctx)

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	params := map[string]any{"offset": opts.Offset, "limit": limit}

	where, err := filterClause(opts.Filter, params)
	if err != nil {
		return nil, err
	}

	cypher := fmt.Sprintf("MATCH (n:%s)%s RETURN n ORDER BY n.%s SKIP $offset LIMIT $limit",
		r.label, where, r.idKey)
	rows, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	var items []T
	for rows.Next(ctx) {
		item, err := r.fromRecord(rows.Record())
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *Neo4jRepo[T, ID]) Create(ctx context.Context, entity T) (T, error) {
	var zero T
	sess := r.session(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("CREATE (n:%s $props) RETURN n", r.label)
	rows, err := sess.Run(ctx, cypher, map[string]any{"props": r.toMap(entity)})
	if err != nil {
		return zero, err
	}
	if !rows.Next(ctx) {
		return zero, fmt.Errorf("create %s returned nothing", r.label)
	}
	return r.fromRecord(rows.Record())
}

func (r *Neo4jRepo[T, ID]) Update(ctx context.Context, entity T) (T, error) {
	var zero T
	sess := r.session(ctx)
	defer sess.Close(ctx)

	props := r.toMap(entity)
	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) SET n += $props RETURN n", r.label, r.idKey)
	rows, err := sess.Run(ctx, cypher, map[string]any{"id": props[r.idKey], "props": props})
	if err != nil {
		return zero, err
	}
	if !rows.Next(ctx) {
		return zero, fmt.Errorf("%s %v: %w", r.label, props[r.idKey], ErrNotFound)
	}
	return r.fromRecord(rows.Record())
}

func (r *Neo4jRepo[T, ID]) Delete(ctx context.Context, id ID) error {
	sess := r.session(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) DETACH DELETE n", r.label, r.idKey)
	_, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	return err
}

// filterClause renders Filter into a WHERE clause, binding values as
// parameters. Property names cannot be bound, so keys are checked against
// the plain-identifier grammar before interpolation.
func filterClause(filter map[string]any, params map[string]any) (string, error) {
	if len(filter) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		if !validProperty(k) {
			return "", fmt.Errorf("invalid filter key %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]string, 0, len(keys))
	for i, k := range keys {
		p := fmt.Sprintf("f%d", i)
		conds = append(conds, fmt.Sprintf("n.%s = $%s", k, p))
		params[p] = filter[k]
	}
	return " WHERE " + strings.Join(conds, " AND "), nil
}

func validProperty(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
