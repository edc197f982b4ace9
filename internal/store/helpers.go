// Package store holds the PostgreSQL-backed stores. The engine itself keeps
// no server-side transcript state; the only table this service owns is
// system_logs, the sink of the async log handler.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/comppolicylab/pingpong-sub002/pkg/util"
)

// BaseStore is the embedded base of every store, holding the pool.
type BaseStore struct{ pool *pgxpool.Pool }

// NewBaseStore creates a BaseStore.
func NewBaseStore(pool *pgxpool.Pool) BaseStore { return BaseStore{pool: pool} }

// Pool returns the connection pool.
func (b BaseStore) Pool() *pgxpool.Pool { return b.pool }

// ========================================
// QueryBuilder — incremental WHERE construction
// ========================================

// QueryBuilder assembles a dynamic WHERE clause with positional params.
type QueryBuilder struct {
	where  []string
	params []any
	n      int // $N parameter counter
}

// NewQueryBuilder creates an empty builder.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{}
}

// Eq adds an equality condition; empty values are skipped.
func (q *QueryBuilder) Eq(col, val string) *QueryBuilder {
	if val == "" {
		return q
	}
	q.n++
	q.where = append(q.where, fmt.Sprintf("%s = $%d", col, q.n))
	q.params = append(q.params, val)
	return q
}

// KeywordLike adds a multi-column LIKE keyword search.
func (q *QueryBuilder) KeywordLike(keyword string, cols ...string) *QueryBuilder {
	if keyword == "" || len(cols) == 0 {
		return q
	}
	kw := "%" + util.EscapeLike(strings.ToLower(keyword)) + "%"
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		q.n++
		parts = append(parts, fmt.Sprintf("LOWER(%s) LIKE $%d ESCAPE E'\\\\'", c, q.n))
		q.params = append(q.params, kw)
	}
	q.where = append(q.where, "("+strings.Join(parts, " OR ")+")")
	return q
}

// Build assembles the full SQL: baseSql + WHERE + ORDER BY + LIMIT.
func (q *QueryBuilder) Build(baseSql, orderBy string, limit int) (string, []any) {
	limit = util.ClampInt(limit, 1, 2000)
	sql := baseSql
	if len(q.where) > 0 {
		sql += " WHERE " + strings.Join(q.where, " AND ")
	}
	if orderBy != "" {
		sql += " ORDER BY " + orderBy
	}
	q.n++
	sql += fmt.Sprintf(" LIMIT $%d", q.n)
	q.params = append(q.params, limit)
	return sql, q.params
}

// ========================================
// Row scanning
// ========================================

// collectRows scans rows into a struct slice via pgx.RowToStructByName.
func collectRows[T any](rows pgx.Rows) ([]T, error) {
	return pgx.CollectRows(rows, pgx.RowToStructByName[T])
}

// DistinctValues returns the de-duplicated values of one column, for
// filter dropdowns.
func DistinctValues(ctx context.Context, pool *pgxpool.Pool, table, column string) ([]string, error) {
	safeTable := pgx.Identifier{table}.Sanitize()
	safeCol := pgx.Identifier{column}.Sanitize()
	sql := fmt.Sprintf(
		"SELECT DISTINCT %s AS value FROM %s WHERE %s <> '' ORDER BY value",
		safeCol, safeTable, safeCol,
	)
	rows, err := pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// DistinctMap batches DistinctValues over several columns.
func DistinctMap(ctx context.Context, pool *pgxpool.Pool, table string, columns ...string) (map[string][]string, error) {
	result := make(map[string][]string, len(columns))
	for _, col := range columns {
		vals, err := DistinctValues(ctx, pool, table, col)
		if err != nil {
			return nil, err
		}
		result[col] = vals
	}
	return result, nil
}
