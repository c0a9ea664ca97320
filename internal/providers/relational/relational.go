// Package relational carries the shared machinery of the
// relational-backed providers: a {joins, where-clauses, params} query
// composer that filter translators build fragments into, startup lookup
// loading, and the sorted key arrays used to answer filter-membership
// probes without a full scan.
package relational

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// Open opens and verifies a database connection. One connection pool is
// opened per factory at startup; a fresh session per provider request
// isolates statement state.
func Open(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("relational: open %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("relational: ping: %w", err)
	}
	return db, nil
}

// LoadLookup reads a two-column (key, value) query into a map, used for
// the small tables every factory caches at load time: languages,
// statuses, relationship types, property types.
func LoadLookup(db *sql.DB, query string) (map[string]string, error) {
	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// CountRows caches a table count at factory load time.
func CountRows(db *sql.DB, table string) (int, error) {
	var n int
	err := db.QueryRow("select count(*) from " + table).Scan(&n)
	return n, err
}

// Query accumulates the {joins, whereClauses, params} triple a filter
// translator builds, then composes them into one statement.
type Query struct {
	Joins  []string
	Where  []string
	Params []interface{}
}

// Placeholder appends v to the parameter list and returns its positional
// placeholder.
func (q *Query) Placeholder(v interface{}) string {
	q.Params = append(q.Params, v)
	return fmt.Sprintf("$%d", len(q.Params))
}

// AddJoin appends a join fragment once; duplicate fragments (two filters
// touching the same auxiliary table) collapse.
func (q *Query) AddJoin(join string) {
	for _, j := range q.Joins {
		if j == join {
			return
		}
	}
	q.Joins = append(q.Joins, join)
}

// AddWhere appends one where clause; clauses are conjoined.
func (q *Query) AddWhere(clause string) {
	q.Where = append(q.Where, clause)
}

// SQL composes the final statement.
func (q *Query) SQL(selectCols, from, orderBy string) string {
	var sb strings.Builder
	sb.WriteString("select ")
	sb.WriteString(selectCols)
	sb.WriteString(" from ")
	sb.WriteString(from)
	for _, j := range q.Joins {
		sb.WriteString(" ")
		sb.WriteString(j)
	}
	if len(q.Where) > 0 {
		sb.WriteString(" where ")
		sb.WriteString(strings.Join(q.Where, " and "))
	}
	if orderBy != "" {
		sb.WriteString(" order by ")
		sb.WriteString(orderBy)
	}
	return sb.String()
}

// KeySet is a pre-sorted key array materialised by ExecuteFilters so a
// later membership probe is a binary search rather than a scan.
type KeySet struct {
	keys []string
}

// NewKeySet sorts keys into a probe-ready set.
func NewKeySet(keys []string) *KeySet {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)
	return &KeySet{keys: sorted}
}

// Len returns the member count.
func (s *KeySet) Len() int { return len(s.keys) }

// At returns the i'th key in sorted order.
func (s *KeySet) At(i int) string { return s.keys[i] }

// Contains performs the membership probe.
func (s *KeySet) Contains(key string) bool {
	i := sort.SearchStrings(s.keys, key)
	return i < len(s.keys) && s.keys[i] == key
}

// QueryKeys runs a one-column query into a KeySet, consulting ctx so a
// cancelled request stops materialising.
func QueryKeys(ctx context.Context, db *sql.DB, query string, params ...interface{}) (*KeySet, error) {
	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return NewKeySet(keys), nil
}
