// Package conceptmap is the ConceptMap store: a dedicated indexed
// relational schema (conceptmaps, conceptmap_identifiers,
// conceptmap_jurisdictions, conceptmap_systems) with upsert-by-id, a
// last-seen index for garbage collection kept in an embedded bolt
// bucket, and a search-parameter translator mapping FHIR search names to
// column predicates or joins.
package conceptmap

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	bolt "go.etcd.io/bbolt"

	"github.com/wardle/go-terminology/internal/provider"
	"github.com/wardle/go-terminology/internal/providers/relational"
)

// ConceptMap is the stored resource: the indexed columns plus the full
// serialised form.
type ConceptMap struct {
	ID        string          `json:"id"`
	URL       string          `json:"url"`
	Version   string          `json:"version"`
	Name      string          `json:"name"`
	Title     string          `json:"title"`
	Status    string          `json:"status"`
	Date      string          `json:"date"`
	SourceURI string          `json:"sourceUri"`
	TargetURI string          `json:"targetUri"`
	Groups    []Group         `json:"group"`
	Raw       json.RawMessage `json:"-"`

	Identifiers   []string `json:"-"`
	Jurisdictions []string `json:"-"`
}

// Group is one source-system/target-system mapping group.
type Group struct {
	Source  string    `json:"source"`
	Target  string    `json:"target"`
	Element []Element `json:"element"`
}

// Element maps one source code to its targets.
type Element struct {
	Code    string   `json:"code"`
	Display string   `json:"display"`
	Target  []Target `json:"target"`
}

// Target is one mapped code.
type Target struct {
	Code         string `json:"code"`
	Display      string `json:"display"`
	Relationship string `json:"relationship"`
}

// indexedColumns are the columns an elements projection may name without
// forcing JSON parsing.
var indexedColumns = map[string]bool{
	"id": true, "url": true, "version": true, "name": true, "title": true,
	"status": true, "date": true, "sourceUri": true, "targetUri": true,
}

var lastSeenBucket = []byte("conceptmap-last-seen")

// Store owns the relational schema and the bolt last-seen index. The
// store is immutable within a session; refresh is a full reload.
type Store struct {
	db   *sql.DB
	bolt *bolt.DB
}

// Open connects to the relational schema and opens (creating if absent)
// the bolt last-seen index at boltPath.
func Open(dsn, boltPath string) (*Store, error) {
	db, err := relational.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	b, err := bolt.Open(boltPath, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("conceptmap: opening last-seen index: %w", err)
	}
	err = b.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(lastSeenBucket)
		return err
	})
	if err != nil {
		db.Close()
		b.Close()
		return nil, err
	}
	return &Store{db: db, bolt: b}, nil
}

// NewStore wraps already opened handles, for tests.
func NewStore(db *sql.DB, b *bolt.DB) *Store { return &Store{db: db, bolt: b} }

// Close releases both handles.
func (s *Store) Close() error {
	err := s.db.Close()
	if berr := s.bolt.Close(); err == nil {
		err = berr
	}
	return err
}

const (
	sqlUpsert = `insert into conceptmaps (id, url, version, name, title, status, date, source_uri, target_uri, content)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		on conflict (id) do update set url = $2, version = $3, name = $4, title = $5,
		status = $6, date = $7, source_uri = $8, target_uri = $9, content = $10`
	sqlDeleteIdentifiers   = `delete from conceptmap_identifiers where conceptmap_id = $1`
	sqlInsertIdentifier    = `insert into conceptmap_identifiers (conceptmap_id, identifier) values ($1, $2)`
	sqlDeleteJurisdictions = `delete from conceptmap_jurisdictions where conceptmap_id = $1`
	sqlInsertJurisdiction  = `insert into conceptmap_jurisdictions (conceptmap_id, jurisdiction) values ($1, $2)`
	sqlDeleteSystems       = `delete from conceptmap_systems where conceptmap_id = $1`
	sqlInsertSystem        = `insert into conceptmap_systems (conceptmap_id, source_system, target_system) values ($1, $2, $3)`
)

// Upsert stores cm by id, replacing its side tables, and stamps its
// last-seen time.
func (s *Store) Upsert(cm *ConceptMap) error {
	raw := cm.Raw
	if raw == nil {
		var err error
		if raw, err = json.Marshal(cm); err != nil {
			return fmt.Errorf("conceptmap: serialising %s: %w", cm.ID, err)
		}
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(sqlUpsert, cm.ID, cm.URL, cm.Version, cm.Name, cm.Title,
		cm.Status, cm.Date, cm.SourceURI, cm.TargetURI, string(raw)); err != nil {
		return fmt.Errorf("conceptmap: upserting %s: %w", cm.ID, err)
	}
	for _, stmt := range []string{sqlDeleteIdentifiers, sqlDeleteJurisdictions, sqlDeleteSystems} {
		if _, err := tx.Exec(stmt, cm.ID); err != nil {
			return err
		}
	}
	for _, ident := range cm.Identifiers {
		if _, err := tx.Exec(sqlInsertIdentifier, cm.ID, ident); err != nil {
			return err
		}
	}
	for _, j := range cm.Jurisdictions {
		if _, err := tx.Exec(sqlInsertJurisdiction, cm.ID, j); err != nil {
			return err
		}
	}
	for _, g := range cm.Groups {
		if _, err := tx.Exec(sqlInsertSystem, cm.ID, g.Source, g.Target); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return s.MarkSeen(cm.ID, time.Now())
}

// MarkSeen stamps the last-seen time of id in the bolt index.
func (s *Store) MarkSeen(id string, at time.Time) error {
	return s.bolt.Update(func(tx *bolt.Tx) error {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(at.Unix()))
		return tx.Bucket(lastSeenBucket).Put([]byte(id), buf[:])
	})
}

// SweepNotSeenSince deletes every concept map whose last-seen stamp is
// older than cutoff, returning the removed ids.
func (s *Store) SweepNotSeenSince(cutoff time.Time) ([]string, error) {
	var stale []string
	err := s.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket(lastSeenBucket).ForEach(func(k, v []byte) error {
			if int64(binary.BigEndian.Uint64(v)) < cutoff.Unix() {
				stale = append(stale, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	for _, id := range stale {
		if _, err := s.db.Exec("delete from conceptmaps where id = $1", id); err != nil {
			return nil, err
		}
		err := s.bolt.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(lastSeenBucket).Delete([]byte(id))
		})
		if err != nil {
			return nil, err
		}
	}
	return stale, nil
}

// searchColumns maps FHIR search-parameter names onto column predicates
// or joins.
var searchColumns = map[string]string{
	"url":     "url",
	"version": "version",
	"name":    "name",
	"title":   "title",
	"status":  "status",
	"date":    "date",
	"source":  "source_uri",
	"target":  "target_uri",
}

// BuildSearch translates FHIR search parameters into one statement's
// {joins, where, params}; unknown parameter names are rejected.
func BuildSearch(params map[string]string) (*relational.Query, error) {
	q := &relational.Query{}
	for name, value := range params {
		switch name {
		case "identifier":
			q.AddJoin("join conceptmap_identifiers i on i.conceptmap_id = m.id")
			q.AddWhere(fmt.Sprintf("i.identifier = %s", q.Placeholder(value)))
		case "jurisdiction":
			q.AddJoin("join conceptmap_jurisdictions j on j.conceptmap_id = m.id")
			q.AddWhere(fmt.Sprintf("j.jurisdiction = %s", q.Placeholder(value)))
		case "source-system":
			q.AddJoin("join conceptmap_systems sy on sy.conceptmap_id = m.id")
			q.AddWhere(fmt.Sprintf("sy.source_system = %s", q.Placeholder(value)))
		case "target-system":
			q.AddJoin("join conceptmap_systems sy on sy.conceptmap_id = m.id")
			q.AddWhere(fmt.Sprintf("sy.target_system = %s", q.Placeholder(value)))
		default:
			column, ok := searchColumns[name]
			if !ok {
				return nil, fmt.Errorf("conceptmap: unsupported search parameter %q", name)
			}
			q.AddWhere(fmt.Sprintf("m.%s like %s", column, q.Placeholder(value+"%")))
		}
	}
	return q, nil
}

// ColumnsOnly reports whether an elements projection names only indexed
// columns, permitting the JSON-parsing skip.
func ColumnsOnly(elements []string) bool {
	if len(elements) == 0 {
		return false
	}
	for _, e := range elements {
		if !indexedColumns[e] {
			return false
		}
	}
	return true
}

// Search runs the translated query. When elements names only indexed
// columns the response rows are reconstructed straight from the columns;
// otherwise the stored JSON is parsed.
func (s *Store) Search(params map[string]string, elements []string) ([]*ConceptMap, error) {
	q, err := BuildSearch(params)
	if err != nil {
		return nil, err
	}
	columnsOnly := ColumnsOnly(elements)
	sel := "m.id, m.url, m.version, m.name, m.title, m.status, m.date, m.source_uri, m.target_uri"
	if !columnsOnly {
		sel += ", m.content"
	}
	rows, err := s.db.Query(q.SQL("distinct "+sel, "conceptmaps m", "m.id"), q.Params...)
	if err != nil {
		return nil, fmt.Errorf("conceptmap: search: %w", err)
	}
	defer rows.Close()
	var out []*ConceptMap
	for rows.Next() {
		cm := &ConceptMap{}
		dest := []interface{}{&cm.ID, &cm.URL, &cm.Version, &cm.Name, &cm.Title, &cm.Status, &cm.Date, &cm.SourceURI, &cm.TargetURI}
		var content string
		if !columnsOnly {
			dest = append(dest, &content)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if !columnsOnly {
			if err := json.Unmarshal([]byte(content), cm); err != nil {
				return nil, fmt.Errorf("conceptmap: parsing %s: %w", cm.ID, err)
			}
			cm.Raw = json.RawMessage(content)
		}
		out = append(out, cm)
	}
	return out, rows.Err()
}

// Translate walks the stored maps whose source matches coding's system,
// collecting the targets of its code, optionally restricted to
// targetSystem.
func (s *Store) Translate(coding provider.Coding, targetSystem string) ([]provider.Translation, error) {
	maps, err := s.Search(map[string]string{"source-system": coding.System}, nil)
	if err != nil {
		return nil, err
	}
	var out []provider.Translation
	for _, cm := range maps {
		for _, g := range cm.Groups {
			if g.Source != coding.System {
				continue
			}
			if targetSystem != "" && g.Target != targetSystem {
				continue
			}
			for _, el := range g.Element {
				if el.Code != coding.Code {
					continue
				}
				for _, t := range el.Target {
					out = append(out, provider.Translation{
						URI:          g.Target,
						Code:         t.Code,
						Display:      t.Display,
						Relationship: t.Relationship,
						Map:          cm.URL,
					})
				}
			}
		}
	}
	return out, nil
}
