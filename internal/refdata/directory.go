// Package refdata holds the read-only agent, yacht and user names consulted
// while importing bookings.
package refdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Kind selects one of the reference tables.
type Kind string

const (
	Agents Kind = "agents"
	Yachts Kind = "yachts"
	Users  Kind = "users"
)

// Directory maps ids to display names and back. It is immutable once built.
type Directory struct {
	names   map[Kind]map[string]string // kind -> id -> name
	reverse map[Kind]map[string]string // kind -> lower(name) -> id
}

// New builds a Directory from id -> name maps. Nil maps are allowed.
func New(agents, yachts, users map[string]string) *Directory {
	d := &Directory{
		names:   make(map[Kind]map[string]string, 3),
		reverse: make(map[Kind]map[string]string, 3),
	}
	d.add(Agents, agents)
	d.add(Yachts, yachts)
	d.add(Users, users)
	return d
}

func (d *Directory) add(kind Kind, m map[string]string) {
	names := make(map[string]string, len(m))
	rev := make(map[string]string, len(m))
	for id, name := range m {
		names[id] = name
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		// Keep the smallest id on duplicate names so lookups are stable.
		if prev, ok := rev[key]; !ok || id < prev {
			rev[key] = id
		}
	}
	d.names[kind] = names
	d.reverse[kind] = rev
}

// Name returns the display name for id.
func (d *Directory) Name(kind Kind, id string) (string, bool) {
	name, ok := d.names[kind][id]
	return name, ok
}

// Resolve returns the id whose display name matches name case-insensitively.
// An exact id match is also accepted.
func (d *Directory) Resolve(kind Kind, name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	if id, ok := d.reverse[kind][strings.ToLower(name)]; ok {
		return id, true
	}
	if _, ok := d.names[kind][name]; ok {
		return name, true
	}
	return "", false
}

// Len returns the number of entries of a kind.
func (d *Directory) Len(kind Kind) int {
	return len(d.names[kind])
}

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var loadQueries = map[Kind]string{
	Agents: `SELECT id, name FROM agents`,
	Yachts: `SELECT id, name FROM yachts`,
	Users:  `SELECT id, name FROM users`,
}

// Load reads all three reference tables.
func Load(ctx context.Context, q Querier) (*Directory, error) {
	maps := make(map[Kind]map[string]string, len(loadQueries))
	for kind, sql := range loadQueries {
		m, err := loadPairs(ctx, q, sql)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", kind, err)
		}
		maps[kind] = m
	}
	return New(maps[Agents], maps[Yachts], maps[Users]), nil
}

func loadPairs(ctx context.Context, q Querier, sql string) (map[string]string, error) {
	rows, err := q.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}
