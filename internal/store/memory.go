package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/charterops/internal/booking"
)

// Memory is a map-backed Store used by dry runs and tests.
type Memory struct {
	mu    sync.RWMutex
	leads map[string]*booking.Lead

	// FailUpsert, when set, is consulted before every write; a non-nil
	// return aborts that write.
	FailUpsert func(lead *booking.Lead) error
}

var (
	_ Store    = (*Memory)(nil)
	_ Inserter = (*Memory)(nil)
	_ IDLister = (*Memory)(nil)
	_ Getter   = (*Memory)(nil)
)

// NewMemory returns an empty store seeded with the given leads.
func NewMemory(seed ...*booking.Lead) *Memory {
	m := &Memory{leads: make(map[string]*booking.Lead, len(seed))}
	for _, l := range seed {
		m.leads[l.ID] = l.Clone()
	}
	return m
}

func (m *Memory) FindBookingByRef(_ context.Context, ref string) (*booking.Lead, error) {
	return m.findBy(func(l *booking.Lead) bool { return l.BookingRefNo == ref }, ref), nil
}

func (m *Memory) FindBookingByTransID(_ context.Context, transID string) (*booking.Lead, error) {
	return m.findBy(func(l *booking.Lead) bool { return l.TransactionID == transID }, transID), nil
}

// findBy returns the matching lead with the lowest id so results do not
// depend on map iteration order.
func (m *Memory) findBy(match func(*booking.Lead) bool, key string) *booking.Lead {
	if key == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *booking.Lead
	for _, l := range m.leads {
		if match(l) && (found == nil || l.ID < found.ID) {
			found = l
		}
	}
	if found == nil {
		return nil
	}
	return found.Clone()
}

func (m *Memory) UpsertBooking(_ context.Context, lead *booking.Lead) error {
	if m.FailUpsert != nil {
		if err := m.FailUpsert(lead); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads[lead.ID] = lead.Clone()
	return nil
}

func (m *Memory) InsertBooking(_ context.Context, lead *booking.Lead) error {
	if m.FailUpsert != nil {
		if err := m.FailUpsert(lead); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.leads[lead.ID]; taken {
		return ErrDuplicateID
	}
	m.leads[lead.ID] = lead.Clone()
	return nil
}

func (m *Memory) GetBooking(_ context.Context, id string) (*booking.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.leads[id]; ok {
		return l.Clone(), nil
	}
	return nil, nil
}

func (m *Memory) ListIDs(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id := range m.leads {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// All returns every stored lead ordered by id.
func (m *Memory) All() []*booking.Lead {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*booking.Lead, 0, len(m.leads))
	for _, l := range m.leads {
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of stored leads.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.leads)
}
