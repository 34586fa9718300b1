package rtc

import (
	"fmt"
	"sync"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/rs/zerolog/log"
)

type slot struct {
	id   domain.ParticipantID
	kind domain.TrackKind
}

// Mounter gives every remote visual track its own Surface for as long as the
// track stays subscribed. It stands in for the tiles of a headless client.
type Mounter struct {
	reg *app.Registry
	rec *Recorder

	mu      sync.Mutex
	mounted map[slot]bool
}

func NewMounter(reg *app.Registry, rec *Recorder) *Mounter {
	m := &Mounter{reg: reg, rec: rec, mounted: make(map[slot]bool)}
	reg.OnChange(m.sync)
	return m
}

func (m *Mounter) sync() {
	snap := m.reg.Snapshot()

	m.mu.Lock()
	live := make(map[slot]bool)
	var add []slot
	for _, b := range snap.Bindings {
		if b.Local || !b.Kind.Visual() || !b.Subscribed() {
			continue
		}
		k := slot{b.ParticipantID, b.Kind}
		live[k] = true
		if !m.mounted[k] {
			m.mounted[k] = true
			add = append(add, k)
		}
	}
	var drop []slot
	for k := range m.mounted {
		if !live[k] {
			delete(m.mounted, k)
			drop = append(drop, k)
		}
	}
	m.mu.Unlock()

	// registry calls re-enter sync; the bookkeeping above makes them no-ops
	for _, k := range add {
		id := fmt.Sprintf("%s-%s", k.kind, k.id)
		log.Debug().Str("module", "rtc").Str("surface", id).Msg("mount")
		m.reg.BindSurface(k.id, k.kind, NewSurface(id, m.rec))
	}
	for _, k := range drop {
		m.reg.UnbindSurface(k.id, k.kind)
	}
}

// Mounted reports how many surfaces are bound.
func (m *Mounter) Mounted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.mounted)
}
