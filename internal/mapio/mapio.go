// Public domain.

// Package mapio persists maps.  A run hands every product to a Writer under
// a name, such as mc_3, and a label within that name, such as GAMMA1.
package mapio

import (
	"sort"
	"sync"

	"github.com/soniakeys/sphmass/healpix"
)

// Writer receives maps.  Implementations must not retain m after returning
// unless they copy it.
type Writer interface {
	WriteMap(name, label string, m *healpix.Map) error
}

// Finisher is implemented by Writers that hold resources per name.  Finish
// is called once all labels of a name are written.
type Finisher interface {
	Finish(name string) error
}

// MemWriter keeps copies of written maps in memory.  It is safe for
// concurrent use.
type MemWriter struct {
	mu   sync.Mutex
	maps map[string]map[string]*healpix.Map
}

// NewMemWriter returns an empty MemWriter.
func NewMemWriter() *MemWriter {
	return &MemWriter{maps: map[string]map[string]*healpix.Map{}}
}

// WriteMap stores a copy of m.  A map written again under the same name
// and label replaces the earlier one.
func (w *MemWriter) WriteMap(name, label string, m *healpix.Map) error {
	if err := healpix.Check(m); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	byLabel := w.maps[name]
	if byLabel == nil {
		byLabel = map[string]*healpix.Map{}
		w.maps[name] = byLabel
	}
	byLabel[label] = m.Clone()
	return nil
}

// Map returns the map stored under name and label, or nil.
func (w *MemWriter) Map(name, label string) *healpix.Map {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.maps[name][label]
}

// Names returns the names written, sorted.
func (w *MemWriter) Names() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, 0, len(w.maps))
	for n := range w.maps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
