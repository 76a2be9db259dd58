package selector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"smartgreenhouse/internal/models"
	"smartgreenhouse/internal/utils"
)

// ErrUnknownGreenhouse is returned when selecting an id absent from the loaded list.
var ErrUnknownGreenhouse = errors.New("unknown greenhouse")

// Source lists greenhouses
type Source interface {
	ListGreenhouses(ctx context.Context) ([]models.Greenhouse, error)
}

// Selection is emitted on every change of the active greenhouse. Version
// grows by one per change and tags dependent loads.
type Selection struct {
	GreenhouseID int
	Version      uint64
}

// Listener observes selection changes
type Listener func(ctx context.Context, sel Selection)

// Selector owns the greenhouse list and the active selection.
type Selector struct {
	source Source
	logger *zap.Logger

	mu          sync.RWMutex
	loaded      bool
	greenhouses []models.Greenhouse
	active      int
	hasActive   bool
	version     uint64
	listeners   []Listener
}

// New creates a selector over source
func New(source Source, logger *zap.Logger) *Selector {
	return &Selector{source: source, logger: utils.OrNop(logger)}
}

// Subscribe registers fn for selection changes. Listeners run synchronously
// in registration order.
func (s *Selector) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Load fetches the greenhouse list once. When the list is not empty the
// first greenhouse becomes active. A failed load can be retried.
func (s *Selector) Load(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	list, err := s.source.ListGreenhouses(ctx)
	if err != nil {
		return fmt.Errorf("load greenhouses: %w", err)
	}

	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return nil
	}
	s.loaded = true
	s.greenhouses = append([]models.Greenhouse(nil), list...)
	s.mu.Unlock()

	s.logger.Info("Greenhouses loaded", zap.Int("count", len(list)))
	if len(list) == 0 {
		return nil
	}
	return s.change(ctx, list[0].ID)
}

// Loaded reports whether the greenhouse list has been loaded.
func (s *Selector) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Select makes id the active greenhouse.
func (s *Selector) Select(ctx context.Context, id int) error {
	s.mu.RLock()
	known := s.indexOf(id) >= 0
	same := s.hasActive && s.active == id
	s.mu.RUnlock()

	if !known {
		return fmt.Errorf("select %d: %w", id, ErrUnknownGreenhouse)
	}
	if same {
		return nil
	}
	return s.change(ctx, id)
}

func (s *Selector) change(ctx context.Context, id int) error {
	s.mu.Lock()
	s.active = id
	s.hasActive = true
	s.version++
	sel := Selection{GreenhouseID: id, Version: s.version}
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	s.logger.Info("Greenhouse selected", zap.Int("gh_id", id), zap.Uint64("version", sel.Version))
	for _, fn := range listeners {
		fn(ctx, sel)
	}
	return nil
}

func (s *Selector) indexOf(id int) int {
	for i, gh := range s.greenhouses {
		if gh.ID == id {
			return i
		}
	}
	return -1
}

// Greenhouses returns the loaded list in authority order.
func (s *Selector) Greenhouses() []models.Greenhouse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Greenhouse(nil), s.greenhouses...)
}

// Active returns the active greenhouse id, false when nothing is selected.
func (s *Selector) Active() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, s.hasActive
}

// Current returns the latest selection.
func (s *Selector) Current() (Selection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Selection{GreenhouseID: s.active, Version: s.version}, s.hasActive
}

// Reset forgets the list and the selection, e.g. on logout. Listeners stay registered.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.greenhouses = nil
	s.active = 0
	s.hasActive = false
	s.version++
}
