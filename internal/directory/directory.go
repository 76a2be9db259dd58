package directory

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"smartgreenhouse/internal/models"
	"smartgreenhouse/internal/utils"
)

// Lister fetches role-scoped components of a greenhouse
type Lister interface {
	ListComponents(ctx context.Context, ghID int, role models.Role) ([]models.Component, error)
}

// Snapshot is a fetched, not yet applied, directory
type Snapshot struct {
	GreenhouseID int
	Sensors      []models.Component
	Actuators    []models.Component
}

// Cache holds the sensors and actuators of the selected greenhouse.
// It is replaced wholesale, never merged.
type Cache struct {
	mu        sync.RWMutex
	lister    Lister
	logger    *zap.Logger
	ghID      int
	loaded    bool
	sensors   []models.Component
	actuators []models.Component
}

// NewCache creates an empty cache
func NewCache(lister Lister, logger *zap.Logger) *Cache {
	return &Cache{lister: lister, logger: utils.OrNop(logger)}
}

// Fetch requests sensors and actuators of ghID concurrently. Records with a
// role other than the one requested are dropped so the two sets stay disjoint.
func (c *Cache) Fetch(ctx context.Context, ghID int) (Snapshot, error) {
	snap := Snapshot{GreenhouseID: ghID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sensors, err := c.fetchRole(gctx, ghID, models.RoleSensor)
		snap.Sensors = sensors
		return err
	})
	g.Go(func() error {
		actuators, err := c.fetchRole(gctx, ghID, models.RoleActuator)
		snap.Actuators = actuators
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (c *Cache) fetchRole(ctx context.Context, ghID int, role models.Role) ([]models.Component, error) {
	all, err := c.lister.ListComponents(ctx, ghID, role)
	if err != nil {
		return nil, err
	}
	out := make([]models.Component, 0, len(all))
	for _, comp := range all {
		if comp.Role != role {
			c.logger.Debug("Dropping component with unexpected role",
				zap.Int("comp_id", comp.ID),
				zap.String("role", string(comp.Role)),
				zap.String("requested", string(role)),
			)
			continue
		}
		out = append(out, comp)
	}
	return out, nil
}

// Apply replaces the cache content with snap.
func (c *Cache) Apply(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ghID = snap.GreenhouseID
	c.loaded = true
	c.sensors = append([]models.Component(nil), snap.Sensors...)
	c.actuators = append([]models.Component(nil), snap.Actuators...)
}

// Reset empties the cache. No active greenhouse is a valid, empty state.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ghID = 0
	c.loaded = false
	c.sensors = nil
	c.actuators = nil
}

// GreenhouseID returns the greenhouse the cache was loaded for.
func (c *Cache) GreenhouseID() (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ghID, c.loaded
}

func (c *Cache) Sensors() []models.Component {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Component(nil), c.sensors...)
}

func (c *Cache) Actuators() []models.Component {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Component(nil), c.actuators...)
}

// Lookup finds a component in either set.
func (c *Cache) Lookup(id int) (models.Component, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, set := range [][]models.Component{c.sensors, c.actuators} {
		for _, comp := range set {
			if comp.ID == id {
				return comp, true
			}
		}
	}
	return models.Component{}, false
}

// DisplayName resolves a component id to its name. Unknown ids (a rule may
// point to a deleted component) fall back to the id itself.
func (c *Cache) DisplayName(id int) string {
	if comp, ok := c.Lookup(id); ok {
		return comp.Name
	}
	return strconv.Itoa(id)
}

// TimeSensor returns the id of the first sensor whose subtype is exactly
// "Time", or models.NoComponent.
//
// NOTE: exact-case on purpose while BySubtype folds case; pending product review.
func (c *Cache) TimeSensor() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.sensors {
		if s.Subtype == models.TimeSubtype {
			return s.ID
		}
	}
	return models.NoComponent
}

// BySubtype returns the components of either role whose subtype matches,
// ignoring case.
func (c *Cache) BySubtype(subtype string) []models.Component {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []models.Component
	for _, set := range [][]models.Component{c.sensors, c.actuators} {
		for _, comp := range set {
			if strings.EqualFold(comp.Subtype, subtype) {
				out = append(out, comp)
			}
		}
	}
	return out
}

// IsSensor reports whether id is a sensor of the loaded greenhouse.
func (c *Cache) IsSensor(id int) bool {
	comp, ok := c.Lookup(id)
	return ok && comp.Role == models.RoleSensor
}

// IsActuator reports whether id is an actuator of the loaded greenhouse.
func (c *Cache) IsActuator(id int) bool {
	comp, ok := c.Lookup(id)
	return ok && comp.Role == models.RoleActuator
}
