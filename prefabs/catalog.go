package prefabs

import (
	"fmt"
	"sort"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/navmesh/pathing"
	"github.com/sasha-s/go-deadlock"
)

// ObjectCatalog maps object types to footprints. Finder builds read it from
// worker goroutines while the control loop may swap in a reloaded catalog.
type ObjectCatalog struct {
	mu         deadlock.RWMutex
	footprints map[pathing.ObjectType]pathing.Footprint
	version    uint64
}

func NewObjectCatalog(specs []ObjectSpec) (*ObjectCatalog, error) {
	c := &ObjectCatalog{}
	if err := c.Replace(specs); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadObjectCatalog reads objects.yaml.
func LoadObjectCatalog() (*ObjectCatalog, error) {
	spec, err := LoadSpec[ObjectsSpec](ObjectsFile)
	if err != nil {
		return nil, err
	}
	return NewObjectCatalog(spec.Objects)
}

// Reload re-reads objects.yaml. On error the catalog keeps its contents.
func (c *ObjectCatalog) Reload() error {
	spec, err := LoadSpec[ObjectsSpec](ObjectsFile)
	if err != nil {
		return err
	}
	return c.Replace(spec.Objects)
}

// Replace swaps the whole catalog. Duplicate names and invalid shapes reject
// the update.
func (c *ObjectCatalog) Replace(specs []ObjectSpec) error {
	next := make(map[pathing.ObjectType]pathing.Footprint, len(specs))
	for _, s := range specs {
		fp, err := s.Footprint()
		if err != nil {
			return err
		}
		t := pathing.ObjectType(s.Name)
		if _, dup := next[t]; dup {
			return fmt.Errorf("%w: duplicate object %q", ErrInvalidObject, s.Name)
		}
		next[t] = fp
	}

	c.mu.Lock()
	c.footprints = next
	c.version++
	c.mu.Unlock()
	return nil
}

// Footprint implements pathing.ObjectCache.
func (c *ObjectCatalog) Footprint(objectType pathing.ObjectType) (pathing.Footprint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fp, ok := c.footprints[objectType]
	if !ok {
		return pathing.Footprint{}, false
	}
	fp.Polygon = append([]cp.Vector(nil), fp.Polygon...)
	return fp, true
}

// Types returns the known object types in name order.
func (c *ObjectCatalog) Types() []pathing.ObjectType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]pathing.ObjectType, 0, len(c.footprints))
	for t := range c.footprints {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Version increases on every successful Replace.
func (c *ObjectCatalog) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}
