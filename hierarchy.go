package mediator

import (
	"reflect"
	"slices"
	"sync"

	"github.com/casualjim/mediator/pkg/reflectx"
)

type edge struct {
	super  reflect.Type
	upcast func(any) any
}

// hierarchy answers "is target an ancestor of typ". Interfaces are ancestors of
// the types implementing them; other relations must be declared with Extend.
type hierarchy struct {
	mu    sync.RWMutex
	edges map[reflect.Type][]edge
}

func newHierarchy() *hierarchy {
	return &hierarchy{edges: make(map[reflect.Type][]edge)}
}

func (h *hierarchy) add(sub, super reflect.Type, upcast func(any) any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, e := range h.edges[sub] {
		if e.super == super {
			h.edges[sub][i].upcast = upcast
			return
		}
	}
	h.edges[sub] = append(h.edges[sub], edge{super: super, upcast: upcast})
}

// path returns the upcasts turning a typ value into a target value, and whether
// target is typ or one of its ancestors. An empty path means the value is
// delivered as is. Declared relations are walked breadth first, so the shortest
// chain of upcasts wins.
func (h *hierarchy) path(typ, target reflect.Type) ([]func(any) any, bool) {
	if reflectx.Satisfies(typ, target) {
		return nil, true
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.edges) == 0 {
		return nil, false
	}

	seen := map[reflect.Type]struct{}{typ: {}}
	queue := []*step{{typ: typ}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range h.edges[cur.typ] {
			if _, ok := seen[e.super]; ok {
				continue
			}
			seen[e.super] = struct{}{}
			next := &step{prev: cur, typ: e.super, upcast: e.upcast}
			if reflectx.Satisfies(next.typ, target) {
				return next.chain(), true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

type step struct {
	prev   *step
	typ    reflect.Type
	upcast func(any) any
}

func (s *step) chain() []func(any) any {
	var chain []func(any) any
	for cur := s; cur.prev != nil; cur = cur.prev {
		chain = append(chain, cur.upcast)
	}
	slices.Reverse(chain)
	return chain
}
