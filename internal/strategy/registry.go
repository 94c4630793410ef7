package strategy

import (
	"fmt"
	"sort"
)

// Registry maps strategy names to implementations. It is built once at
// startup and read-only afterwards.
type Registry struct {
	byName map[string]Strategy
	names  []string
}

func NewRegistry(strats ...Strategy) (*Registry, error) {
	r := &Registry{byName: make(map[string]Strategy, len(strats))}
	for _, s := range strats {
		name := s.Name()
		if name == "" {
			return nil, fmt.Errorf("strategy %T has an empty name", s)
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("strategy %q registered twice", name)
		}
		r.byName[name] = s
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

// DefaultRegistry holds every built-in strategy.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		RSIReversalLong{},
		RSIReversalShort{},
		RSIContinuationLong{},
		RSIContinuationShort{},
		MAMomentumLong{},
		MAMomentumShort{},
		MACDShort{},
		BearFlagShort{},
		ChannelDownShort{TopN: 10},
		MATrendLong{},
		MATrendShort{},
	)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// All returns the strategies in name order.
func (r *Registry) All() []Strategy {
	out := make([]Strategy, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.byName[n])
	}
	return out
}

func (r *Registry) Len() int { return len(r.names) }
