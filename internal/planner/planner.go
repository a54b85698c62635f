package planner

import (
	"errors"
	"time"

	"github.com/bluele/gcache"

	"github.com/cxd309/metro-engine/internal/network"
)

// Topology is the read view of the network the planner searches.
type Topology interface {
	Line(id network.LineID) (*network.Line, error)
	LinesServing(sid network.StationID) []*network.Line
	SharedLine(a, b network.StationID) *network.Line
}

// Config tunes the search and the route cache.
type Config struct {
	TransferCost int           `yaml:"transferCost" validate:"gte=0"` // hop-equivalents charged per transfer
	TransferTime float64       `yaml:"transferTime" validate:"gte=0"` // time multiplier per transfer
	MaxTransfers int           `yaml:"maxTransfers" validate:"gte=0"`
	CacheSize    int           `yaml:"cacheSize" validate:"gte=0"` // 0 disables caching
	CacheTimeout time.Duration `yaml:"cacheTimeout" validate:"gte=0"`
}

// DefaultConfig returns the standard planner tuning.
func DefaultConfig() Config {
	return Config{
		TransferCost: 2,
		TransferTime: 1.5,
		MaxTransfers: 3,
		CacheSize:    1000,
		CacheTimeout: 30 * time.Second,
	}
}

type routeKey struct {
	from, to network.StationID
}

// Planner finds routes and memoizes them until the topology changes or the
// entry expires.
type Planner struct {
	topo  Topology
	cfg   Config
	cache gcache.Cache // nil when caching is disabled
}

// New returns a Planner using the wall clock for cache expiry.
func New(topo Topology, cfg Config) *Planner {
	return NewWithClock(topo, cfg, gcache.NewRealClock())
}

// NewWithClock returns a Planner whose cache expiry is driven by clock.
func NewWithClock(topo Topology, cfg Config, clock gcache.Clock) *Planner {
	p := &Planner{topo: topo, cfg: cfg}
	if cfg.CacheSize > 0 {
		b := gcache.New(cfg.CacheSize).LRU().Clock(clock)
		if cfg.CacheTimeout > 0 {
			b = b.Expiration(cfg.CacheTimeout)
		}
		p.cache = b.Build()
	}
	return p
}

// Invalidate drops every cached route. It must run after each topology
// mutation.
func (p *Planner) Invalidate() {
	if p.cache != nil {
		p.cache.Purge()
	}
}

// CacheStats summarises cache usage.
type CacheStats struct {
	Size    int     `json:"size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Stats reports the current cache state.
func (p *Planner) Stats() CacheStats {
	if p.cache == nil {
		return CacheStats{}
	}
	return CacheStats{
		Size:    p.cache.Len(true),
		Hits:    p.cache.HitCount(),
		Misses:  p.cache.MissCount(),
		HitRate: p.cache.HitRate(),
	}
}

// FindShortestPath returns a route from one station to another, or nil when
// from == to or the destination is unreachable within MaxTransfers.
func (p *Planner) FindShortestPath(from, to network.StationID) *Route {
	if from == to {
		return nil
	}
	key := routeKey{from, to}
	if p.cache != nil {
		v, err := p.cache.Get(key)
		if err == nil {
			return v.(*Route)
		}
		if !errors.Is(err, gcache.KeyNotFoundError) {
			panic(err)
		}
	}
	r := p.search(from, to)
	if p.cache != nil {
		_ = p.cache.Set(key, r)
	}
	return r
}

func (p *Planner) search(from, to network.StationID) *Route {
	if l := p.topo.SharedLine(from, to); l != nil {
		d := abs(l.IndexOf(from) - l.IndexOf(to))
		return &Route{
			From: from,
			To:   to,
			Steps: []Step{
				{StationID: from, LineID: l.ID},
				{StationID: to, LineID: l.ID},
			},
			TotalDistance: d,
			EstimatedTime: float64(d),
		}
	}
	return p.bfs(from, to)
}

type state struct {
	station network.StationID
	line    network.LineID
}

type node struct {
	state
	distance  int
	transfers int
	path      []Step
}

// bfs explores (station, line) states in FIFO order and stops at the first
// arrival at the destination. Ordering is by expansion depth, not weighted
// distance, so the result favours few rides but is not guaranteed minimal
// in TotalDistance.
func (p *Planner) bfs(from, to network.StationID) *Route {
	visited := make(map[state]bool)
	var queue []node
	for _, l := range p.topo.LinesServing(from) {
		s := state{from, l.ID}
		visited[s] = true
		queue = append(queue, node{state: s, path: []Step{{StationID: from, LineID: l.ID}}})
	}

	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		if cur.transfers > p.cfg.MaxTransfers {
			continue
		}
		line, err := p.topo.Line(cur.line)
		if err != nil {
			continue
		}
		curIdx := line.IndexOf(cur.station)
		for i, next := range line.Stations {
			if next == cur.station {
				continue
			}
			dist := cur.distance + abs(i-curIdx)
			if next == to {
				steps := extend(cur.path, Step{StationID: to, LineID: cur.line})
				return &Route{
					From:          from,
					To:            to,
					Steps:         steps,
					TotalDistance: dist,
					TransferCount: cur.transfers,
					EstimatedTime: float64(dist) + float64(cur.transfers)*p.cfg.TransferTime,
				}
			}
			ride := Step{StationID: next, LineID: cur.line}
			if s := (state{next, cur.line}); !visited[s] {
				visited[s] = true
				queue = append(queue, node{
					state:     s,
					distance:  dist,
					transfers: cur.transfers,
					path:      extend(cur.path, ride),
				})
			}
			for _, other := range p.topo.LinesServing(next) {
				if other.ID == cur.line {
					continue
				}
				s := state{next, other.ID}
				if visited[s] {
					continue
				}
				visited[s] = true
				queue = append(queue, node{
					state:     s,
					distance:  dist + p.cfg.TransferCost,
					transfers: cur.transfers + 1,
					path:      extend(cur.path, ride, Step{StationID: next, LineID: other.ID, IsTransfer: true}),
				})
			}
		}
	}
	return nil
}

func extend(path []Step, steps ...Step) []Step {
	out := make([]Step, 0, len(path)+len(steps))
	out = append(out, path...)
	return append(out, steps...)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
