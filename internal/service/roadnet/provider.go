package roadnet

import (
	"sync"
	"time"

	"github.com/fleetcab/cab-dispatch/pkg/logger"
)

// Config holds road network provider configuration.
type Config struct {
	// Path to the offline-produced graph artifact.
	Path string
	// ReloadAfter bounds graph staleness: after this window the next Load
	// re-reads the artifact. Zero disables reloading.
	ReloadAfter time.Duration
}

// Provider owns the process-wide road network cache. The graph is loaded
// once and reused: shortest-path queries dominate allocation cost and the
// artifact is large, so freshness is traded for I/O.
type Provider struct {
	cfg    Config
	logger *logger.Logger

	mu       sync.RWMutex
	graph    *Graph
	loadedAt time.Time
}

// NewProvider creates a file-backed provider.
func NewProvider(cfg Config, log *logger.Logger) *Provider {
	return &Provider{cfg: cfg, logger: log}
}

// NewStaticProvider wraps a fixed in-memory graph, for tests and embedded
// use. Load always succeeds and never re-reads anything.
func NewStaticProvider(g *Graph) *Provider {
	return &Provider{
		graph:    g,
		loadedAt: time.Now(),
		logger:   logger.NewNop(),
	}
}

// Load returns the cached graph, reading the artifact on first use and
// again once the staleness window has passed.
func (p *Provider) Load() (*Graph, error) {
	p.mu.RLock()
	if p.graph != nil && !p.stale() {
		g := p.graph
		p.mu.RUnlock()
		return g, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.graph != nil && !p.stale() {
		return p.graph, nil
	}

	g, err := LoadGraphFile(p.cfg.Path)
	if err != nil {
		if p.graph != nil {
			// Keep serving the stale graph rather than failing allocation;
			// bump loadedAt so every request does not retry the read.
			p.logger.Warn("Road network reload failed, serving stale graph",
				logger.String("path", p.cfg.Path),
				logger.Err(err),
			)
			p.loadedAt = time.Now()
			return p.graph, nil
		}
		return nil, err
	}

	p.graph = g
	p.loadedAt = time.Now()
	p.logger.Info("Road network loaded",
		logger.String("path", p.cfg.Path),
		logger.Int("nodes", g.NodeCount()),
	)
	return g, nil
}

func (p *Provider) stale() bool {
	return p.cfg.ReloadAfter > 0 && time.Since(p.loadedAt) >= p.cfg.ReloadAfter
}
