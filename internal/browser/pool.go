package browser

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ImageHarvester/internal/metrics"
	"ImageHarvester/internal/models"
)

// PoolConfig is fixed at construction.
type PoolConfig struct {
	MaxInstances int
	IdleTimeout  time.Duration
	ReapInterval time.Duration
}

// DefaultPoolConfig matches the desktop application: four browsers, closed
// after five idle minutes, checked every minute.
var DefaultPoolConfig = PoolConfig{
	MaxInstances: 4,
	IdleTimeout:  5 * time.Minute,
	ReapInterval: time.Minute,
}

// Session is a pooled automation handle. Callers only hold it between
// Acquire and Release.
type Session struct {
	ID string
	Handle

	busy       bool
	lastUsedAt time.Time
}

// Pool hands out at most MaxInstances sessions and reaps idle ones.
type Pool struct {
	cfg     PoolConfig
	driver  Driver
	metrics *metrics.Metrics
	now     func() time.Time

	mu        sync.Mutex
	sessions  []*Session
	launching int
	closed    bool
	// changed is closed and replaced whenever a session becomes idle, is
	// removed, or a launch slot frees up; waiters select on it.
	changed chan struct{}

	stopCh   chan struct{}
	reaperWG sync.WaitGroup
	stopOnce sync.Once
}

// NewPool creates a pool and starts its reaper.
func NewPool(cfg PoolConfig, driver Driver, m *metrics.Metrics) *Pool {
	if cfg.MaxInstances <= 0 {
		cfg.MaxInstances = DefaultPoolConfig.MaxInstances
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultPoolConfig.IdleTimeout
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = DefaultPoolConfig.ReapInterval
	}

	p := &Pool{
		cfg:     cfg,
		driver:  driver,
		metrics: m,
		now:     time.Now,
		changed: make(chan struct{}),
		stopCh:  make(chan struct{}),
	}

	p.reaperWG.Add(1)
	go p.reapLoop()

	log.Info().
		Str("driver", driver.Name()).
		Int("max_instances", cfg.MaxInstances).
		Dur("idle_timeout", cfg.IdleTimeout).
		Msg("Session pool started")
	return p
}

// Acquire returns an idle session, launches a new one while under the bound,
// or waits for a release. It gives up when ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, models.ErrPoolClosed
		}

		for _, s := range p.sessions {
			if !s.busy {
				s.busy = true
				s.lastUsedAt = p.now()
				p.publishLocked()
				p.mu.Unlock()
				log.Debug().Str("session", s.ID).Msg("Reusing idle session")
				return s, nil
			}
		}

		if len(p.sessions)+p.launching < p.cfg.MaxInstances {
			p.launching++
			p.mu.Unlock()
			return p.launch(ctx)
		}

		wait := p.changed
		p.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// launch runs outside the lock with a slot already reserved.
func (p *Pool) launch(ctx context.Context) (*Session, error) {
	handle, err := p.driver.Launch(ctx)

	p.mu.Lock()
	p.launching--
	if err != nil {
		p.notifyLocked()
		p.mu.Unlock()
		p.metrics.SessionLaunchFailed()
		log.Error().Err(err).Str("driver", p.driver.Name()).Msg("Failed to launch session")
		return nil, &models.SessionCreationError{Driver: p.driver.Name(), Err: err}
	}
	if p.closed {
		p.notifyLocked()
		p.mu.Unlock()
		_ = handle.Terminate()
		return nil, models.ErrPoolClosed
	}

	s := &Session{
		ID:         uuid.NewString(),
		Handle:     handle,
		busy:       true,
		lastUsedAt: p.now(),
	}
	p.sessions = append(p.sessions, s)
	p.publishLocked()
	live := len(p.sessions)
	p.mu.Unlock()

	p.metrics.SessionLaunched()
	log.Info().Str("session", s.ID).Int("live", live).Msg("Launched new session")
	return s, nil
}

// Release marks s idle. Unknown or nil sessions are ignored.
func (p *Pool) Release(s *Session) {
	if s == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, known := range p.sessions {
		if known == s {
			known.busy = false
			known.lastUsedAt = p.now()
			p.publishLocked()
			p.notifyLocked()
			return
		}
	}
}

// Live returns the number of registered sessions.
func (p *Pool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Busy returns the number of sessions currently held.
func (p *Pool) Busy() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busyLocked()
}

// MaxInstances returns the configured bound.
func (p *Pool) MaxInstances() int {
	return p.cfg.MaxInstances
}

func (p *Pool) reapLoop() {
	defer p.reaperWG.Done()
	ticker := time.NewTicker(p.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.reapIdle()
		case <-p.stopCh:
			return
		}
	}
}

// reapIdle terminates idle sessions past the idle timeout and returns how many
// were closed.
func (p *Pool) reapIdle() int {
	now := p.now()

	p.mu.Lock()
	var expired []*Session
	kept := p.sessions[:0]
	for _, s := range p.sessions {
		if !s.busy && now.Sub(s.lastUsedAt) > p.cfg.IdleTimeout {
			expired = append(expired, s)
			continue
		}
		kept = append(kept, s)
	}
	for i := len(kept); i < len(p.sessions); i++ {
		p.sessions[i] = nil
	}
	p.sessions = kept
	if len(expired) > 0 {
		p.publishLocked()
		p.notifyLocked()
	}
	p.mu.Unlock()

	for _, s := range expired {
		if err := s.Terminate(); err != nil {
			log.Warn().Err(err).Str("session", s.ID).Msg("Error closing idle session")
		}
		log.Info().Str("session", s.ID).Msg("Closed idle session")
	}
	p.metrics.SessionsReapedAdd(len(expired))
	return len(expired)
}

// Shutdown stops the reaper and terminates every session, busy or not.
func (p *Pool) Shutdown() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.reaperWG.Wait()

		p.mu.Lock()
		p.closed = true
		sessions := p.sessions
		p.sessions = nil
		p.publishLocked()
		p.notifyLocked()
		p.mu.Unlock()

		var wg sync.WaitGroup
		for _, s := range sessions {
			wg.Add(1)
			go func(s *Session) {
				defer wg.Done()
				if err := s.Terminate(); err != nil {
					log.Warn().Err(err).Str("session", s.ID).Msg("Error closing session")
				}
			}(s)
		}
		wg.Wait()
		log.Info().Int("closed", len(sessions)).Msg("Session pool shut down")
	})
}

func (p *Pool) notifyLocked() {
	close(p.changed)
	p.changed = make(chan struct{})
}

func (p *Pool) busyLocked() int {
	n := 0
	for _, s := range p.sessions {
		if s.busy {
			n++
		}
	}
	return n
}

func (p *Pool) publishLocked() {
	p.metrics.SetPoolSize(len(p.sessions), p.busyLocked())
}
