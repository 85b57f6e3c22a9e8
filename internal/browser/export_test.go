package browser

import "time"

func (p *Pool) ReapIdle() int { return p.reapIdle() }

func (p *Pool) SetClock(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}
