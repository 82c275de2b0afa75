package loadbalancer

import "sync"

// Pool hands out upstream base URLs round-robin. The gateway uses it when
// more than one ledger API replica is configured.
type Pool struct {
	upstreams []string
	mu        sync.Mutex
	current   int
}

func NewPool(upstreams []string) *Pool {
	return &Pool{upstreams: upstreams}
}

func (p *Pool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	upstream := p.upstreams[p.current]
	p.current = (p.current + 1) % len(p.upstreams)
	return upstream
}

func (p *Pool) Len() int {
	return len(p.upstreams)
}
