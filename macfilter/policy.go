// Package macfilter decides which hardware addresses may associate with
// an access point.
package macfilter

import (
	"errors"
	"net"
	"sync"
)

// Kind selects how a policy treats addresses it knows about.
type Kind int

const (
	// Public admits every address.
	Public Kind = iota
	// Allowlist admits only listed addresses.
	Allowlist
	// Denylist admits everything except listed addresses.
	Denylist
)

var (
	ErrNotAllowlist = errors.New("policy is not an allowlist")
	ErrNotDenylist  = errors.New("policy is not a denylist")
)

// Policy is a MAC address admission policy. Safe for concurrent use.
type Policy struct {
	mtx  sync.RWMutex
	kind Kind
	macs map[string]struct{}
}

// NewPublic creates a policy admitting every address.
func NewPublic() *Policy {
	return &Policy{kind: Public}
}

// NewAllowlist creates a policy with an empty allowlist.
func NewAllowlist() *Policy {
	return &Policy{kind: Allowlist, macs: make(map[string]struct{})}
}

// NewDenylist creates a policy with an empty denylist.
func NewDenylist() *Policy {
	return &Policy{kind: Denylist, macs: make(map[string]struct{})}
}

func (p *Policy) Kind() Kind {
	return p.kind
}

// Allow adds an address to the allowlist. The policy must be an
// allowlist.
func (p *Policy) Allow(mac net.HardwareAddr) error {
	if p.kind != Allowlist {
		return ErrNotAllowlist
	}

	p.mtx.Lock()
	p.macs[mac.String()] = struct{}{}
	p.mtx.Unlock()

	return nil
}

// Deny adds an address to the denylist. The policy must be a denylist.
func (p *Policy) Deny(mac net.HardwareAddr) error {
	if p.kind != Denylist {
		return ErrNotDenylist
	}

	p.mtx.Lock()
	p.macs[mac.String()] = struct{}{}
	p.mtx.Unlock()

	return nil
}

// Check reports whether the policy admits an address.
func (p *Policy) Check(mac net.HardwareAddr) bool {
	switch p.kind {
	case Allowlist:
		p.mtx.RLock()
		_, ok := p.macs[mac.String()]
		p.mtx.RUnlock()
		return ok
	case Denylist:
		p.mtx.RLock()
		_, ok := p.macs[mac.String()]
		p.mtx.RUnlock()
		return !ok
	default:
		return true
	}
}
