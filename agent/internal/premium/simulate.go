package premium

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
)

// BreachChecker looks an address up in known breach lists.
type BreachChecker interface {
	Check(ctx context.Context, email string) ([]string, error)
}

// Permission is one site capability and whether it is granted.
type Permission struct {
	Name    string
	Granted bool
}

type SitePermissions struct {
	Domain      string
	Permissions []string
}

// PermissionReporter reads and revokes site permissions.
type PermissionReporter interface {
	Current(ctx context.Context, domain string) ([]Permission, error)
	Sites(ctx context.Context) ([]SitePermissions, error)
	Revoke(ctx context.Context, domain, permission string) error
}

var SimulatedBreaches = []string{"LinkedIn (2021)", "Facebook (2019)", "Adobe (2013)"}

var PermissionNames = []string{"camera", "microphone", "geolocation", "notifications"}

// SimulatedBreachChecker reports one random breach for roughly 30% of
// addresses.
type SimulatedBreachChecker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulatedBreachChecker(seed uint64) *SimulatedBreachChecker {
	return &SimulatedBreachChecker{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (c *SimulatedBreachChecker) Check(ctx context.Context, _ string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rng.Float64() <= 0.7 {
		return nil, nil
	}
	return []string{SimulatedBreaches[c.rng.IntN(len(SimulatedBreaches))]}, nil
}

// SimulatedPermissions flips a coin per permission and remembers
// revocations.
type SimulatedPermissions struct {
	mu      sync.Mutex
	rng     *rand.Rand
	revoked map[string]map[string]bool
}

func NewSimulatedPermissions(seed uint64) *SimulatedPermissions {
	return &SimulatedPermissions{
		rng:     rand.New(rand.NewPCG(seed, seed+1)),
		revoked: map[string]map[string]bool{},
	}
}

func (p *SimulatedPermissions) Current(ctx context.Context, domain string) ([]Permission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Permission, 0, len(PermissionNames))
	for _, name := range PermissionNames {
		granted := p.rng.Float64() > 0.5 && !p.revoked[domain][name]
		out = append(out, Permission{Name: name, Granted: granted})
	}
	return out, nil
}

func (p *SimulatedPermissions) Sites(ctx context.Context) ([]SitePermissions, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sites := []SitePermissions{
		{Domain: "youtube.com", Permissions: []string{"camera", "microphone"}},
		{Domain: "google.com", Permissions: []string{"geolocation"}},
		{Domain: "facebook.com", Permissions: []string{"notifications", "camera"}},
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range sites {
		kept := sites[i].Permissions[:0]
		for _, perm := range sites[i].Permissions {
			if !p.revoked[sites[i].Domain][perm] {
				kept = append(kept, perm)
			}
		}
		sites[i].Permissions = kept
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].Domain < sites[j].Domain })
	return sites, nil
}

func (p *SimulatedPermissions) Revoke(_ context.Context, domain, permission string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.revoked[domain] == nil {
		p.revoked[domain] = map[string]bool{}
	}
	p.revoked[domain][permission] = true
	return nil
}
