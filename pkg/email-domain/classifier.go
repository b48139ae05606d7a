package emaildomain

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/privacy"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/scoring"
)

const DEFAULT_LOOKUP_TIMEOUT = 3 * time.Second

// Sets holds the domain lists the classifier matches against. Disposable
// domains are matched including their subdomains, provider lists exactly.
type Sets struct {
	Disposable    map[string]struct{}
	HighAbuseFree map[string]struct{}
	CommonFree    map[string]struct{}
}

func (s Sets) Counts() (disposable int, highAbuse int, commonFree int) {
	return len(s.Disposable), len(s.HighAbuseFree), len(s.CommonFree)
}

type mxLookupFunc func(ctx context.Context, domain string) ([]*net.MX, error)

// Classifier assigns email domains to the risk classes consumed by the
// email-domain signal. Sets can be swapped at runtime when reference data
// is refreshed.
type Classifier struct {
	mu            sync.RWMutex
	sets          Sets
	lookupTimeout time.Duration
	lookupMX      mxLookupFunc
}

func NewClassifier(sets Sets, lookupTimeout time.Duration) *Classifier {
	if lookupTimeout <= 0 {
		lookupTimeout = DEFAULT_LOOKUP_TIMEOUT
	}
	return &Classifier{
		sets:          normalizeSets(sets),
		lookupTimeout: lookupTimeout,
		lookupMX: func(ctx context.Context, domain string) ([]*net.MX, error) {
			return net.DefaultResolver.LookupMX(ctx, domain)
		},
	}
}

// UpdateSets replaces the domain lists, e.g. after a reference data refresh.
func (c *Classifier) UpdateSets(sets Sets) {
	normalized := normalizeSets(sets)
	c.mu.Lock()
	c.sets = normalized
	c.mu.Unlock()
}

// ClassifyEmail classifies the domain part of an address.
func (c *Classifier) ClassifyEmail(ctx context.Context, email string) scoring.DomainClass {
	return c.Classify(ctx, privacy.EmailDomain(email))
}

// Classify maps a domain onto its risk class. Classification is total: an
// empty domain is the only input reported as unknown.
func (c *Classifier) Classify(ctx context.Context, domain string) scoring.DomainClass {
	domain = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(domain), "."))
	if domain == "" || !strings.Contains(domain, ".") {
		return scoring.DomainClassUnknown
	}

	c.mu.RLock()
	sets := c.sets
	c.mu.RUnlock()

	// Disposable entries also cover their subdomains, so mail.tempmail.org
	// is caught by a tempmail.org entry.
	if matchesDomainOrParent(domain, sets.Disposable) {
		return scoring.DomainClassDisposable
	}
	if _, ok := sets.HighAbuseFree[domain]; ok {
		return scoring.DomainClassHighAbuse
	}
	if _, ok := sets.CommonFree[domain]; ok {
		return scoring.DomainClassCommonFree
	}

	if strings.HasSuffix(domain, ".edu") {
		return scoring.DomainClassEstablished
	}
	if c.hasMXRecord(ctx, domain) {
		return scoring.DomainClassEstablished
	}

	return scoring.DomainClassUnclassified
}

func (c *Classifier) hasMXRecord(ctx context.Context, domain string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	records, err := c.lookupMX(ctx, domain)
	if err != nil {
		// Unresolvable and temporarily unreachable domains both end up
		// unclassified; the signal keeps its 0.2 bucket either way.
		return false
	}
	return len(records) > 0
}

// matchesDomainOrParent walks the domain's labels from the left, so a set
// entry matches the exact domain and any of its subdomains.
func matchesDomainOrParent(domain string, set map[string]struct{}) bool {
	if len(set) == 0 {
		return false
	}
	for {
		if _, ok := set[domain]; ok {
			return true
		}
		idx := strings.Index(domain, ".")
		if idx < 0 {
			return false
		}
		domain = domain[idx+1:]
		if !strings.Contains(domain, ".") {
			// Top level labels alone are never list entries.
			return false
		}
	}
}

func normalizeSets(sets Sets) Sets {
	return Sets{
		Disposable:    normalizeDomainSet(sets.Disposable),
		HighAbuseFree: normalizeDomainSet(sets.HighAbuseFree),
		CommonFree:    normalizeDomainSet(sets.CommonFree),
	}
}

func normalizeDomainSet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for domain := range in {
		domain = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(domain), "."))
		if domain == "" {
			continue
		}
		out[domain] = struct{}{}
	}
	return out
}
