package overridegate

import (
	"net/netip"
	"sync"
)

const DEFAULT_MULTI_ACCOUNT_THRESHOLD = 3

type Reason string

const (
	ReasonBlocklist    Reason = "blocklist"
	ReasonHoneypot     Reason = "honeypot"
	ReasonMultiAccount Reason = "multi_account"
)

// Input is everything the gate looks at. Only hashed identifiers are
// carried; the raw source address is parsed, matched and dropped.
type Input struct {
	Address                  string
	EmailHash                string
	HoneypotValue            string
	FingerprintPresent       bool
	FingerprintPriorAccounts int
}

type Result struct {
	Blocked bool
	Reason  Reason
	Detail  string
}

// Gate runs the absolute pre-score checks. A hit ends the evaluation; the
// scoring pipeline never runs for gated attempts.
type Gate struct {
	mu                    sync.RWMutex
	blocklist             *Blocklist
	multiAccountThreshold int
}

func NewGate(blocklist *Blocklist, multiAccountThreshold int) *Gate {
	if multiAccountThreshold < 1 {
		multiAccountThreshold = DEFAULT_MULTI_ACCOUNT_THRESHOLD
	}
	if blocklist == nil {
		blocklist = NewBlocklist(nil, nil, nil)
	}
	return &Gate{
		blocklist:             blocklist,
		multiAccountThreshold: multiAccountThreshold,
	}
}

// SetBlocklist swaps the block entries, e.g. after a reference data refresh.
func (g *Gate) SetBlocklist(blocklist *Blocklist) {
	if blocklist == nil {
		return
	}
	g.mu.Lock()
	g.blocklist = blocklist
	g.mu.Unlock()
}

// Evaluate runs the checks in their fixed order: address blocklist, email
// blocklist, honeypot, multi-account fingerprint. The first hit wins.
func (g *Gate) Evaluate(input Input) Result {
	g.mu.RLock()
	blocklist := g.blocklist
	g.mu.RUnlock()

	if addr, err := netip.ParseAddr(input.Address); err == nil {
		if blocklist.ContainsAddress(addr) {
			return Result{Blocked: true, Reason: ReasonBlocklist, Detail: "source address blocklisted"}
		}
	}

	if input.EmailHash != "" && blocklist.ContainsEmailHash(input.EmailHash) {
		return Result{Blocked: true, Reason: ReasonBlocklist, Detail: "email address blocklisted"}
	}

	if input.HoneypotValue != "" {
		return Result{Blocked: true, Reason: ReasonHoneypot, Detail: "honeypot field filled out"}
	}

	if input.FingerprintPresent && input.FingerprintPriorAccounts >= g.multiAccountThreshold {
		return Result{Blocked: true, Reason: ReasonMultiAccount, Detail: "fingerprint linked to too many accounts"}
	}

	return Result{}
}
