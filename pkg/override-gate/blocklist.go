package overridegate

import (
	"log/slog"
	"net/netip"
)

// Blocklist holds the absolute block entries: exact addresses, CIDR ranges
// and hashed email addresses. Entries come from the reference data store;
// unparseable ones are skipped with a warning instead of failing the load.
type Blocklist struct {
	addresses   map[netip.Addr]struct{}
	prefixes    []netip.Prefix
	emailHashes map[string]struct{}
}

func NewBlocklist(addresses []string, cidrs []string, emailHashes []string) *Blocklist {
	b := &Blocklist{
		addresses:   make(map[netip.Addr]struct{}, len(addresses)),
		prefixes:    make([]netip.Prefix, 0, len(cidrs)),
		emailHashes: make(map[string]struct{}, len(emailHashes)),
	}

	skipped := 0
	for _, entry := range addresses {
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			skipped++
			slog.Warn("skipping unparseable blocklist address", slog.String("error", err.Error()))
			continue
		}
		b.addresses[addr.Unmap()] = struct{}{}
	}
	for _, entry := range cidrs {
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			skipped++
			slog.Warn("skipping unparseable blocklist range", slog.String("error", err.Error()))
			continue
		}
		b.prefixes = append(b.prefixes, prefix.Masked())
	}
	for _, hash := range emailHashes {
		if hash == "" {
			continue
		}
		b.emailHashes[hash] = struct{}{}
	}

	slog.Info("blocklist loaded",
		slog.Int("addresses", len(b.addresses)),
		slog.Int("ranges", len(b.prefixes)),
		slog.Int("emailHashes", len(b.emailHashes)),
		slog.Int("skipped", skipped))
	return b
}

// ContainsAddress reports whether the address is listed exactly or falls
// into any listed range.
func (b *Blocklist) ContainsAddress(addr netip.Addr) bool {
	addr = addr.Unmap()
	if _, ok := b.addresses[addr]; ok {
		return true
	}
	for _, prefix := range b.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func (b *Blocklist) ContainsEmailHash(hash string) bool {
	_, ok := b.emailHashes[hash]
	return ok
}
