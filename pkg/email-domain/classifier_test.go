package emaildomain

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/scoring"
)

func newTestClassifier(mxDomains map[string]bool, mxErr error) *Classifier {
	c := NewClassifier(Sets{
		Disposable:    map[string]struct{}{"tempmail.org": {}, "10minutemail.com": {}},
		HighAbuseFree: map[string]struct{}{"mail.ru": {}},
		CommonFree:    map[string]struct{}{"gmail.com": {}, "yahoo.com": {}},
	}, time.Second)
	c.lookupMX = func(ctx context.Context, domain string) ([]*net.MX, error) {
		if mxErr != nil {
			return nil, mxErr
		}
		if mxDomains[domain] {
			return []*net.MX{{Host: "mx1." + domain}}, nil
		}
		return nil, &net.DNSError{Err: "no such host", Name: domain, IsNotFound: true}
	}
	return c
}

func TestClassify(t *testing.T) {
	classifier := newTestClassifier(map[string]bool{"company-with-mail.com": true}, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		domain   string
		expected scoring.DomainClass
	}{
		{name: "disposable domain", domain: "tempmail.org", expected: scoring.DomainClassDisposable},
		{name: "subdomain of disposable domain", domain: "mail.tempmail.org", expected: scoring.DomainClassDisposable},
		{name: "deep subdomain of disposable domain", domain: "a.b.tempmail.org", expected: scoring.DomainClassDisposable},
		{name: "high abuse free provider", domain: "mail.ru", expected: scoring.DomainClassHighAbuse},
		{name: "common free provider", domain: "gmail.com", expected: scoring.DomainClassCommonFree},
		{name: "subdomain of free provider is not the provider", domain: "phish.gmail.com", expected: scoring.DomainClassUnclassified},
		{name: "domain with mx records", domain: "company-with-mail.com", expected: scoring.DomainClassEstablished},
		{name: "edu domain without mx", domain: "university.edu", expected: scoring.DomainClassEstablished},
		{name: "unknown domain without mx", domain: "no-such-company.example", expected: scoring.DomainClassUnclassified},
		{name: "mixed case is normalized", domain: "TempMail.ORG", expected: scoring.DomainClassDisposable},
		{name: "trailing dot is normalized", domain: "gmail.com.", expected: scoring.DomainClassCommonFree},
		{name: "empty domain", domain: "", expected: scoring.DomainClassUnknown},
		{name: "domain without dot", domain: "localhost", expected: scoring.DomainClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifier.Classify(ctx, tt.domain); got != tt.expected {
				t.Errorf("Classify(%q) = %q, want %q", tt.domain, got, tt.expected)
			}
		})
	}
}

func TestClassifyEmail(t *testing.T) {
	classifier := newTestClassifier(nil, nil)
	ctx := context.Background()

	if got := classifier.ClassifyEmail(ctx, "Someone@TEMPMAIL.org"); got != scoring.DomainClassDisposable {
		t.Errorf("ClassifyEmail = %q, want disposable", got)
	}
	if got := classifier.ClassifyEmail(ctx, "not-an-email"); got != scoring.DomainClassUnknown {
		t.Errorf("ClassifyEmail = %q, want unknown", got)
	}
}

func TestClassifyLookupFailureIsUnclassified(t *testing.T) {
	classifier := newTestClassifier(nil, errors.New("dns timeout"))

	if got := classifier.Classify(context.Background(), "reachable-on-good-days.com"); got != scoring.DomainClassUnclassified {
		t.Errorf("Classify = %q, want unclassified on lookup failure", got)
	}
}

func TestUpdateSets(t *testing.T) {
	classifier := newTestClassifier(nil, nil)
	ctx := context.Background()

	if got := classifier.Classify(ctx, "fresh-burner.io"); got != scoring.DomainClassUnclassified {
		t.Fatalf("unexpected class before update: %q", got)
	}

	classifier.UpdateSets(Sets{Disposable: map[string]struct{}{"fresh-burner.io": {}}})

	if got := classifier.Classify(ctx, "fresh-burner.io"); got != scoring.DomainClassDisposable {
		t.Errorf("unexpected class after update: %q", got)
	}
	if got := classifier.Classify(ctx, "smtp.fresh-burner.io"); got != scoring.DomainClassDisposable {
		t.Errorf("subdomain not covered after update: %q", got)
	}
}

func TestLoadDomainListFile(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "disposable.txt")
	content := "tempmail.org\n# comment line\n\nTRASHMAIL.com\nnodotentry\n10minutemail.com\n"
	if err := os.WriteFile(filename, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	domains, err := LoadDomainListFile(filename)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(domains) != 3 {
		t.Errorf("unexpected number of domains %d, want 3", len(domains))
	}
	for _, want := range []string{"tempmail.org", "trashmail.com", "10minutemail.com"} {
		if _, ok := domains[want]; !ok {
			t.Errorf("expected domain %q in loaded set", want)
		}
	}

	if _, err := LoadDomainListFile(filepath.Join(dir, "missing.txt")); err == nil {
		t.Errorf("expected error for missing file")
	}
}
