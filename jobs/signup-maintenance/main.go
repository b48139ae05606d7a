package main

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	emaildomain "github.com/djenkins452/dbawholelifejourney-sub000/pkg/email-domain"

	referenceDataDB "github.com/djenkins452/dbawholelifejourney-sub000/pkg/db/reference-data"
)

func main() {
	slog.Info("Starting signup maintenance job")
	start := time.Now()

	if conf.RunTasks.MarkAbandonedAttempts {
		markAbandonedAttempts()
	}

	if conf.RunTasks.PurgeAgedAttempts {
		purgeAgedAttempts()
	}

	if conf.RunTasks.DeleteSpentTokens {
		deleteSpentTokens()
	}

	if conf.RunTasks.DeleteUnverifiedAccounts {
		deleteUnverifiedAccounts()
	}

	if conf.RunTasks.SweepElapsedCounters {
		sweepElapsedCounters()
	}

	if conf.RunTasks.SeedReferenceData {
		seedReferenceData()
	}

	slog.Info("Signup maintenance jobs completed", slog.Duration("duration", time.Since(start)))
}

// markAbandonedAttempts closes out attempts whose verification window has
// elapsed without the account ever verifying.
func markAbandonedAttempts() {
	slog.Debug("Start marking abandoned signup attempts")

	cutoff := time.Now().Add(-tokenTTL)
	count, err := attemptLedgerDBService.MarkAbandonedOlderThan(cutoff)
	if err != nil {
		slog.Error("Error marking abandoned signup attempts", slog.String("error", err.Error()))
		return
	}

	slog.Info("Marking abandoned signup attempts finished", slog.Int("count", int(count)))
}

// purgeAgedAttempts is the explicit backstop to the ledger's TTL index.
func purgeAgedAttempts() {
	slog.Debug("Start purging aged signup attempts")

	cutoff := time.Now().Add(-attemptRetention)
	count, err := attemptLedgerDBService.DeleteAttemptsOlderThan(cutoff)
	if err != nil {
		slog.Error("Error purging aged signup attempts", slog.String("error", err.Error()))
		return
	}

	slog.Info("Purging aged signup attempts finished", slog.Int("count", int(count)))
}

func deleteSpentTokens() {
	slog.Debug("Start deleting spent verification tokens")

	cutoff := time.Now().Add(-deleteSpentTokensAfter)
	count, err := verificationTokenDBService.DeleteTokensExpiredBefore(cutoff)
	if err != nil {
		slog.Error("Error deleting spent verification tokens", slog.String("error", err.Error()))
		return
	}

	slog.Info("Deleting spent verification tokens finished", slog.Int("count", int(count)))
}

func deleteUnverifiedAccounts() {
	slog.Debug("Start deleting unverified accounts")

	cutoff := time.Now().Add(-deleteUnverifiedAccountsAfter)
	count, err := accountDBService.DeleteUnverifiedAccountsCreatedBefore(cutoff)
	if err != nil {
		slog.Error("Error deleting unverified accounts", slog.String("error", err.Error()))
		return
	}

	slog.Info("Deleting unverified accounts finished", slog.Int("count", int(count)))
}

// sweepElapsedCounters removes rate limit counters whose window has passed.
// Only relevant for the mongo counter store; redis counters expire on their own.
func sweepElapsedCounters() {
	slog.Debug("Start sweeping elapsed rate limit counters")

	count, err := counterDBService.RemoveElapsedCounters(context.Background())
	if err != nil {
		slog.Error("Error sweeping elapsed rate limit counters", slog.String("error", err.Error()))
		return
	}

	slog.Info("Sweeping elapsed rate limit counters finished", slog.Int("count", int(count)))
}

func seedReferenceData() {
	if path := conf.MaintenanceConfig.DisposableDomainsFilePath; path != "" {
		seedDisposableDomains(path)
	}

	if path := conf.MaintenanceConfig.BlocklistFilePath; path != "" {
		seedBlockEntries(path)
	}
}

func seedDisposableDomains(path string) {
	slog.Debug("Start seeding disposable domains", slog.String("filename", path))

	domains, err := emaildomain.LoadDomainListFile(path)
	if err != nil {
		slog.Error("Error loading disposable domain list", slog.String("filename", path), slog.String("error", err.Error()))
		return
	}

	count := 0
	for domain := range domains {
		if err := referenceDataDBService.AddDisposableDomain(domain); err != nil {
			slog.Error("Error seeding disposable domain", slog.String("error", err.Error()))
			continue
		}
		count += 1
	}

	slog.Info("Seeding disposable domains finished", slog.Int("count", count))
}

// seedBlockEntries reads a newline separated list of addresses and CIDR
// ranges. Empty lines and lines starting with '#' are skipped.
func seedBlockEntries(path string) {
	slog.Debug("Start seeding block entries", slog.String("filename", path))

	file, err := os.Open(path)
	if err != nil {
		slog.Error("Error opening blocklist file", slog.String("filename", path), slog.String("error", err.Error()))
		return
	}
	defer file.Close()

	count := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		entry := strings.TrimSpace(scanner.Text())
		if entry == "" || strings.HasPrefix(entry, "#") {
			continue
		}

		kind := referenceDataDB.KindAddress
		if strings.Contains(entry, "/") {
			kind = referenceDataDB.KindCIDR
		}

		if err := referenceDataDBService.AddBlockEntry(referenceDataDB.BlockEntry{
			Kind:  kind,
			Value: entry,
		}); err != nil {
			slog.Error("Error seeding block entry", slog.String("error", err.Error()))
			continue
		}
		count += 1
	}
	if err := scanner.Err(); err != nil {
		slog.Error("Error reading blocklist file", slog.String("filename", path), slog.String("error", err.Error()))
		return
	}

	slog.Info("Seeding block entries finished", slog.Int("count", count))
}
