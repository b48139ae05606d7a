package emaildomain

import (
	"bufio"
	"log/slog"
	"os"
	"strings"
)

// Curated provider lists used when no reference data is configured.
// Deployments extend or replace these through the reference data store.
var defaultCommonFreeDomains = []string{
	"gmail.com",
	"googlemail.com",
	"yahoo.com",
	"ymail.com",
	"hotmail.com",
	"outlook.com",
	"live.com",
	"msn.com",
	"icloud.com",
	"me.com",
	"aol.com",
	"proton.me",
	"protonmail.com",
	"pm.me",
	"zoho.com",
}

var defaultHighAbuseFreeDomains = []string{
	"mail.ru",
	"inbox.ru",
	"bk.ru",
	"list.ru",
	"rambler.ru",
	"gmx.com",
	"gmx.net",
	"mail.com",
	"yopmail.net",
}

func DefaultSets() Sets {
	return Sets{
		Disposable:    map[string]struct{}{},
		HighAbuseFree: sliceToDomainSet(defaultHighAbuseFreeDomains),
		CommonFree:    sliceToDomainSet(defaultCommonFreeDomains),
	}
}

func sliceToDomainSet(domains []string) map[string]struct{} {
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		set[d] = struct{}{}
	}
	return set
}

// LoadDomainListFile reads a newline separated domain list. Empty lines and
// lines starting with '#' are skipped.
func LoadDomainListFile(filename string) (map[string]struct{}, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	domains := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	lines := 0
	usedEntries := 0
	for scanner.Scan() {
		lines += 1
		entry := strings.TrimSpace(scanner.Text())
		if entry == "" || strings.HasPrefix(entry, "#") {
			continue
		}
		if !strings.Contains(entry, ".") {
			continue
		}
		usedEntries += 1
		domains[strings.ToLower(entry)] = struct{}{}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	slog.Info("loaded domain list", slog.String("filename", filename), slog.Int("lines", lines), slog.Int("used", usedEntries))
	return domains, nil
}
