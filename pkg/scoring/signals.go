package scoring

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Signal collectors are total functions: any input, including nil or
// malformed payloads, yields a SignalResult. They perform no I/O; oracle
// calls and lookups happen before, their results are passed in.

// ScoreBotSignal maps the bot-challenge oracle's human likelihood (0..1)
// onto signal risk. A nil likelihood means the oracle was unavailable.
func ScoreBotSignal(humanLikelihood *float64) SignalResult {
	if humanLikelihood == nil {
		return SignalResult{Risk: NEUTRAL_SIGNAL_RISK, Degraded: true, Reason: "bot score oracle unavailable"}
	}
	h := *humanLikelihood
	if h < 0 || h > 1 || math.IsNaN(h) {
		return SignalResult{Risk: NEUTRAL_SIGNAL_RISK, Degraded: true, Reason: "bot score out of range"}
	}

	switch {
	case h >= 0.9:
		return SignalResult{Risk: 0.0}
	case h >= 0.7:
		return SignalResult{Risk: 0.1}
	case h >= 0.5:
		return SignalResult{Risk: 0.3}
	case h >= 0.3:
		return SignalResult{Risk: 0.6}
	default:
		return SignalResult{Risk: 1.0, Reason: "very low human likelihood"}
	}
}

// ScoreAddressSignal maps the IP-reputation oracle result onto signal risk.
// A nil reputation means the oracle was unavailable.
func ScoreAddressSignal(rep *AddressReputation) SignalResult {
	if rep == nil {
		return SignalResult{Risk: NEUTRAL_SIGNAL_RISK, Degraded: true, Reason: "address reputation oracle unavailable"}
	}
	f := rep.FraudScore
	if f < 0 || f > 100 || math.IsNaN(f) {
		return SignalResult{Risk: NEUTRAL_SIGNAL_RISK, Degraded: true, Reason: "fraud score out of range"}
	}

	var risk float64
	switch {
	case f < 25:
		risk = 0.0
	case f < 50:
		risk = 0.2
	case f < 75:
		risk = 0.5
	case f <= 85:
		risk = 0.8
	default:
		risk = 1.0
	}

	reasons := []string{}
	if rep.IsTor || rep.IsAnonymizer {
		risk += 0.3
		reasons = append(reasons, "anonymizing network")
	}
	if rep.IsProxy || rep.IsVPN {
		risk += 0.2
		reasons = append(reasons, "proxy or vpn")
	}
	if rep.RecentAbuse {
		risk += 0.3
		reasons = append(reasons, "recent abuse reports")
	}

	return SignalResult{Risk: math.Min(1.0, risk), Reason: strings.Join(reasons, ", ")}
}

// ScoreEmailDomainSignal maps the domain classification onto signal risk.
func ScoreEmailDomainSignal(class DomainClass) SignalResult {
	switch class {
	case DomainClassDisposable:
		return SignalResult{Risk: 1.0, Reason: "disposable email domain"}
	case DomainClassHighAbuse:
		return SignalResult{Risk: 0.3, Reason: "free provider with elevated abuse rate"}
	case DomainClassCommonFree:
		return SignalResult{Risk: 0.1}
	case DomainClassEstablished:
		return SignalResult{Risk: 0.0}
	case DomainClassUnclassified:
		return SignalResult{Risk: 0.2, Reason: "unclassified domain"}
	default:
		return SignalResult{Risk: NEUTRAL_SIGNAL_RISK, Degraded: true, Reason: "domain classification unavailable"}
	}
}

// ScoreBehavioralSignal sums interaction heuristics from the submitted
// telemetry. Metrics the client did not report contribute no term.
func ScoreBehavioralSignal(telemetry *BehavioralTelemetry) SignalResult {
	if telemetry == nil {
		return SignalResult{Risk: NEUTRAL_SIGNAL_RISK, Degraded: true, Reason: "behavioral telemetry missing"}
	}

	var risk float64
	reasons := []string{}

	if telemetry.CompletionSeconds != nil {
		s := *telemetry.CompletionSeconds
		if s < 0 || math.IsNaN(s) {
			return SignalResult{Risk: NEUTRAL_SIGNAL_RISK, Degraded: true, Reason: "invalid completion time"}
		}
		switch {
		case s < 3:
			risk += 0.4
			reasons = append(reasons, "form completed implausibly fast")
		case s <= 5:
			risk += 0.2
			reasons = append(reasons, "form completed very fast")
		case s > 300:
			risk += 0.1
			reasons = append(reasons, "form open unusually long")
		}
	}

	if telemetry.FocusEvents != nil {
		switch n := *telemetry.FocusEvents; {
		case n < 0:
			return SignalResult{Risk: NEUTRAL_SIGNAL_RISK, Degraded: true, Reason: "invalid focus event count"}
		case n == 0:
			risk += 0.3
			reasons = append(reasons, "no field focus events")
		case n < 3:
			risk += 0.1
			reasons = append(reasons, "few field focus events")
		}
	}

	if telemetry.PointerMoved != nil && !*telemetry.PointerMoved {
		risk += 0.2
		reasons = append(reasons, "no pointer movement")
	}

	if telemetry.KeystrokeVariance != nil {
		switch v := *telemetry.KeystrokeVariance; {
		case v < 0 || math.IsNaN(v):
			return SignalResult{Risk: NEUTRAL_SIGNAL_RISK, Degraded: true, Reason: "invalid keystroke variance"}
		case v == 0:
			risk += 0.3
			reasons = append(reasons, "uniform keystroke timing")
		case v < 10:
			risk += 0.1
			reasons = append(reasons, "low keystroke timing variance")
		}
	}

	return SignalResult{Risk: math.Min(1.0, risk), Reason: strings.Join(reasons, ", ")}
}

var (
	automationUAPattern = regexp.MustCompile(`(?i)(selenium|webdriver|puppeteer|playwright|phantomjs|nightmare|cypress|electron)`)
	headlessUAPattern   = regexp.MustCompile(`(?i)headless`)
)

// Components a regular browser environment is expected to report.
var expectedFingerprintComponents = []string{
	"userAgent",
	"platform",
	"languages",
	"timezone",
	"screen",
	"canvas",
	"webgl",
	"audio",
}

// ScoreDeviceSignal inspects the reported fingerprint components and the
// number of existing accounts sharing the fingerprint.
func ScoreDeviceSignal(fp *DeviceFingerprint) SignalResult {
	if fp == nil || len(fp.Components) == 0 {
		return SignalResult{Risk: NEUTRAL_SIGNAL_RISK, Degraded: true, Reason: "device fingerprint missing"}
	}

	components := fp.Components
	ua := getString(components, "userAgent")

	// Explicit automation markers override everything else.
	if getBool(components, "webdriver") || automationUAPattern.MatchString(ua) {
		return SignalResult{Risk: 1.0, Reason: "automation framework marker"}
	}

	var risk float64
	reasons := []string{}

	if getBool(components, "headless") || headlessUAPattern.MatchString(ua) {
		risk += 0.8
		reasons = append(reasons, "headless browser marker")
	}

	missing := 0
	for _, key := range expectedFingerprintComponents {
		if _, ok := components[key]; !ok {
			missing++
		}
	}
	if missing > 3 {
		risk += 0.4
		reasons = append(reasons, fmt.Sprintf("%d expected components missing", missing))
	}

	if hasInconsistentComponents(components) {
		risk += 0.6
		reasons = append(reasons, "inconsistent component combination")
	}

	if fp.PriorAccounts > 0 {
		risk += math.Min(0.2*float64(fp.PriorAccounts), 0.5)
		reasons = append(reasons, fmt.Sprintf("%d prior accounts on this device", fp.PriorAccounts))
	}

	return SignalResult{Risk: math.Min(1.0, risk), Reason: strings.Join(reasons, ", ")}
}

// hasInconsistentComponents flags combinations that real browsers do not
// produce, e.g. a platform value contradicting the user agent.
func hasInconsistentComponents(components map[string]interface{}) bool {
	ua := strings.ToLower(getString(components, "userAgent"))
	platform := strings.ToLower(getString(components, "platform"))

	// "win" needs anchoring: "darwin" would match a substring check.
	isWindows := strings.HasPrefix(platform, "win")
	isMac := strings.Contains(platform, "mac") || strings.HasPrefix(platform, "darwin")
	isLinux := strings.Contains(platform, "linux")

	if ua != "" && platform != "" {
		switch {
		case isWindows && (strings.Contains(ua, "linux") || strings.Contains(ua, "mac os")):
			return true
		case isLinux && (strings.Contains(ua, "windows") || strings.Contains(ua, "mac os")):
			return true
		case isMac && (strings.Contains(ua, "windows") || strings.Contains(ua, "linux")):
			return true
		}
	}

	// Touch input reported on a desktop platform.
	if getFloat(components, "maxTouchPoints") > 0 &&
		(isWindows || isMac || isLinux) &&
		!strings.Contains(ua, "mobile") {
		return true
	}

	return false
}

func getFloat(m map[string]interface{}, key string) float64 {
	if m == nil {
		return 0
	}
	if v, ok := m[key].(float64); ok {
		return v
	}
	if v, ok := m[key].(int); ok {
		return float64(v)
	}
	return 0
}

func getString(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getBool(m map[string]interface{}, key string) bool {
	if m == nil {
		return false
	}
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}
