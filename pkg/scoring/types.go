package scoring

// Signal identifiers used as keys in score breakdowns and ledger entries.
const (
	SIGNAL_BOT          = "bot"
	SIGNAL_ADDRESS      = "address"
	SIGNAL_EMAIL_DOMAIN = "email_domain"
	SIGNAL_BEHAVIORAL   = "behavioral"
	SIGNAL_DEVICE       = "device"
)

// NEUTRAL_SIGNAL_RISK is the maximum-uncertainty value a signal degrades to
// when its input is missing, malformed or an upstream oracle is unavailable.
const NEUTRAL_SIGNAL_RISK = 0.5

// SignalResult is the outcome of a single signal collector. Degraded marks
// results that fell back to NEUTRAL_SIGNAL_RISK instead of a real observation.
type SignalResult struct {
	Risk     float64
	Degraded bool
	Reason   string
}

// SignalSet holds the five per-category results for one signup attempt.
type SignalSet struct {
	Bot         SignalResult
	Address     SignalResult
	EmailDomain SignalResult
	Behavioral  SignalResult
	Device      SignalResult
}

// DegradedSignals lists the identifiers of all signals that fell back to
// their neutral value.
func (s SignalSet) DegradedSignals() []string {
	degraded := []string{}
	if s.Bot.Degraded {
		degraded = append(degraded, SIGNAL_BOT)
	}
	if s.Address.Degraded {
		degraded = append(degraded, SIGNAL_ADDRESS)
	}
	if s.EmailDomain.Degraded {
		degraded = append(degraded, SIGNAL_EMAIL_DOMAIN)
	}
	if s.Behavioral.Degraded {
		degraded = append(degraded, SIGNAL_BEHAVIORAL)
	}
	if s.Device.Degraded {
		degraded = append(degraded, SIGNAL_DEVICE)
	}
	return degraded
}

type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

type EnforcementAction string

const (
	ActionAllow     EnforcementAction = "allow"
	ActionChallenge EnforcementAction = "challenge"
	ActionStepUp    EnforcementAction = "step_up"
	ActionBlock     EnforcementAction = "block"
)

var actionSeverity = map[EnforcementAction]int{
	ActionAllow:     0,
	ActionChallenge: 1,
	ActionStepUp:    2,
	ActionBlock:     3,
}

var levelSeverity = map[RiskLevel]int{
	RiskLevelLow:      0,
	RiskLevelMedium:   1,
	RiskLevelHigh:     2,
	RiskLevelCritical: 3,
}

// StricterAction returns whichever of the two actions is more restrictive.
func StricterAction(a EnforcementAction, b EnforcementAction) EnforcementAction {
	if actionSeverity[b] > actionSeverity[a] {
		return b
	}
	return a
}

// RiskScore is the combined outcome for one attempt: the weighted total,
// the raw per-signal sub-scores and the weighted contribution of each signal.
type RiskScore struct {
	Total           float64
	SubScores       map[string]float64
	Contributions   map[string]float64
	DegradedSignals []string
}

// DomainClass is the email-domain classification consumed by the
// email-domain signal collector.
type DomainClass string

const (
	// DomainClassUnknown means classification itself failed, not that the
	// domain is unrecognized. The signal degrades to its neutral value.
	DomainClassUnknown      DomainClass = ""
	DomainClassDisposable   DomainClass = "disposable"
	DomainClassHighAbuse    DomainClass = "high_abuse_free"
	DomainClassCommonFree   DomainClass = "common_free"
	DomainClassEstablished  DomainClass = "established"
	DomainClassUnclassified DomainClass = "unclassified"
)

// AddressReputation is the IP-reputation oracle result consumed by the
// address signal collector. FraudScore is on the oracle's 0-100 scale.
type AddressReputation struct {
	FraudScore   float64
	IsProxy      bool
	IsVPN        bool
	IsTor        bool
	IsAnonymizer bool
	RecentAbuse  bool
}

// BehavioralTelemetry is the client-side interaction summary submitted with
// a signup attempt. All fields are optional; an absent metric contributes
// no risk term, an absent payload degrades the whole signal.
type BehavioralTelemetry struct {
	CompletionSeconds *float64 `json:"completionSeconds"`
	FocusEvents       *int     `json:"focusEvents"`
	PointerMoved      *bool    `json:"pointerMoved"`
	KeystrokeVariance *float64 `json:"keystrokeVariance"`
}

// DeviceFingerprint carries the reported fingerprint components of the
// client plus how many existing accounts share the same fingerprint hash.
type DeviceFingerprint struct {
	Components    map[string]interface{}
	PriorAccounts int
}
