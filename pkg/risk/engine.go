package risk

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	attemptledger "github.com/djenkins452/dbawholelifejourney-sub000/pkg/db/attempt-ledger"
	overridegate "github.com/djenkins452/dbawholelifejourney-sub000/pkg/override-gate"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/privacy"
	ratelimiter "github.com/djenkins452/dbawholelifejourney-sub000/pkg/rate-limiter"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/scoring"
)

type EngineConfig struct {
	Weights         scoring.Weights
	ThresholdBands  []scoring.ThresholdBand
	WriterQueueSize int
}

// Engine runs the full decision flow for one signup attempt: identifier
// hashing, the override gate, the named rate limits, the five signal
// collectors and the combine/classify step. Evaluate never returns an
// error; degraded inputs lower confidence, internal failures block.
type Engine struct {
	hasher        privacy.Hasher
	gate          *overridegate.Gate
	limiter       SignupLimiter
	botOracle     BotScoreProvider
	addressOracle AddressReputationProvider
	domains       DomainClassifier
	history       FingerprintHistory
	combiner      *scoring.Combiner
	thresholds    *scoring.Classifier
	writer        *attemptWriter
}

func NewEngine(
	hasher privacy.Hasher,
	gate *overridegate.Gate,
	limiter SignupLimiter,
	botOracle BotScoreProvider,
	addressOracle AddressReputationProvider,
	domainClassifier DomainClassifier,
	fingerprintHistory FingerprintHistory,
	recorder AttemptRecorder,
	config EngineConfig,
) (*Engine, error) {
	if config.Weights == (scoring.Weights{}) {
		config.Weights = scoring.DefaultWeights()
	}
	combiner, err := scoring.NewCombiner(config.Weights)
	if err != nil {
		return nil, err
	}

	bands := config.ThresholdBands
	if len(bands) == 0 {
		bands = scoring.DefaultThresholdBands()
	}
	thresholds, err := scoring.NewClassifier(bands)
	if err != nil {
		return nil, err
	}

	if gate == nil {
		gate = overridegate.NewGate(nil, 0)
	}

	var writer *attemptWriter
	if recorder != nil {
		writer = newAttemptWriter(recorder, config.WriterQueueSize)
	}

	return &Engine{
		hasher:        hasher,
		gate:          gate,
		limiter:       limiter,
		botOracle:     botOracle,
		addressOracle: addressOracle,
		domains:       domainClassifier,
		history:       fingerprintHistory,
		combiner:      combiner,
		thresholds:    thresholds,
		writer:        writer,
	}, nil
}

// Evaluate decides one signup attempt. The order is fixed: gate first,
// then the hard limits, then scoring. A gate or hard-limit hit skips the
// collectors entirely; the hourly address limit only raises the
// enforcement floor to a challenge.
func (e *Engine) Evaluate(ctx context.Context, input SignupInput) Decision {
	email := privacy.SanitizeEmail(input.Email)

	decision := Decision{
		Action:          scoring.ActionAllow,
		EmailHash:       e.hasher.HashEmail(email),
		AddressHash:     e.hasher.HashAddress(input.RemoteAddress),
		FingerprintHash: e.fingerprintHash(input.Fingerprint),
	}

	priorAccounts := e.priorAccountCount(decision.FingerprintHash)

	gateResult := e.gate.Evaluate(overridegate.Input{
		Address:                  input.RemoteAddress,
		EmailHash:                decision.EmailHash,
		HoneypotValue:            input.HoneypotValue,
		FingerprintPresent:       decision.FingerprintHash != "",
		FingerprintPriorAccounts: priorAccounts,
	})
	if gateResult.Blocked {
		decision.Action = scoring.ActionBlock
		decision.BlockReason = string(gateResult.Reason)
		e.logDecision(decision)
		return decision
	}

	actionFloor := scoring.ActionAllow
	if e.limiter != nil {
		if res := e.limiter.CheckAddressDaily(ctx, decision.AddressHash); !res.Allowed {
			return e.rateLimited(decision, res)
		}
		if res := e.limiter.CheckSession(ctx, e.sessionKey(input, decision)); !res.Allowed {
			return e.rateLimited(decision, res)
		}
		if res := e.limiter.CheckAddressHourly(ctx, decision.AddressHash); !res.Allowed {
			actionFloor = scoring.ActionChallenge
		}
	}

	score, level, action, failed := e.scoreAttempt(ctx, input, email, priorAccounts)
	decision.Score = score
	decision.Level = level
	decision.Action = scoring.StricterAction(action, actionFloor)
	if failed {
		decision.BlockReason = attemptledger.BLOCK_REASON_INTERNAL_ERROR
	} else if decision.Action == scoring.ActionBlock {
		decision.BlockReason = attemptledger.BLOCK_REASON_RISK_SCORE
	}

	e.logDecision(decision)
	return decision
}

// RecordAttempt appends the decision to the ledger, linked to the account
// the handler created for it (empty for blocked attempts). Returns
// immediately; the write happens in the background.
func (e *Engine) RecordAttempt(decision Decision, accountID string) {
	if e.writer == nil {
		return
	}

	attempt := attemptledger.SignupAttempt{
		EmailHash:       decision.EmailHash,
		AddressHash:     decision.AddressHash,
		FingerprintHash: decision.FingerprintHash,
		RiskLevel:       string(decision.Level),
		EnforcedAction:  string(decision.Action),
		Status:          statusForAction(decision.Action),
		BlockReason:     decision.BlockReason,
		CreatedAt:       time.Now(),
		AccountID:       accountID,
	}
	if decision.Score != nil {
		attempt.SubScores = decision.Score.SubScores
		attempt.DegradedSignals = decision.Score.DegradedSignals
		total := decision.Score.Total
		attempt.TotalScore = &total
	}
	e.writer.enqueue(attempt)
}

// Close drains pending ledger writes. Call on shutdown.
func (e *Engine) Close() {
	if e.writer != nil {
		e.writer.close()
	}
}

func statusForAction(action scoring.EnforcementAction) attemptledger.AttemptStatus {
	switch action {
	case scoring.ActionBlock:
		return attemptledger.StatusBlocked
	case scoring.ActionChallenge:
		return attemptledger.StatusChallenged
	default:
		return attemptledger.StatusAllowed
	}
}

func (e *Engine) rateLimited(decision Decision, res ratelimiter.Result) Decision {
	decision.Action = scoring.ActionBlock
	decision.BlockReason = attemptledger.BLOCK_REASON_RATE_LIMIT
	decision.RetryAfter = res.RetryAfter
	e.logDecision(decision)
	return decision
}

func (e *Engine) sessionKey(input SignupInput, decision Decision) string {
	if input.SessionID != "" {
		return e.hasher.HashSessionID(input.SessionID)
	}
	if decision.FingerprintHash != "" {
		return decision.FingerprintHash
	}
	return decision.AddressHash
}

func (e *Engine) fingerprintHash(fp *FingerprintPayload) string {
	if fp == nil {
		return ""
	}
	if fp.Hash != "" {
		return e.hasher.HashFingerprint(fp.Hash)
	}
	if len(fp.Components) == 0 {
		return ""
	}
	return e.hasher.HashFingerprint(canonicalComponents(fp.Components))
}

// canonicalComponents serializes components with sorted keys so the
// derived digest is stable regardless of map order.
func canonicalComponents(components map[string]interface{}) string {
	keys := make([]string, 0, len(components))
	for key := range components {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		sb.WriteString(key)
		sb.WriteByte('=')
		if value, err := json.Marshal(components[key]); err == nil {
			sb.Write(value)
		}
		sb.WriteByte(';')
	}
	return sb.String()
}

func (e *Engine) priorAccountCount(fingerprintHash string) int {
	if fingerprintHash == "" || e.history == nil {
		return 0
	}
	count, err := e.history.CountDistinctAccountsByFingerprint(fingerprintHash)
	if err != nil {
		slog.Warn("fingerprint history lookup failed", slog.String("error", err.Error()))
		return 0
	}
	return count
}

// scoreAttempt runs collectors, combiner and classifier. A panic anywhere
// in the scoring path is contained here and turns into a blocking
// decision instead of taking the request down.
func (e *Engine) scoreAttempt(ctx context.Context, input SignupInput, email string, priorAccounts int) (score *scoring.RiskScore, level scoring.RiskLevel, action scoring.EnforcementAction, failed bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("risk scoring failed", slog.Any("panic", r))
			score = nil
			level = scoring.RiskLevelCritical
			action = scoring.ActionBlock
			failed = true
		}
	}()

	signals := e.collectSignals(ctx, input, email, priorAccounts)
	combined := e.combiner.Combine(signals)
	score = &combined
	level, action = e.thresholds.Classify(combined.Total)
	return score, level, action, false
}

// collectSignals gathers the oracle results and domain classification
// concurrently, then runs the pure collectors. A panic in one of the
// lookups is re-raised on the calling goroutine.
func (e *Engine) collectSignals(ctx context.Context, input SignupInput, email string, priorAccounts int) scoring.SignalSet {
	var (
		wg         sync.WaitGroup
		panicMu    sync.Mutex
		panicValue interface{}

		botScore    *float64
		addressRep  *scoring.AddressReputation
		domainClass scoring.DomainClass
	)

	capturePanic := func() {
		if r := recover(); r != nil {
			panicMu.Lock()
			panicValue = r
			panicMu.Unlock()
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer capturePanic()
		if e.botOracle == nil {
			return
		}
		res, err := e.botOracle.FetchScore(input.ChallengeToken, input.RemoteAddress)
		if err != nil {
			slog.Warn("bot score oracle unavailable", slog.String("error", err.Error()))
			return
		}
		if res != nil {
			value := res.Score
			botScore = &value
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer capturePanic()
		if e.addressOracle == nil {
			return
		}
		res, err := e.addressOracle.FetchReputation(input.RemoteAddress)
		if err != nil {
			slog.Warn("address reputation oracle unavailable", slog.String("error", err.Error()))
			return
		}
		if res != nil {
			addressRep = &scoring.AddressReputation{
				FraudScore:   res.FraudScore,
				IsProxy:      res.Proxy,
				IsVPN:        res.VPN,
				IsTor:        res.Tor,
				IsAnonymizer: res.Anonymizer,
				RecentAbuse:  res.RecentAbuse,
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer capturePanic()
		if e.domains == nil {
			return
		}
		domainClass = e.domains.ClassifyEmail(ctx, email)
	}()

	wg.Wait()
	if panicValue != nil {
		panic(panicValue)
	}

	var fp *scoring.DeviceFingerprint
	if input.Fingerprint != nil && len(input.Fingerprint.Components) > 0 {
		fp = &scoring.DeviceFingerprint{
			Components:    input.Fingerprint.Components,
			PriorAccounts: priorAccounts,
		}
	}

	return scoring.SignalSet{
		Bot:         scoring.ScoreBotSignal(botScore),
		Address:     scoring.ScoreAddressSignal(addressRep),
		EmailDomain: scoring.ScoreEmailDomainSignal(domainClass),
		Behavioral:  scoring.ScoreBehavioralSignal(input.Telemetry),
		Device:      scoring.ScoreDeviceSignal(fp),
	}
}

func (e *Engine) logDecision(decision Decision) {
	logArgs := []any{
		slog.String("action", string(decision.Action)),
		slog.String("emailHash", privacy.ShortHash(decision.EmailHash)),
		slog.String("addressHash", privacy.ShortHash(decision.AddressHash)),
	}
	if decision.Level != "" {
		logArgs = append(logArgs, slog.String("riskLevel", string(decision.Level)))
	}
	if decision.Score != nil {
		logArgs = append(logArgs, slog.Float64("totalScore", decision.Score.Total))
		if len(decision.Score.DegradedSignals) > 0 {
			logArgs = append(logArgs, slog.String("degradedSignals", strings.Join(decision.Score.DegradedSignals, ",")))
		}
	}
	if decision.BlockReason != "" {
		logArgs = append(logArgs, slog.String("blockReason", decision.BlockReason))
	}
	slog.Info("signup risk decision", logArgs...)
}
