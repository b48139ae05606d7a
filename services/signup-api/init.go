package main

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/apihelpers"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/db"
	emaildomain "github.com/djenkins452/dbawholelifejourney-sub000/pkg/email-domain"
	emailtemplates "github.com/djenkins452/dbawholelifejourney-sub000/pkg/email-templates"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/oracles"
	overridegate "github.com/djenkins452/dbawholelifejourney-sub000/pkg/override-gate"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/privacy"
	ratelimiter "github.com/djenkins452/dbawholelifejourney-sub000/pkg/rate-limiter"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/risk"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/scoring"
	smtp_client "github.com/djenkins452/dbawholelifejourney-sub000/pkg/smtp-client"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/utils"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/verification"
	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v2"

	accountsDB "github.com/djenkins452/dbawholelifejourney-sub000/pkg/db/accounts"
	attemptLedgerDB "github.com/djenkins452/dbawholelifejourney-sub000/pkg/db/attempt-ledger"
	countersDB "github.com/djenkins452/dbawholelifejourney-sub000/pkg/db/counters"
	referenceDataDB "github.com/djenkins452/dbawholelifejourney-sub000/pkg/db/reference-data"
	verificationTokenDB "github.com/djenkins452/dbawholelifejourney-sub000/pkg/db/verification-tokens"
)

// Environment variables
const (
	ENV_CONFIG_FILE_PATH = "CONFIG_FILE_PATH"

	// Variables to override "secrets" in the config file
	ENV_ATTEMPT_LEDGER_DB_USERNAME     = "ATTEMPT_LEDGER_DB_USERNAME"
	ENV_ATTEMPT_LEDGER_DB_PASSWORD     = "ATTEMPT_LEDGER_DB_PASSWORD"
	ENV_VERIFICATION_TOKEN_DB_USERNAME = "VERIFICATION_TOKEN_DB_USERNAME"
	ENV_VERIFICATION_TOKEN_DB_PASSWORD = "VERIFICATION_TOKEN_DB_PASSWORD"
	ENV_ACCOUNT_DB_USERNAME            = "ACCOUNT_DB_USERNAME"
	ENV_ACCOUNT_DB_PASSWORD            = "ACCOUNT_DB_PASSWORD"
	ENV_REFERENCE_DATA_DB_USERNAME     = "REFERENCE_DATA_DB_USERNAME"
	ENV_REFERENCE_DATA_DB_PASSWORD     = "REFERENCE_DATA_DB_PASSWORD"
	ENV_COUNTER_DB_USERNAME            = "COUNTER_DB_USERNAME"
	ENV_COUNTER_DB_PASSWORD            = "COUNTER_DB_PASSWORD"

	ENV_RATE_LIMITER_REDIS_PASSWORD = "RATE_LIMITER_REDIS_PASSWORD"
	ENV_IDENTIFIER_HASH_PEPPER      = "IDENTIFIER_HASH_PEPPER"
	ENV_SMTP_SERVER_USERNAME        = "SMTP_SERVER_USERNAME"
	ENV_SMTP_SERVER_PASSWORD        = "SMTP_SERVER_PASSWORD"
)

type rateLimitRuleYaml struct {
	Limit  int64  `json:"limit" yaml:"limit"`
	Window string `json:"window" yaml:"window"`
}

type SignupApiConfig struct {
	// Logging configs
	Logging utils.LoggerConfig `json:"logging" yaml:"logging"`

	// Gin configs
	GinConfig struct {
		DebugMode    bool     `json:"debug_mode" yaml:"debug_mode"`
		AllowOrigins []string `json:"allow_origins" yaml:"allow_origins"`
		Port         string   `json:"port" yaml:"port"`

		// Mutual TLS configs
		MTLS struct {
			Use              bool                        `json:"use" yaml:"use"`
			CertificatePaths apihelpers.CertificatePaths `json:"certificate_paths" yaml:"certificate_paths"`
		} `json:"mtls" yaml:"mtls"`
	} `json:"gin_config" yaml:"gin_config"`

	// Risk evaluation configs
	RiskConfigs struct {
		IdentifierHashPepper string `json:"identifier_hash_pepper" yaml:"identifier_hash_pepper"`

		SignalWeights struct {
			Bot         float64 `json:"bot" yaml:"bot"`
			Address     float64 `json:"address" yaml:"address"`
			EmailDomain float64 `json:"email_domain" yaml:"email_domain"`
			Behavioral  float64 `json:"behavioral" yaml:"behavioral"`
			Device      float64 `json:"device" yaml:"device"`
		} `json:"signal_weights" yaml:"signal_weights"`

		ThresholdBands []scoring.ThresholdBand `json:"threshold_bands" yaml:"threshold_bands"`

		MultiAccountThreshold        int               `json:"multi_account_threshold" yaml:"multi_account_threshold"`
		LedgerWriterQueueSize        int               `json:"ledger_writer_queue_size" yaml:"ledger_writer_queue_size"`
		AttemptRetention             string            `json:"attempt_retention" yaml:"attempt_retention"`
		DomainLookupTimeout          string            `json:"domain_lookup_timeout" yaml:"domain_lookup_timeout"`
		DisposableDomainsFilePath    string            `json:"disposable_domains_file_path" yaml:"disposable_domains_file_path"`
		ReferenceDataRefreshInterval string            `json:"reference_data_refresh_interval" yaml:"reference_data_refresh_interval"`
		ChallengeConfig              map[string]string `json:"challenge_config" yaml:"challenge_config"`
	} `json:"risk_configs" yaml:"risk_configs"`

	// Rate limiter configs
	RateLimiterConfigs struct {
		Redis         ratelimiter.RedisConfig `json:"redis" yaml:"redis"`
		AddressHourly rateLimitRuleYaml       `json:"address_hourly" yaml:"address_hourly"`
		AddressDaily  rateLimitRuleYaml       `json:"address_daily" yaml:"address_daily"`
		Session       rateLimitRuleYaml       `json:"session" yaml:"session"`
		Resend        rateLimitRuleYaml       `json:"resend" yaml:"resend"`
	} `json:"rate_limiter_configs" yaml:"rate_limiter_configs"`

	// Email verification configs
	VerificationConfigs struct {
		TokenTTL             string `json:"token_ttl" yaml:"token_ttl"`
		LinkBaseURL          string `json:"link_base_url" yaml:"link_base_url"`
		EmailTemplatePath    string `json:"email_template_path" yaml:"email_template_path"`
		SmtpServerConfigPath string `json:"smtp_server_config_path" yaml:"smtp_server_config_path"`
	} `json:"verification_configs" yaml:"verification_configs"`

	// External oracle configs
	OracleConfigs struct {
		BotScore     oracles.OracleConfig `json:"bot_score" yaml:"bot_score"`
		IPReputation oracles.OracleConfig `json:"ip_reputation" yaml:"ip_reputation"`
	} `json:"oracle_configs" yaml:"oracle_configs"`

	// DB configs
	DBConfigs struct {
		AttemptLedgerDB     db.DBConfigYaml `json:"attempt_ledger_db" yaml:"attempt_ledger_db"`
		VerificationTokenDB db.DBConfigYaml `json:"verification_token_db" yaml:"verification_token_db"`
		AccountDB           db.DBConfigYaml `json:"account_db" yaml:"account_db"`
		ReferenceDataDB     db.DBConfigYaml `json:"reference_data_db" yaml:"reference_data_db"`
		CounterDB           db.DBConfigYaml `json:"counter_db" yaml:"counter_db"`
	} `json:"db_configs" yaml:"db_configs"`
}

var (
	attemptLedgerDBService     *attemptLedgerDB.AttemptLedgerDBService
	verificationTokenDBService *verificationTokenDB.VerificationTokenDBService
	accountDBService           *accountsDB.AccountDBService
	referenceDataDBService     *referenceDataDB.ReferenceDataDBService
	counterDBService           *countersDB.CounterDBService

	identifierHasher privacy.Hasher
	domainClassifier *emaildomain.Classifier
	overrideGate     *overridegate.Gate
	signupLimiter    *ratelimiter.Limiter
	riskEngine       *risk.Engine
	tokenService     *verification.TokenService

	// default + file based domain sets, re-applied on reference data refreshes
	baseDomainSets emaildomain.Sets

	referenceDataRefreshInterval time.Duration
)

func init() {
	// Read config from file
	yamlFile, err := os.ReadFile(os.Getenv(ENV_CONFIG_FILE_PATH))
	if err != nil {
		panic(err)
	}

	err = yaml.UnmarshalStrict(yamlFile, &conf)
	if err != nil {
		panic(err)
	}

	// Init logger:
	utils.InitLogger(
		conf.Logging.LogLevel,
		conf.Logging.IncludeSrc,
		conf.Logging.LogToFile,
		conf.Logging.Filename,
		conf.Logging.MaxSize,
		conf.Logging.MaxAge,
		conf.Logging.MaxBackups,
		conf.Logging.CompressOldLogs,
		conf.Logging.IncludeBuildInfo,
	)

	// Override secrets from environment variables
	secretsOverride()

	// Init DBs
	initDBs()

	if !conf.GinConfig.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	identifierHasher = privacy.NewHasher(conf.RiskConfigs.IdentifierHashPepper)

	initDomainClassifier()
	initOverrideGate()
	initRateLimiter()
	initRiskEngine()
	initTokenService()

	if conf.RiskConfigs.ReferenceDataRefreshInterval != "" {
		parsed, err := utils.ParseDurationString(conf.RiskConfigs.ReferenceDataRefreshInterval)
		if err != nil {
			panic(err)
		}
		referenceDataRefreshInterval = parsed
	}

	loadReferenceData()
}

func secretsOverride() {
	if username := os.Getenv(ENV_ATTEMPT_LEDGER_DB_USERNAME); username != "" {
		conf.DBConfigs.AttemptLedgerDB.Username = username
	}

	if password := os.Getenv(ENV_ATTEMPT_LEDGER_DB_PASSWORD); password != "" {
		conf.DBConfigs.AttemptLedgerDB.Password = password
	}

	if username := os.Getenv(ENV_VERIFICATION_TOKEN_DB_USERNAME); username != "" {
		conf.DBConfigs.VerificationTokenDB.Username = username
	}

	if password := os.Getenv(ENV_VERIFICATION_TOKEN_DB_PASSWORD); password != "" {
		conf.DBConfigs.VerificationTokenDB.Password = password
	}

	if username := os.Getenv(ENV_ACCOUNT_DB_USERNAME); username != "" {
		conf.DBConfigs.AccountDB.Username = username
	}

	if password := os.Getenv(ENV_ACCOUNT_DB_PASSWORD); password != "" {
		conf.DBConfigs.AccountDB.Password = password
	}

	if username := os.Getenv(ENV_REFERENCE_DATA_DB_USERNAME); username != "" {
		conf.DBConfigs.ReferenceDataDB.Username = username
	}

	if password := os.Getenv(ENV_REFERENCE_DATA_DB_PASSWORD); password != "" {
		conf.DBConfigs.ReferenceDataDB.Password = password
	}

	if username := os.Getenv(ENV_COUNTER_DB_USERNAME); username != "" {
		conf.DBConfigs.CounterDB.Username = username
	}

	if password := os.Getenv(ENV_COUNTER_DB_PASSWORD); password != "" {
		conf.DBConfigs.CounterDB.Password = password
	}

	if password := os.Getenv(ENV_RATE_LIMITER_REDIS_PASSWORD); password != "" {
		conf.RateLimiterConfigs.Redis.Password = password
	}

	if pepper := os.Getenv(ENV_IDENTIFIER_HASH_PEPPER); pepper != "" {
		conf.RiskConfigs.IdentifierHashPepper = pepper
	}

	// Override API keys for the oracle services
	oracleConfigs := []*oracles.OracleConfig{
		&conf.OracleConfigs.BotScore,
		&conf.OracleConfigs.IPReputation,
	}
	for _, service := range oracleConfigs {
		// Skip if name is not defined
		if service.Name == "" {
			continue
		}

		// Generate environment variable name from service name
		envVarName := utils.GenerateOracleAPIKeyEnvVarName(service.Name)

		// Override if environment variable exists
		if apiKey := os.Getenv(envVarName); apiKey != "" {
			service.APIKey = apiKey
		}
	}
}

func initDBs() {
	var err error

	attemptRetention := attemptLedgerDB.DEFAULT_ATTEMPT_RETENTION
	if conf.RiskConfigs.AttemptRetention != "" {
		attemptRetention, err = utils.ParseDurationString(conf.RiskConfigs.AttemptRetention)
		if err != nil {
			panic(err)
		}
	}

	attemptLedgerDBService, err = attemptLedgerDB.NewAttemptLedgerDBService(db.DBConfigFromYamlObj(conf.DBConfigs.AttemptLedgerDB), attemptRetention)
	if err != nil {
		slog.Error("Error connecting to Attempt Ledger DB", slog.String("error", err.Error()))
		panic(err)
	}

	verificationTokenDBService, err = verificationTokenDB.NewVerificationTokenDBService(db.DBConfigFromYamlObj(conf.DBConfigs.VerificationTokenDB))
	if err != nil {
		slog.Error("Error connecting to Verification Token DB", slog.String("error", err.Error()))
		panic(err)
	}

	accountDBService, err = accountsDB.NewAccountDBService(db.DBConfigFromYamlObj(conf.DBConfigs.AccountDB))
	if err != nil {
		slog.Error("Error connecting to Account DB", slog.String("error", err.Error()))
		panic(err)
	}

	referenceDataDBService, err = referenceDataDB.NewReferenceDataDBService(db.DBConfigFromYamlObj(conf.DBConfigs.ReferenceDataDB))
	if err != nil {
		slog.Error("Error connecting to Reference Data DB", slog.String("error", err.Error()))
		panic(err)
	}

	// The counter DB is only used when redis is not configured.
	if conf.RateLimiterConfigs.Redis.Address == "" && conf.DBConfigs.CounterDB.ConnectionStr != "" {
		counterDBService, err = countersDB.NewCounterDBService(db.DBConfigFromYamlObj(conf.DBConfigs.CounterDB))
		if err != nil {
			slog.Error("Error connecting to Counter DB", slog.String("error", err.Error()))
			panic(err)
		}
	}
}

func initDomainClassifier() {
	baseDomainSets = emaildomain.DefaultSets()
	if path := conf.RiskConfigs.DisposableDomainsFilePath; path != "" {
		domains, err := emaildomain.LoadDomainListFile(path)
		if err != nil {
			panic(err)
		}
		for domain := range domains {
			baseDomainSets.Disposable[domain] = struct{}{}
		}
	}

	var lookupTimeout time.Duration
	if conf.RiskConfigs.DomainLookupTimeout != "" {
		parsed, err := utils.ParseDurationString(conf.RiskConfigs.DomainLookupTimeout)
		if err != nil {
			panic(err)
		}
		lookupTimeout = parsed
	}

	domainClassifier = emaildomain.NewClassifier(baseDomainSets, lookupTimeout)
}

func initOverrideGate() {
	overrideGate = overridegate.NewGate(nil, conf.RiskConfigs.MultiAccountThreshold)
}

func limitRuleFromYaml(yamlObj rateLimitRuleYaml, fallback ratelimiter.LimitRule) ratelimiter.LimitRule {
	rule := fallback
	if yamlObj.Limit > 0 {
		rule.Limit = yamlObj.Limit
	}
	if yamlObj.Window != "" {
		window, err := utils.ParseDurationString(yamlObj.Window)
		if err != nil {
			panic(err)
		}
		rule.Window = window
	}
	return rule
}

func initRateLimiter() {
	limits := ratelimiter.DefaultLimits()
	limits.AddressHourly = limitRuleFromYaml(conf.RateLimiterConfigs.AddressHourly, limits.AddressHourly)
	limits.AddressDaily = limitRuleFromYaml(conf.RateLimiterConfigs.AddressDaily, limits.AddressDaily)
	limits.Session = limitRuleFromYaml(conf.RateLimiterConfigs.Session, limits.Session)
	limits.Resend = limitRuleFromYaml(conf.RateLimiterConfigs.Resend, limits.Resend)

	var store ratelimiter.CounterStore
	if conf.RateLimiterConfigs.Redis.Address != "" {
		redisStore, err := ratelimiter.NewRedisCounterStore(conf.RateLimiterConfigs.Redis)
		if err != nil {
			slog.Error("Error connecting to rate limiter redis", slog.String("error", err.Error()))
			panic(err)
		}
		store = redisStore
	} else if counterDBService != nil {
		store = counterDBService
	} else {
		slog.Warn("no shared counter store configured, rate limits are enforced per instance only")
		store = ratelimiter.NewInMemoryCounterStore()
	}

	limiter, err := ratelimiter.NewLimiter(store, limits)
	if err != nil {
		panic(err)
	}
	signupLimiter = limiter
}

func initRiskEngine() {
	weights := scoring.Weights{
		Bot:         conf.RiskConfigs.SignalWeights.Bot,
		Address:     conf.RiskConfigs.SignalWeights.Address,
		EmailDomain: conf.RiskConfigs.SignalWeights.EmailDomain,
		Behavioral:  conf.RiskConfigs.SignalWeights.Behavioral,
		Device:      conf.RiskConfigs.SignalWeights.Device,
	}

	var botOracle risk.BotScoreProvider
	if conf.OracleConfigs.BotScore.URL != "" {
		botOracle = oracles.NewBotScoreClient(conf.OracleConfigs.BotScore)
	} else {
		slog.Warn("bot score oracle not configured, signal will be degraded")
	}

	var addressOracle risk.AddressReputationProvider
	if conf.OracleConfigs.IPReputation.URL != "" {
		addressOracle = oracles.NewIPReputationClient(conf.OracleConfigs.IPReputation)
	} else {
		slog.Warn("ip reputation oracle not configured, signal will be degraded")
	}

	engine, err := risk.NewEngine(
		identifierHasher,
		overrideGate,
		signupLimiter,
		botOracle,
		addressOracle,
		domainClassifier,
		attemptLedgerDBService,
		attemptLedgerDBService,
		risk.EngineConfig{
			Weights:         weights,
			ThresholdBands:  conf.RiskConfigs.ThresholdBands,
			WriterQueueSize: conf.RiskConfigs.LedgerWriterQueueSize,
		},
	)
	if err != nil {
		panic(err)
	}
	riskEngine = engine
}

func initTokenService() {
	tokenTTL := verification.DEFAULT_TOKEN_TTL
	if conf.VerificationConfigs.TokenTTL != "" {
		parsed, err := utils.ParseDurationString(conf.VerificationConfigs.TokenTTL)
		if err != nil {
			panic(err)
		}
		tokenTTL = parsed
	}

	var sender verification.EmailSender
	if conf.VerificationConfigs.SmtpServerConfigPath != "" {
		smtpClients := loadSmtpClients()

		templateDef := ""
		if conf.VerificationConfigs.EmailTemplatePath != "" {
			loaded, err := emailtemplates.LoadTemplateFromFile("email-verification", conf.VerificationConfigs.EmailTemplatePath)
			if err != nil {
				panic(err)
			}
			templateDef = loaded
		}

		sender = verification.NewSmtpEmailSender(
			smtpClients,
			conf.VerificationConfigs.LinkBaseURL,
			templateDef,
			describeValidity(tokenTTL),
		)
	} else {
		slog.Warn("smtp server config not set, verification emails will not be sent")
	}

	tokenService = verification.NewTokenService(
		verificationTokenDBService,
		accountDBService,
		attemptLedgerDBService,
		sender,
		signupLimiter,
		tokenTTL,
	)
}

func loadSmtpClients() *smtp_client.SmtpClients {
	serverList := smtp_client.SmtpServerList{}
	if err := serverList.ReadFromFile(conf.VerificationConfigs.SmtpServerConfigPath); err != nil {
		panic(err)
	}

	for i := range serverList.Servers {
		if username := os.Getenv(ENV_SMTP_SERVER_USERNAME); username != "" {
			serverList.Servers[i].SetUsername(username)
		}
		if password := os.Getenv(ENV_SMTP_SERVER_PASSWORD); password != "" {
			serverList.Servers[i].SetPassword(password)
		}
	}

	smtpClients, err := smtp_client.NewSmtpClients(serverList)
	if err != nil {
		panic(err)
	}
	return smtpClients
}

// describeValidity renders the token lifetime for the email body.
func describeValidity(d time.Duration) string {
	if d >= 24*time.Hour && d%(24*time.Hour) == 0 {
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "24 hours"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(math.Round(d.Hours()))
	if hours <= 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}

func loadReferenceData() {
	snapshot, err := referenceDataDBService.LoadSnapshot()
	if err != nil {
		slog.Error("failed to load reference data", slog.String("error", err.Error()))
		return
	}

	overrideGate.SetBlocklist(overridegate.NewBlocklist(snapshot.Addresses, snapshot.CIDRs, snapshot.EmailHashes))

	sets := emaildomain.Sets{
		Disposable:    map[string]struct{}{},
		HighAbuseFree: baseDomainSets.HighAbuseFree,
		CommonFree:    baseDomainSets.CommonFree,
	}
	for domain := range baseDomainSets.Disposable {
		sets.Disposable[domain] = struct{}{}
	}
	for _, domain := range snapshot.DisposableDomains {
		sets.Disposable[domain] = struct{}{}
	}
	domainClassifier.UpdateSets(sets)

	slog.Info("reference data loaded",
		slog.Int("blockedAddresses", len(snapshot.Addresses)),
		slog.Int("blockedRanges", len(snapshot.CIDRs)),
		slog.Int("blockedEmailHashes", len(snapshot.EmailHashes)),
		slog.Int("disposableDomains", len(snapshot.DisposableDomains)))
}
