package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/db"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/utils"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/verification"
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
)

type config struct {
	// Logging configs
	Logging utils.LoggerConfig `json:"logging" yaml:"logging"`

	// DB configs
	DBConfigs struct {
		AttemptLedgerDB     db.DBConfigYaml `json:"attempt_ledger_db" yaml:"attempt_ledger_db"`
		VerificationTokenDB db.DBConfigYaml `json:"verification_token_db" yaml:"verification_token_db"`
		AccountDB           db.DBConfigYaml `json:"account_db" yaml:"account_db"`
		ReferenceDataDB     db.DBConfigYaml `json:"reference_data_db" yaml:"reference_data_db"`
		CounterDB           db.DBConfigYaml `json:"counter_db" yaml:"counter_db"`
	} `json:"db_configs" yaml:"db_configs"`

	// signup maintenance configs
	MaintenanceConfig struct {
		TokenTTL                      string `json:"token_ttl" yaml:"token_ttl"`
		AttemptRetention              string `json:"attempt_retention" yaml:"attempt_retention"`
		DeleteSpentTokensAfter        string `json:"delete_spent_tokens_after" yaml:"delete_spent_tokens_after"`
		DeleteUnverifiedAccountsAfter string `json:"delete_unverified_accounts_after" yaml:"delete_unverified_accounts_after"`
		DisposableDomainsFilePath     string `json:"disposable_domains_file_path" yaml:"disposable_domains_file_path"`
		BlocklistFilePath             string `json:"blocklist_file_path" yaml:"blocklist_file_path"`
	} `json:"maintenance_config" yaml:"maintenance_config"`

	RunTasks struct {
		MarkAbandonedAttempts    bool `json:"mark_abandoned_attempts" yaml:"mark_abandoned_attempts"`
		PurgeAgedAttempts        bool `json:"purge_aged_attempts" yaml:"purge_aged_attempts"`
		DeleteSpentTokens        bool `json:"delete_spent_tokens" yaml:"delete_spent_tokens"`
		DeleteUnverifiedAccounts bool `json:"delete_unverified_accounts" yaml:"delete_unverified_accounts"`
		SweepElapsedCounters     bool `json:"sweep_elapsed_counters" yaml:"sweep_elapsed_counters"`
		SeedReferenceData        bool `json:"seed_reference_data" yaml:"seed_reference_data"`
	} `json:"run_tasks" yaml:"run_tasks"`
}

var conf config

var (
	tokenTTL                      time.Duration
	attemptRetention              time.Duration
	deleteSpentTokensAfter        time.Duration
	deleteUnverifiedAccountsAfter time.Duration
)

var (
	attemptLedgerDBService     *attemptLedgerDB.AttemptLedgerDBService
	verificationTokenDBService *verificationTokenDB.VerificationTokenDBService
	accountDBService           *accountsDB.AccountDBService
	referenceDataDBService     *referenceDataDB.ReferenceDataDBService
	counterDBService           *countersDB.CounterDBService
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

	// check config values:
	parseDurations()

	// init db
	initDBs()
}

func secretsOverride() {
	// Override secrets from environment variables

	if dbUsername := os.Getenv(ENV_ATTEMPT_LEDGER_DB_USERNAME); dbUsername != "" {
		conf.DBConfigs.AttemptLedgerDB.Username = dbUsername
	}

	if dbPassword := os.Getenv(ENV_ATTEMPT_LEDGER_DB_PASSWORD); dbPassword != "" {
		conf.DBConfigs.AttemptLedgerDB.Password = dbPassword
	}

	if dbUsername := os.Getenv(ENV_VERIFICATION_TOKEN_DB_USERNAME); dbUsername != "" {
		conf.DBConfigs.VerificationTokenDB.Username = dbUsername
	}

	if dbPassword := os.Getenv(ENV_VERIFICATION_TOKEN_DB_PASSWORD); dbPassword != "" {
		conf.DBConfigs.VerificationTokenDB.Password = dbPassword
	}

	if dbUsername := os.Getenv(ENV_ACCOUNT_DB_USERNAME); dbUsername != "" {
		conf.DBConfigs.AccountDB.Username = dbUsername
	}

	if dbPassword := os.Getenv(ENV_ACCOUNT_DB_PASSWORD); dbPassword != "" {
		conf.DBConfigs.AccountDB.Password = dbPassword
	}

	if dbUsername := os.Getenv(ENV_REFERENCE_DATA_DB_USERNAME); dbUsername != "" {
		conf.DBConfigs.ReferenceDataDB.Username = dbUsername
	}

	if dbPassword := os.Getenv(ENV_REFERENCE_DATA_DB_PASSWORD); dbPassword != "" {
		conf.DBConfigs.ReferenceDataDB.Password = dbPassword
	}

	if dbUsername := os.Getenv(ENV_COUNTER_DB_USERNAME); dbUsername != "" {
		conf.DBConfigs.CounterDB.Username = dbUsername
	}

	if dbPassword := os.Getenv(ENV_COUNTER_DB_PASSWORD); dbPassword != "" {
		conf.DBConfigs.CounterDB.Password = dbPassword
	}
}

func parseDurations() {
	var err error

	tokenTTL = verification.DEFAULT_TOKEN_TTL
	if conf.MaintenanceConfig.TokenTTL != "" {
		tokenTTL, err = utils.ParseDurationString(conf.MaintenanceConfig.TokenTTL)
		if err != nil {
			slog.Error("cannot parse token_ttl", slog.String("error", err.Error()))
			panic(err)
		}
	}

	attemptRetention = attemptLedgerDB.DEFAULT_ATTEMPT_RETENTION
	if conf.MaintenanceConfig.AttemptRetention != "" {
		attemptRetention, err = utils.ParseDurationString(conf.MaintenanceConfig.AttemptRetention)
		if err != nil {
			slog.Error("cannot parse attempt_retention", slog.String("error", err.Error()))
			panic(err)
		}
	}

	// tokens are kept for one retention window after they were spent so that
	// support can still trace recent verifications
	deleteSpentTokensAfter = 7 * 24 * time.Hour
	if conf.MaintenanceConfig.DeleteSpentTokensAfter != "" {
		deleteSpentTokensAfter, err = utils.ParseDurationString(conf.MaintenanceConfig.DeleteSpentTokensAfter)
		if err != nil {
			slog.Error("cannot parse delete_spent_tokens_after", slog.String("error", err.Error()))
			panic(err)
		}
	}

	if conf.RunTasks.DeleteUnverifiedAccounts {
		if conf.MaintenanceConfig.DeleteUnverifiedAccountsAfter == "" {
			slog.Error("delete_unverified_accounts_after is not set")
			panic("delete_unverified_accounts_after is not set")
		}
		deleteUnverifiedAccountsAfter, err = utils.ParseDurationString(conf.MaintenanceConfig.DeleteUnverifiedAccountsAfter)
		if err != nil {
			slog.Error("cannot parse delete_unverified_accounts_after", slog.String("error", err.Error()))
			panic(err)
		}
		if deleteUnverifiedAccountsAfter < tokenTTL {
			slog.Error("delete_unverified_accounts_after must not be shorter than token_ttl")
			panic("delete_unverified_accounts_after must not be shorter than token_ttl")
		}
	}
}

func initDBs() {
	var err error
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

	if conf.RunTasks.SeedReferenceData {
		referenceDataDBService, err = referenceDataDB.NewReferenceDataDBService(db.DBConfigFromYamlObj(conf.DBConfigs.ReferenceDataDB))
		if err != nil {
			slog.Error("Error connecting to Reference Data DB", slog.String("error", err.Error()))
			panic(err)
		}
	}

	if conf.RunTasks.SweepElapsedCounters {
		counterDBService, err = countersDB.NewCounterDBService(db.DBConfigFromYamlObj(conf.DBConfigs.CounterDB))
		if err != nil {
			slog.Error("Error connecting to Counter DB", slog.String("error", err.Error()))
			panic(err)
		}
	}
}
