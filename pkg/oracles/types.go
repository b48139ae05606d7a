package oracles

import (
	"time"

	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/apihelpers"
	httpclient "github.com/djenkins452/dbawholelifejourney-sub000/pkg/http-client"
)

const DEFAULT_ORACLE_TIMEOUT = 5 * time.Second

// OracleConfig describes one external signal provider endpoint.
type OracleConfig struct {
	Name            string           `yaml:"name"`
	URL             string           `yaml:"url"`
	APIKey          string           `yaml:"apiKey"`
	Timeout         int              `yaml:"timeout"`
	MutualTLSConfig *MutualTLSConfig `yaml:"mTLSConfig"`
}

type MutualTLSConfig struct {
	CertFile string `yaml:"certFile"`
	KeyFile  string `yaml:"keyFile"`
	CAFile   string `yaml:"caFile"`
}

func (cfg OracleConfig) httpClient() httpclient.ClientConfig {
	var mTLSCertPaths *apihelpers.CertificatePaths
	if cfg.MutualTLSConfig != nil {
		mTLSCertPaths = &apihelpers.CertificatePaths{
			CACertPath:     cfg.MutualTLSConfig.CAFile,
			ServerCertPath: cfg.MutualTLSConfig.CertFile,
			ServerKeyPath:  cfg.MutualTLSConfig.KeyFile,
		}
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if cfg.Timeout <= 0 {
		timeout = DEFAULT_ORACLE_TIMEOUT
	}

	return httpclient.ClientConfig{
		RootURL:                   cfg.URL,
		APIKey:                    cfg.APIKey,
		Timeout:                   timeout,
		MutualTLSCertificatePaths: mTLSCertPaths,
	}
}

func getFloat(data map[string]interface{}, key string) (float64, bool) {
	if value, ok := data[key]; ok {
		if f, ok := value.(float64); ok {
			return f, true
		}
	}
	return 0, false
}

func getBool(data map[string]interface{}, key string) bool {
	if value, ok := data[key]; ok {
		if b, ok := value.(bool); ok {
			return b
		}
	}
	return false
}

func getString(data map[string]interface{}, key string) string {
	if value, ok := data[key]; ok {
		if s, ok := value.(string); ok {
			return s
		}
	}
	return ""
}
