package oracles

import (
	"errors"
	"fmt"

	httpclient "github.com/djenkins452/dbawholelifejourney-sub000/pkg/http-client"
)

const ipReputationPathname = "/reputation"

// IPReputationClient queries the address intelligence provider. Fraud
// scores are on the provider's 0 to 100 scale.
type IPReputationClient struct {
	client httpclient.ClientConfig
}

func NewIPReputationClient(config OracleConfig) *IPReputationClient {
	return &IPReputationClient{
		client: config.httpClient(),
	}
}

type IPReputationResult struct {
	FraudScore  float64
	Proxy       bool
	VPN         bool
	Tor         bool
	Anonymizer  bool
	RecentAbuse bool
}

func (c *IPReputationClient) FetchReputation(address string) (*IPReputationResult, error) {
	if c == nil || c.client.RootURL == "" {
		return nil, errors.New("ip reputation oracle not configured")
	}

	payload := map[string]string{
		"address": address,
	}
	response, err := c.client.RunHTTPcall(ipReputationPathname, payload)
	if err != nil {
		return nil, err
	}

	fraudScore, ok := getFloat(response, "fraudScore")
	if !ok {
		return nil, fmt.Errorf("ip reputation response without fraudScore field")
	}
	return &IPReputationResult{
		FraudScore:  fraudScore,
		Proxy:       getBool(response, "proxy"),
		VPN:         getBool(response, "vpn"),
		Tor:         getBool(response, "tor"),
		Anonymizer:  getBool(response, "anonymizer"),
		RecentAbuse: getBool(response, "recentAbuse"),
	}, nil
}
