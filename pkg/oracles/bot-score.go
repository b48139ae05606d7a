package oracles

import (
	"errors"
	"fmt"

	httpclient "github.com/djenkins452/dbawholelifejourney-sub000/pkg/http-client"
)

const botScorePathname = "/score"

// BotScoreClient talks to the challenge provider that verified the
// client-side challenge and reports how human the interaction looked.
// Scores are in [0, 1], higher meaning more likely human.
type BotScoreClient struct {
	client httpclient.ClientConfig
}

func NewBotScoreClient(config OracleConfig) *BotScoreClient {
	return &BotScoreClient{
		client: config.httpClient(),
	}
}

type BotScoreResult struct {
	Score    float64
	Provider string
}

func (c *BotScoreClient) FetchScore(challengeToken string, remoteAddress string) (*BotScoreResult, error) {
	if c == nil || c.client.RootURL == "" {
		return nil, errors.New("bot score oracle not configured")
	}

	payload := map[string]string{
		"challengeToken": challengeToken,
		"remoteAddress":  remoteAddress,
	}
	response, err := c.client.RunHTTPcall(botScorePathname, payload)
	if err != nil {
		return nil, err
	}

	score, ok := getFloat(response, "score")
	if !ok {
		return nil, fmt.Errorf("bot score response without score field")
	}
	return &BotScoreResult{
		Score:    score,
		Provider: getString(response, "provider"),
	}, nil
}
