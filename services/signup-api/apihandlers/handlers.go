package apihandlers

import (
	"net/http"

	accountsDB "github.com/djenkins452/dbawholelifejourney-sub000/pkg/db/accounts"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/privacy"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/risk"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/verification"
	"github.com/gin-gonic/gin"
)

func HealthCheckHandle(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type HttpEndpoints struct {
	riskEngine      *risk.Engine
	tokenService    *verification.TokenService
	accountDBConn   *accountsDB.AccountDBService
	hasher          privacy.Hasher
	challengeConfig map[string]string
}

func NewHTTPHandler(
	riskEngine *risk.Engine,
	tokenService *verification.TokenService,
	accountDBConn *accountsDB.AccountDBService,
	hasher privacy.Hasher,
	challengeConfig map[string]string,
) *HttpEndpoints {
	return &HttpEndpoints{
		riskEngine:      riskEngine,
		tokenService:    tokenService,
		accountDBConn:   accountDBConn,
		hasher:          hasher,
		challengeConfig: challengeConfig,
	}
}
