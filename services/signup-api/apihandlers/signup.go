package apihandlers

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	mw "github.com/djenkins452/dbawholelifejourney-sub000/pkg/apihelpers/middlewares"
	attemptledger "github.com/djenkins452/dbawholelifejourney-sub000/pkg/db/attempt-ledger"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/privacy"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/risk"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/scoring"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/utils"
	"github.com/gin-gonic/gin"

	accountsDB "github.com/djenkins452/dbawholelifejourney-sub000/pkg/db/accounts"
)

const (
	passwordMinLength = 8
	passwordMaxLength = 100
)

func (h *HttpEndpoints) AddSignupAPI(rg *gin.RouterGroup) {
	authGroup := rg.Group("/auth")
	{
		authGroup.POST("/signup", mw.RequirePayload(), h.signup)
		authGroup.GET("/verify-email/:token", h.verifyEmail)
		authGroup.POST("/resend-verification", mw.RequirePayload(), h.resendVerification)
	}
}

type SignupReq struct {
	Email          string                       `json:"email"`
	Password       string                       `json:"password"`
	ChallengeToken string                       `json:"challengeToken"`
	SessionID      string                       `json:"sessionId"`
	Fingerprint    *risk.FingerprintPayload     `json:"fingerprint"`
	Telemetry      *scoring.BehavioralTelemetry `json:"telemetry"`
	InfoCheck      string                       `json:"infoCheck"`
}

func (h *HttpEndpoints) signup(c *gin.Context) {
	var req SignupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("failed to bind request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Email == "" || req.Password == "" {
		slog.Error("missing required fields")
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
		return
	}

	req.Email = privacy.SanitizeEmail(req.Email)

	if !privacy.CheckEmailFormat(req.Email) {
		slog.Error("invalid email format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email format"})
		return
	}

	if len(req.Password) < passwordMinLength || len(req.Password) > passwordMaxLength {
		slog.Error("invalid password format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid password format"})
		return
	}

	decision := h.riskEngine.Evaluate(c.Request.Context(), risk.SignupInput{
		Email:          req.Email,
		RemoteAddress:  c.ClientIP(),
		SessionID:      req.SessionID,
		ChallengeToken: req.ChallengeToken,
		HoneypotValue:  req.InfoCheck,
		Telemetry:      req.Telemetry,
		Fingerprint:    req.Fingerprint,
	})

	if decision.IsBlocked() {
		h.riskEngine.RecordAttempt(decision, "")
		if decision.BlockReason == attemptledger.BLOCK_REASON_RATE_LIMIT {
			if decision.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(decision.RetryAfter.Seconds()))))
			}
			randomWait(1, 3)
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "try again later"})
			return
		}
		randomWait(1, 3)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signup could not be completed"})
		return
	}

	if decision.Action == scoring.ActionChallenge {
		h.riskEngine.RecordAttempt(decision, "")
		c.JSON(http.StatusOK, gin.H{"status": "captcha_required", "challengeConfig": h.challengeConfig})
		return
	}

	account, err := h.accountDBConn.CreateAccount(accountsDB.Account{
		EmailHash:            decision.EmailHash,
		CreatedAt:            time.Now(),
		VerificationRequired: decision.Action == scoring.ActionStepUp,
	})
	if err != nil {
		if errors.Is(err, accountsDB.ErrAccountExists) {
			// The response must not reveal that the address is taken.
			slog.Warn("signup attempt for existing account", slog.String("emailHash", privacy.ShortHash(decision.EmailHash)))
			h.riskEngine.RecordAttempt(decision, "")
			c.JSON(http.StatusOK, gin.H{"status": "pending_verification"})
			return
		}
		slog.Error("failed to create account", slog.String("error", err.Error()))
		h.riskEngine.RecordAttempt(decision, "")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	accountID := account.ID.Hex()
	h.riskEngine.RecordAttempt(decision, accountID)

	// send verification link in go routine
	go func() {
		if err := h.tokenService.Issue(accountID, req.Email); err != nil {
			slog.Error("failed to issue verification token", slog.String("accountID", accountID), slog.String("error", err.Error()))
		}
	}()

	c.JSON(http.StatusOK, gin.H{"status": "pending_verification"})
}

func (h *HttpEndpoints) verifyEmail(c *gin.Context) {
	token := c.Param("token")
	if token == "" || !utils.IsURLSafe(token) {
		slog.Error("invalid token format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired link"})
		return
	}

	if _, err := h.tokenService.Consume(token); err != nil {
		slog.Warn("email verification failed", slog.String("error", err.Error()))
		randomWait(1, 3)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired link"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "verified"})
}

type ResendVerificationReq struct {
	Email string `json:"email"`
}

func (h *HttpEndpoints) resendVerification(c *gin.Context) {
	var req ResendVerificationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("failed to bind request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Email == "" {
		slog.Error("missing required fields")
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
		return
	}

	req.Email = privacy.SanitizeEmail(req.Email)

	// Processed in the background so the response neither tells whether the
	// address has an account nor how far the request got.
	go h.processResendRequest(req.Email)

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HttpEndpoints) processResendRequest(email string) {
	emailHash := h.hasher.HashEmail(email)

	account, err := h.accountDBConn.GetAccountByEmailHash(emailHash)
	if err != nil {
		slog.Debug("resend requested for unknown address", slog.String("emailHash", privacy.ShortHash(emailHash)))
		return
	}
	if account.IsVerified() {
		slog.Debug("resend requested for verified account", slog.String("accountID", account.ID.Hex()))
		return
	}

	accountID := account.ID.Hex()
	if !h.tokenService.CanResend(context.Background(), accountID) {
		slog.Warn("verification resend limit reached", slog.String("accountID", accountID))
		return
	}

	if err := h.tokenService.Issue(accountID, email); err != nil {
		slog.Error("failed to issue verification token", slog.String("accountID", accountID), slog.String("error", err.Error()))
	}
}
