package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/apihelpers"
	"github.com/djenkins452/dbawholelifejourney-sub000/services/signup-api/apihandlers"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var conf SignupApiConfig

func main() {
	defer riskEngine.Close()

	if referenceDataRefreshInterval > 0 {
		go func() {
			ticker := time.NewTicker(referenceDataRefreshInterval)
			defer ticker.Stop()
			for range ticker.C {
				loadReferenceData()
			}
		}()
	}

	// Start webserver
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     conf.GinConfig.AllowOrigins,
		AllowMethods:     []string{"POST", "GET", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "Content-Length"},
		ExposeHeaders:    []string{"Authorization", "Content-Type", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Add handlers
	router.GET("/", apihandlers.HealthCheckHandle)
	v1Root := router.Group("/v1")

	v1APIHandlers := apihandlers.NewHTTPHandler(
		riskEngine,
		tokenService,
		accountDBService,
		identifierHasher,
		conf.RiskConfigs.ChallengeConfig,
	)
	v1APIHandlers.AddSignupAPI(v1Root)

	if conf.GinConfig.DebugMode {
		apihelpers.WriteRoutesToFile(router, "signup-api-routes.txt")
	}

	// Start the server
	slog.Info("Starting Signup API on port " + conf.GinConfig.Port)
	if !conf.GinConfig.MTLS.Use {
		err := router.Run(":" + conf.GinConfig.Port)
		if err != nil {
			slog.Error("Exited Signup API", slog.String("error", err.Error()))
			return
		}
	} else {
		// Create tls config for mutual TLS
		tlsConfig, err := apihelpers.LoadTLSConfig(conf.GinConfig.MTLS.CertificatePaths)
		if err != nil {
			slog.Error("Error loading TLS config.", slog.String("error", err.Error()))
			return
		}

		server := &http.Server{
			Addr:      ":" + conf.GinConfig.Port,
			Handler:   router,
			TLSConfig: tlsConfig,
		}

		err = server.ListenAndServeTLS(conf.GinConfig.MTLS.CertificatePaths.ServerCertPath, conf.GinConfig.MTLS.CertificatePaths.ServerKeyPath)
		if err != nil {
			slog.Error("Exited Signup API", slog.String("error", err.Error()))
			return
		}
	}
}
