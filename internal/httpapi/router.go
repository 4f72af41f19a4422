package httpapi

import (
	"net/http"

	"github.com/eunej/CleanField/internal/middleware"
	"github.com/eunej/CleanField/internal/service"
)

// RouterConfig tunes the HTTP surface
type RouterConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int
	// EnableReset exposes the demo reset endpoint
	EnableReset bool
}

func NewRouter(svc *service.Service, cfg RouterConfig) http.Handler {
	h := NewHandlers(svc)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	// Farms
	mux.HandleFunc("GET /v1/farms", h.ListFarms)
	mux.HandleFunc("GET /v1/farms/{id}", h.GetFarm)
	mux.HandleFunc("POST /v1/farms/{id}/verify", h.VerifyFarm)

	// Attestations
	mux.HandleFunc("POST /v1/attestations", h.CreateAttestation)
	mux.HandleFunc("POST /v1/attestations/batch", h.BatchAttest)
	mux.HandleFunc("POST /v1/attestations/verify", h.VerifyAttestation)

	// Claims
	mux.HandleFunc("GET /v1/claims", h.GetClaimStatus)
	mux.HandleFunc("POST /v1/claims", h.SubmitClaim)
	mux.HandleFunc("GET /v1/claims/history", h.GetClaimHistory)
	mux.HandleFunc("GET /v1/rewards/estimate", h.EstimateReward)

	// Internal API
	if cfg.EnableReset {
		mux.HandleFunc("POST /internal/reset", h.Reset)
	}

	var handler http.Handler = mux
	if cfg.RateLimitRPS > 0 {
		handler = middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))(handler)
	}
	return applyMiddleware(handler,
		middleware.Recovery,
		middleware.RequestID,
		middleware.Logging,
	)
}

func applyMiddleware(handler http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	// Apply in reverse order so first middleware is outermost
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}
