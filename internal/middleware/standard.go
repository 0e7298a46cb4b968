package middleware

import (
	"log/slog"

	"agentforge/internal/config"
	apierrors "agentforge/internal/errors"

	"github.com/go-chi/chi/v5/middleware"
)

// Stage names, outermost first
const (
	StageRequestContext  = "request-context"
	StageRealIP          = "real-ip"
	StageTrustedHost     = "trusted-host"
	StageCORS            = "cors"
	StageSecurityHeaders = "security-headers"
	StageTiming          = "timing"
	StageRequestID       = "request-id"
	StageRequestLogger   = "request-logger"
	StageTracing         = "tracing"
	StageRateLimit       = "rate-limit"
	StageBodyLimit       = "body-limit"
	StageRecoverer       = "recoverer"
)

// Options are the collaborators of the standard pipeline. Tracing and
// RateLimiter are optional.
type Options struct {
	Config      *config.Config
	Logger      *slog.Logger
	Errors      *apierrors.ErrorHandler
	Tracing     *Tracing
	RateLimiter *RateLimiter
}

// Standard assembles the pipeline every request passes through. Host
// filtering runs before anything else looks at the request, and the failure
// translator sits closest to the handlers.
func Standard(opts Options) *Pipeline {
	cfg := opts.Config

	stages := []Stage{
		{Name: StageRequestContext, Handler: WithRequestContext},
	}
	if cfg.TrustProxyHeaders {
		stages = append(stages, Stage{Name: StageRealIP, Handler: middleware.RealIP})
	}

	headers := DefaultSecureHeaders()
	headers.ForceHSTS = cfg.IsProduction()

	stages = append(stages,
		Stage{Name: StageTrustedHost, Handler: TrustedHost(cfg.AllowedHosts)},
		Stage{Name: StageCORS, Handler: CORS(DefaultCORSConfig(cfg.CORSOrigins))},
		Stage{Name: StageSecurityHeaders, Handler: headers.Handler},
		Stage{Name: StageTiming, Handler: Timing},
		Stage{Name: StageRequestID, Handler: RequestID},
		Stage{Name: StageRequestLogger, Handler: RequestLogger(opts.Logger)},
	)
	if opts.Tracing != nil {
		stages = append(stages, Stage{Name: StageTracing, Handler: opts.Tracing.Handler})
	}
	if opts.RateLimiter != nil {
		stages = append(stages, Stage{Name: StageRateLimit, Handler: opts.RateLimiter.Handler})
	}

	return NewPipeline(append(stages,
		Stage{Name: StageBodyLimit, Handler: middleware.RequestSize(cfg.MaxFileSize)},
		Stage{Name: StageRecoverer, Handler: opts.Errors.Recoverer},
	)...)
}
