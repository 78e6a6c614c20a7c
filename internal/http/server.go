package httpapi

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-chat-journal/internal/config"
	"github.com/tbourn/go-chat-journal/internal/sysutil"
)

// Bootstrap prepares process-wide runtime state for serving.
//
// It loads a local .env file when present (missing files are not an error),
// reads and validates configuration, applies the Gin mode and the global
// zerolog level, and switches to a pretty console writer when LOG_PRETTY is
// set. Call once at startup, before RegisterRoutes.
func Bootstrap() config.Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded environment from .env")
	}

	cfg := config.MustLoad()

	gin.SetMode(cfg.GinMode)
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return cfg
}

// NewServer wraps the handler in an http.Server configured with the
// listen address, timeouts, and header limits from cfg.
func NewServer(cfg config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + sysutil.FirstNonEmpty(cfg.Port, "8080"),
		Handler:           h,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}
