package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nicolas-rempulski/h-ubu/internal/logging"
)

// InitLogger configures the runtime logger once and tags it with app.
func InitLogger(app string, cfg logging.Config) zerolog.Logger {
	logging.ConfigureWith(cfg)
	logger := log.Logger.With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
