package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/viewctl/viewctl/internal/logging"
)

// InitLogger installs the process logger for one runtime binary, tagged
// with the application name. Level and formatting follow the runtime
// logging profile and its VIEWCTL_LOG* env overrides.
func InitLogger(app string) zerolog.Logger {
	logger := logging.NewRuntimeLogger().With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
