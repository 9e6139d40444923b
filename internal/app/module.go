package app

import (
	"go.uber.org/fx"

	"logwatch/internal/config/logger"
)

// Module provides the fx dependency injection options for the server
// process: *config.Config is supplied by the caller (cmd/logwatchd) since
// its path comes from CLI arguments resolved before the container starts.
var Module = fx.Options(
	fx.Provide(logger.NewLogger),
	fx.Provide(NewApp),
	fx.Invoke(Register),
)
