// Package logger provides a singleton Zap logger with context-based scoping.
//
// # Usage
//
// Inicialización (una vez en main.go):
//
//	logger.Init(logger.Config{
//	    Env:   os.Getenv("APP_ENV"),   // "dev" o "prod"
//	    Level: os.Getenv("LOG_LEVEL"), // "debug", "info", "warn", "error"
//	})
//	defer logger.Sync()
//
// En handlers/drivers (con contexto):
//
//	log := logger.From(ctx)
//	log.Info("callback completed", logger.Provider(name))
//
// Sin contexto (fallback al singleton):
//
//	logger.L().Info("gateway started")
package logger
