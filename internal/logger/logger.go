package logger

import (
	"go-qbsync/internal/config"
	"go-qbsync/internal/database"

	"go.uber.org/zap"
)

// NewLogger builds the application logger. Console output always; entries at
// warn level and above are additionally persisted to Mongo by an async writer
// so sync failures survive restarts and are queryable by the dashboard.
func NewLogger(cfg *config.Config, mongodb *database.MongodbDB) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.Environment == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	zapConfig.EncoderConfig.FunctionKey = "func"

	baseLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	dbWriter := NewDBLogWriter(mongodb, cfg)

	finalCore := NewDBCore(baseLogger.Core(), dbWriter)

	return zap.New(finalCore, zap.AddCaller()), nil
}
