package logger

import (
	"os"

	"go.uber.org/zap"
)

var Log *zap.Logger

// Init builds the process-wide logger. APP_ENV=development switches to the
// human-readable console encoder.
func Init() {
	if os.Getenv("APP_ENV") == "development" {
		Log = zap.Must(zap.NewDevelopment())
		return
	}
	Log = zap.Must(zap.NewProduction())
}

func Sugar() *zap.SugaredLogger {
	return Log.Sugar()
}
