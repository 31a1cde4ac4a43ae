package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// getFileSyncer returns a rotating file sink under config.Director.
func getFileSyncer(config Config) zapcore.WriteSyncer {
	// lumberjack creates the file lazily but not the directory
	_ = os.MkdirAll(config.Director, 0755)

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(config.Director, "icons.log"),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
		LocalTime:  true,
	})
}
