// Package log builds the zap logger used by the redirector CLI.
package log

import (
	"fmt"
	"log"
	"os"

	"go.mdsemu.io/redirector/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const logFile = "redirector-logs.txt"

// TODO find better way than global variable
var logCfg zap.Config

func New() (*zap.Logger, error) {
	_ = zap.RegisterEncoder("colorConsole", func(config zapcore.EncoderConfig) (zapcore.Encoder, error) {
		return NewColor(config), nil
	})

	logCfg = zap.NewDevelopmentConfig()

	logCfg.Encoding = "colorConsole"
	logCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	logCfg.OutputPaths = []string{
		"stdout",
		"./" + logFile,
	}

	// The log file must be writable by the emulator process too, which may
	// run under a different uid than the attach command.
	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		prev := utils.SetUmask(0)
		_, err = os.Create(logFile)
		utils.SetUmask(prev)
		if err != nil {
			log.Println("failed to create the log file", err)
			return nil, fmt.Errorf("failed to create the log file: %v", err)
		}
	}

	logCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	logCfg.DisableStacktrace = true
	logCfg.EncoderConfig.EncodeCaller = nil

	logger, err := logCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build config for logger: %v", err)
	}
	return logger, nil
}

// ChangeLogLevel rebuilds the logger at the given level. Debug level also
// enables caller annotations and stack traces.
func ChangeLogLevel(level zapcore.Level) (*zap.Logger, error) {
	logCfg.Level = zap.NewAtomicLevelAt(level)
	if level == zap.DebugLevel {
		logCfg.DisableStacktrace = false
		logCfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	}

	logger, err := logCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build config for logger: %v", err)
	}
	return logger, nil
}
