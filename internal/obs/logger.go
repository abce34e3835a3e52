// Copyright 2025 James Ross
package obs

import (
    "strings"

    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
    "gopkg.in/natefinch/lumberjack.v2"

    "github.com/videoforge/engine/internal/config"
)

// NewLogger builds the engine's structured logger. When obsCfg.LogFile is
// set, logs are written through a lumberjack rotating writer instead of
// stdout so long-running worker processes don't grow an unbounded log file.
func NewLogger(obsCfg config.ObservabilityConfig) (*zap.Logger, error) {
    lvl := zapcore.InfoLevel
    switch strings.ToLower(obsCfg.LogLevel) {
    case "debug":
        lvl = zapcore.DebugLevel
    case "warn":
        lvl = zapcore.WarnLevel
    case "error":
        lvl = zapcore.ErrorLevel
    }

    encoderCfg := zap.NewProductionEncoderConfig()
    encoder := zapcore.NewJSONEncoder(encoderCfg)

    if obsCfg.LogFile == "" {
        cfg := zap.NewProductionConfig()
        cfg.Level = zap.NewAtomicLevelAt(lvl)
        cfg.Encoding = "json"
        return cfg.Build()
    }

    rotator := &lumberjack.Logger{
        Filename:   obsCfg.LogFile,
        MaxSize:    obsCfg.LogMaxSizeMB,
        MaxBackups: obsCfg.LogMaxBackups,
        Compress:   obsCfg.LogCompress,
    }
    core := zapcore.NewCore(encoder, zapcore.AddSync(rotator), lvl)
    return zap.New(core, zap.AddCaller()), nil
}

// Convenience typed fields
func String(k, v string) zap.Field { return zap.String(k, v) }
func Int(k string, v int) zap.Field { return zap.Int(k, v) }
func Int64(k string, v int64) zap.Field { return zap.Int64(k, v) }
func Bool(k string, v bool) zap.Field { return zap.Bool(k, v) }
func Err(err error) zap.Field { return zap.Error(err) }
