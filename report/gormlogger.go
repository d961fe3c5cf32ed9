package report

import (
	"context"
	"errors"
	"time"

	"github.com/flanksource/commons/logger"
	logsrusapi "github.com/sirupsen/logrus"
	gLogger "gorm.io/gorm/logger"
)

type gormLogger struct {
	logger                    logger.Logger
	LogLevel                  gLogger.LogLevel
	SlowThreshold             time.Duration
	IgnoreRecordNotFoundError bool
}

// NewGormLogger bridges gorm logs into the commons logger. Levels: trace
// logs every statement, debug logs slow statements and errors, anything
// else errors only.
func NewGormLogger(level string) gLogger.Interface {
	l := logsrusapi.StandardLogger()
	l.SetFormatter(&logsrusapi.TextFormatter{
		ForceColors:  true,
		DisableQuote: true,
	})

	gl := &gormLogger{
		logger:                    logger.NewLogrusLogger(l),
		SlowThreshold:             time.Second,
		IgnoreRecordNotFoundError: true,
	}

	switch level {
	case "trace":
		return gl.LogMode(gLogger.Info)
	case "debug":
		return gl.LogMode(gLogger.Warn)
	default:
		return gl.LogMode(gLogger.Error)
	}
}

func (t *gormLogger) LogMode(level gLogger.LogLevel) gLogger.Interface {
	t.LogLevel = level

	switch level {
	case gLogger.Silent:
		t.logger.SetLogLevel(-1)
	case gLogger.Error:
		t.logger.SetLogLevel(1)
	case gLogger.Warn:
		t.logger.SetLogLevel(2)
	default:
		t.logger.SetLogLevel(3)
	}

	return t
}

func (t *gormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	t.logger.Infof(msg, data...)
}

func (t *gormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	t.logger.Warnf(msg, data...)
}

func (t *gormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	t.logger.Errorf(msg, data...)
}

func (t *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if t.LogLevel <= gLogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && t.LogLevel >= gLogger.Error && (!errors.Is(err, gLogger.ErrRecordNotFound) || !t.IgnoreRecordNotFoundError):
		sql, rows := fc()
		t.logger.WithValues("rows", rows).Errorf("%s: %v", sql, err)
	case t.SlowThreshold != 0 && elapsed > t.SlowThreshold && t.LogLevel >= gLogger.Warn:
		sql, rows := fc()
		t.logger.WithValues("rows", rows).WithValues("elapsed", elapsed).Warnf(sql)
	case t.LogLevel >= gLogger.Info:
		sql, rows := fc()
		t.logger.WithValues("rows", rows).Infof(sql)
	}
}
