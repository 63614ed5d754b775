package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// QueryLogger routes gorm output through zap, tagged with the request fields
// carried on the statement context. Bound values are never logged.
type QueryLogger struct {
	base  *zap.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

func NewQueryLogger(base *zap.Logger, level gormlogger.LogLevel, slow time.Duration) *QueryLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &QueryLogger{
		base:  base.Named("db"),
		level: level,
		slow:  slow,
	}
}

func (l *QueryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.level = level
	return &next
}

func (l *QueryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *QueryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *QueryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

// Trace logs failed statements as errors and slow ones as warnings. Every
// other statement is emitted at debug when the logger runs at Info.
// Missing rows are not failures: lookups map them to domain not-found errors.
func (l *QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	var level zapcore.Level
	switch {
	case l.level <= gormlogger.Silent:
		return
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound) && l.level >= gormlogger.Error:
		level = zapcore.ErrorLevel
	case l.slow > 0 && elapsed > l.slow && l.level >= gormlogger.Warn:
		level = zapcore.WarnLevel
	case l.level >= gormlogger.Info:
		level = zapcore.DebugLevel
	default:
		return
	}

	ce := WithContext(ctx, l.base).Check(level, "db_query")
	if ce == nil {
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.String("statement", statementVerb(sql)),
		zap.String("sql", strings.TrimSpace(sql)),
		zap.Duration("elapsed", elapsed),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows", rows))
	}
	if level == zapcore.WarnLevel {
		fields = append(fields, zap.Duration("slow_threshold", l.slow))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}

// ParamsFilter drops bound values so customer data stays out of the logs.
func (l *QueryLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *QueryLogger) message(ctx context.Context, threshold gormlogger.LogLevel, level zapcore.Level, msg string, data []interface{}) {
	if l.level < threshold {
		return
	}
	if len(data) > 0 {
		msg = fmt.Sprintf(msg, data...)
	}
	if ce := WithContext(ctx, l.base).Check(level, msg); ce != nil {
		ce.Write()
	}
}

func statementVerb(sql string) string {
	for _, token := range strings.Fields(strings.ToUpper(sql)) {
		token = strings.Trim(token, "();")
		switch token {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			return strings.ToLower(token)
		}
	}
	return "other"
}

var _ gormlogger.Interface = (*QueryLogger)(nil)
