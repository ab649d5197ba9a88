package log

import (
	"strings"

	"github.com/softwareheritage/swh-dedup/src/internal/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// parseLevel turns a LOG_LEVEL value into an AtomicLevel.  "warn" and "warning" are the same;
// the empty string means info.
func parseLevel(s string) (zap.AtomicLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return zap.NewAtomicLevelAt(zapcore.InfoLevel), nil
	case "warning":
		return zap.NewAtomicLevelAt(zapcore.WarnLevel), nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return zap.AtomicLevel{}, errors.Wrapf(err, "parse log level %q", s)
	}
	return zap.NewAtomicLevelAt(l), nil
}
