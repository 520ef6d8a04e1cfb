package logflags

import (
	"os"

	"go.uber.org/zap/zapcore"
)

// Logger is the minimal sugared surface the engine logs through.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

const DefaultLogDesc = ""

var (
	scanner bool
	logOut  zapcore.WriteSyncer = os.Stderr
)

// Setup enables debug logging and points it at logDest (stderr when
// empty). logStr names the logger kind ("scanner" is the only one) and
// is not otherwise used.
func Setup(flag bool, logStr, logDest string) error {
	scanner = flag
	if logDest != "" {
		f, err := os.OpenFile(logDest, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		logOut = f
	}
	return nil
}
