package handle

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/bindbridge/host"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the handle package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the handle package's logger.
func SetLogger(l *zap.Logger) {
	logger = l
}

func zapRef(r host.Ref) zap.Field { return zap.Uint32("ref", uint32(r)) }

func zapErr(err error) zap.Field { return zap.Error(err) }
