package system

import (
	"go.uber.org/zap"

	"github.com/civforge/server/internal/core/ecs"
)

// guard runs one entity's update. A returned error or a panic is logged and
// swallowed so the rest of the phase still runs.
func guard(log *zap.Logger, kind string, h ecs.Handle, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("entity update panic recovered",
				zap.String("kind", kind),
				zap.Stringer("handle", h),
				zap.Any("panic", rec),
			)
		}
	}()
	if err := fn(); err != nil {
		log.Warn("entity update skipped",
			zap.String("kind", kind),
			zap.Stringer("handle", h),
			zap.Error(err),
		)
	}
}
