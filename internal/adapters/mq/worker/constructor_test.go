package worker_test

import (
	"testing"

	"github.com/okian/whisper/internal/adapters/mq/worker"
	logging "github.com/okian/whisper/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// Runs before any test in the package calls logging.Init.
func TestConstructorsWithExplicitLogger(t *testing.T) {
	convey.Convey("Given explicit loggers and no global logger", t, func() {
		convey.Convey("Then workers and pools build without touching the global logger", func() {
			convey.So(func() {
				worker.NewInMemoryWorker(newMockQueue(), newRecordingProcessor(), worker.WithLogger(logging.Discard))
				worker.NewPool(1, newMockQueue(), newRecordingProcessor(),
					worker.WithPoolLogger(logging.Discard), worker.WithSystemMetricsInterval(0))
			}, convey.ShouldNotPanic)
		})
	})
}
