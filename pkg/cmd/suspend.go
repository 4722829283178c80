package cmd

import (
	"log/slog"

	"github.com/fixlify/fixflow/pkg/suspend"
)

// NewSuspendQueue creates the delay continuation store: redis when a URL is
// configured, an in-process queue otherwise. The in-process queue loses
// pending delays on restart and is only suitable for local development.
func NewSuspendQueue(redisURL string, logger *slog.Logger) suspend.Queue {
	if redisURL == "" {
		logger.Warn("REDIS_URL not set, delay continuations are held in memory only")

		return suspend.NewMemoryQueue()
	}

	queue, err := suspend.NewRedisQueue(redisURL, logger)
	if err != nil {
		panic("failed to connect to redis: " + err.Error())
	}

	return queue
}
