package redis

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultExpireDuration = 24 * time.Hour

type repo struct {
	rc             *redis.Client
	logger         *slog.Logger
	expireDuration time.Duration
	addToList      *redis.Script
}

func NewRepo(rc *redis.Client, logger *slog.Logger, expireDuration time.Duration) *repo {
	if expireDuration <= 0 {
		expireDuration = defaultExpireDuration
	}

	return &repo{
		rc:             rc,
		logger:         logger,
		expireDuration: expireDuration,
		// appends ARGV[1] to the sorted set KEYS[1] with the next free score,
		// so ZRANGE returns members in join order
		addToList: redis.NewScript(`
			local maxScore = redis.call('ZREVRANGE', KEYS[1], 0, 0, 'WITHSCORES')
			local nextScore = 1
			if #maxScore > 0 then
				nextScore = tonumber(maxScore[2]) + 1
			end
			redis.call('ZADD', KEYS[1], nextScore, ARGV[1])
			return nextScore
		`),
	}
}
