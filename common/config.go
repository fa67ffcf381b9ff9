package common

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	logger "github.com/kthomas/go-logger"
)

var (
	// Log is the configured logger for the transfer core
	Log *logger.Logger

	// ConsumeNATSStreamingSubscriptions flags whether this process should
	// establish NATS subscriptions on boot; disabled in tests and in
	// request/response-only deployments.
	ConsumeNATSStreamingSubscriptions bool

	// RefundTimeoutSeconds is the minimum age, in seconds, a transfer must
	// reach before `refund` is eligible (spec §4.5 refund guard).
	RefundTimeoutSeconds int64
)

func init() {
	godotenv.Load()

	requireLogger()
	requireRefundTimeout()

	ConsumeNATSStreamingSubscriptions = os.Getenv("CONSUME_NATS_STREAMING_SUBSCRIPTIONS") == "true"
}

func requireLogger() {
	lvl := os.Getenv("LOG_LEVEL")
	if lvl == "" {
		lvl = "INFO"
	}

	var endpoint *string
	if os.Getenv("SYSLOG_ENDPOINT") != "" {
		endpt := os.Getenv("SYSLOG_ENDPOINT")
		endpoint = &endpt
	}

	Log = logger.NewLogger("transfercore", lvl, endpoint)
}

func requireRefundTimeout() {
	RefundTimeoutSeconds = 3600
	if raw := os.Getenv("REFUND_TIMEOUT_SECONDS"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v > 0 {
			RefundTimeoutSeconds = v
		}
	}
}
