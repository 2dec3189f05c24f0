package constants

// Default retry configuration values
const (
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
	DefaultMaxAttempts           = 3
	DefaultDatabaseRetryAttempts = 3
)

// Default server configuration values
const (
	DefaultServerPort            = 8080
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
	DefaultRequestTimeoutSec     = 30
	DefaultRateLimitPerMinute    = 120
	ServerErrorChannelSize       = 1
)

// Default pipeline configuration values
const (
	DefaultDedupCapacity      = 1024
	DefaultHTTPTimeoutSec     = 30
	DefaultLLMTimeoutSec      = 20
	DefaultMaxRecommendations = 3
)

// Limits applied to normalized inbound messages
const (
	MaxDisplayNameLength = 64
	MaxMediaRefs         = 10
	MinSenderDigits      = 3
	MaxMessageIDLength   = 128
	MaxMessageBodyLength = 4096
)
