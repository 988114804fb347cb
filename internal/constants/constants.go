package constants

import "time"

// Network defaults
const (
	DefaultHost       = "127.0.0.1"
	DefaultHubPort    = "7681"
	WSBufferSize      = 32768 // 32KB WebSocket buffer
	ReadLimit         = 1 << 20
	WSHandshakeWindow = 10 * time.Second
)

// Session settings
const (
	SessionTTL    = 4 * time.Hour  // interactive sessions
	HubSessionTTL = 24 * time.Hour // unattended hub sessions
	TTLSweepEvery = time.Minute
)

// Ticket settings
const (
	TicketTTL        = 60 * time.Second
	TicketSweepEvery = 30 * time.Second
)

// Rate limiting
const (
	RateLimitWindow  = time.Minute
	GeneralRateLimit = 30 // general API requests per window per IP
	TicketRateLimit  = 10 // ticket mints per window per IP
)

// Connection caps and liveness
const (
	MaxConnections      = 5
	MaxConnectionsPerIP = 2
	HeartbeatInterval   = 30 * time.Second
	WriteTimeout        = 10 * time.Second
)

// WebSocket close codes. Distinct per rejection reason so clients can tell
// retryable (capacity) from non-retryable (auth) rejections apart.
const (
	CloseAuthFailure    = 4001
	CloseCapacity       = 4002
	ClosePerIPCap       = 4003
	CloseSessionExpired = 4004
)

// Terminal limits
const (
	MaxCols         = 500
	MinCols         = 1
	MaxRows         = 200
	MinRows         = 1
	DefaultCols     = 80
	DefaultRows     = 24
	ReplayCapacity  = 2000
	AbnormalExit    = 1
)

// External collaborators
const (
	RelayTimeout = 10 * time.Second // relay CLI invocations
	ProxyTimeout = 3 * time.Second  // hub -> sibling ticket calls
)

// API endpoints
const (
	EndpointSessions    = "/api/sessions"
	EndpointSessionByID = "/api/sessions/"
	EndpointTicket      = "/api/auth/ticket"
	EndpointProxyTicket = "/api/proxy/ticket/"
	EndpointWebSocket   = "/ws"
	EndpointRoot        = "/"
)

// App identity
const (
	AppName     = "termshare"
	RegistryDir = "registry"
	AuditDir    = "audit"
)

// Audit
const (
	MaxAuditLogsPerMinute = 600
)

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorRed    = "\033[31m"
)

// Messages
const (
	MsgMethodNotAllowed   = "Method not allowed"
	MsgUnauthorized       = "Unauthorized"
	MsgRateLimitExceeded  = "Rate limit exceeded"
	MsgInvalidPort        = "Invalid port"
	MsgSessionUnreachable = "Session unreachable"
	MsgSessionExpired     = "Session expired"
	MsgNotFound           = "Not found"
	MsgUsage              = "Usage: termshare [command...]"
	MsgExample            = "Example: termshare bash"
)
