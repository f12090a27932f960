package config

import "time"

// Application constants - all hardcoded values for the SBP Lens system
const (
	// Application Info
	AppName    = "SBP Lens"
	AppVersion = "0.3.0"

	// Network Timeouts
	DefaultHTTPTimeout  = 30 * time.Second
	FetcherTimeout      = 60 * time.Second
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// File Paths (relative to executable)
	DefaultDataDir      = "data"
	DefaultLogsDir      = "logs"
	DefaultWebDir       = "web"
	DefaultDownloadsDir = "data/downloads"
	DefaultReportsDir   = "data/reports"

	// Operation Timeouts
	DefaultOperationTimeout = 1 * time.Hour
	ParseStageTimeout       = 30 * time.Minute
	ComputeStageTimeout     = 15 * time.Minute
	ExportStageTimeout      = 15 * time.Minute

	// WebSocket Buffer Sizes
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024

	// Log Settings
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "json"
	MaxLogFileSize    = 100 * 1024 * 1024 // 100MB
	MaxLogFileAge     = 30                // days
	MaxLogFileBackups = 10

	// SBP Data Processing
	BalanceWorkbookPattern = `balance_\d{4}_\d{2}\.xlsx?`
	BalanceWorkbookName    = "SBP_Panama_Balance_de_Bancos.xlsx"
	IndicatorsCSVName      = "financials_processed.csv"
)

// URLs and Endpoints
const (
	// SBP Data Source
	SBPWebsiteURL = "https://www.superbancos.gob.pa"

	// API Endpoints (internal)
	APIBasePath        = "/api"
	PipelineEndpoint   = "/api/pipeline"
	IndicatorsEndpoint = "/api/indicators"
	HealthEndpoint     = "/healthz"
	MetricsEndpoint    = "/metrics"

	// WebSocket Endpoints
	WebSocketEndpoint = "/ws"
)
