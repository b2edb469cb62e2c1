package config

const (
	APIPrefix = "/api/"

	AssetsUrlPath = "/assets/"
	EventsUrlPath = "/sse"
	MetricsPath   = "/metrics"
)
