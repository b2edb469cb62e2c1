package config

const (
	ErrInitializeDatabaseFmt = "Failed to initialize database: %v"
	ErrLoadConfigFmt         = "Failed to load configuration: %v"
	ErrBlobStoreFmt          = "Failed to create asset store: %v"
	ErrSessionStoreFmt       = "Failed to create session store: %v"

	ErrWriteConfigContentFmt = "Failed to write config content: %v"
	ErrCreateTempFileFmt     = "Failed to create temp file: %v"

	ErrWatchingDocuments = "Error watching documents"
)
