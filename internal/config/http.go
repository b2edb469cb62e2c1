package config

const (
	HCType        = "Content-Type"
	HCacheControl = "Cache-Control"

	CTypeJSON  = "application/json"
	CTypePlain = "text/plain"
)

const (
	HTTPErrMethodNotAllowed = "Method not allowed"
)

const (
	CookieClient = "quill_client"
)
