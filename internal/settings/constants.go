package settings

// DB setting keys and defaults.
const (
	// SiteNameKey is the DB setting key for the console display name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback console display name.
	DefaultSiteName = "API Console"
)
