package constants

import "time"

const (
	RideSummaryCachePrefix = "ride_summary" // Summary by ride id (CacheBuilder adds colon)
	RideSummaryCacheExpiry = 24 * time.Hour
)
