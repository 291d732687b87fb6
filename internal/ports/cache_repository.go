package ports

import "github.com/mikey/sms-spam-pipeline/internal/core"

// CacheRepository is the prediction cache contract implemented by the cache adapters
type CacheRepository = core.CacheRepository
