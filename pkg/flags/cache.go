package flags

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/sandeepstele/guruheal-agent/pkg/apis/cache"
	"github.com/sandeepstele/guruheal-agent/pkg/cache/redis"
)

// CacheFlags holds caching configuration for the chat service. Caching is
// optional; when no Redis URL is given, GetCacheClient returns nil and
// dependent features degrade gracefully.
type CacheFlags struct {
	RedisURL string
}

func NewCacheFlags() *CacheFlags {
	return &CacheFlags{}
}

func (f *CacheFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.RedisURL,
		"redis-url",
		os.Getenv("REDIS_URL"),
		"Redis URL for the web search source cache")
}

func (f *CacheFlags) GetCacheClient() (cache.Cache, error) {
	if f.RedisURL != "" {
		return redis.NewRedisCache(f.RedisURL)
	}

	return nil, nil
}
