// Package config resolves listado settings from viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultRemoteURL is the listing endpoint
	DefaultRemoteURL = "https://docker-java-lmse.onrender.com/listado"
	// DefaultFeedURL is the raw WebSocket endpoint of the registrations broker
	DefaultFeedURL = "wss://docker-java-lmse.onrender.com/ws-register/websocket"
	// DefaultFeedTopic is where new registrations are published
	DefaultFeedTopic = "/topic/registrations"
	// DefaultBatchSize is the number of records written per transaction during a full replace
	DefaultBatchSize = 5000
	// DefaultPageSize is the listing page size
	DefaultPageSize = 20
	// DefaultCacheTTL is the payload cache lifetime (one minute)
	DefaultCacheTTL = time.Minute
)

// Payload contracts for the remote listing.
const (
	PayloadArray    = "array"
	PayloadEnvelope = "envelope"
)

// Fetch failure policies for the synchronizer.
const (
	FetchPolicyDegrade = "degrade"
	FetchPolicyStrict  = "strict"
)

// Settings is the resolved runtime configuration
type Settings struct {
	RemoteURL           string
	RemotePayload       string
	RemoteTimeout       time.Duration
	RemoteRatePerSecond int

	StoreDBFile string

	BatchSize   int
	BatchDelay  time.Duration
	NewestFirst bool
	FetchPolicy string

	CacheDBFile string
	CacheTTL    time.Duration

	FeedURL            string
	FeedOrigin         string
	FeedTopic          string
	FeedMaxReconnects  int
	FeedReconnectDelay time.Duration
	FeedHeartbeat      time.Duration

	PageSize int
}

// InitConfig registers default values for every key
func InitConfig() {
	viper.SetDefault("remote.url", DefaultRemoteURL)
	viper.SetDefault("remote.payload", PayloadArray)
	viper.SetDefault("remote.timeout", "10s")
	viper.SetDefault("remote.ratepersecond", 2)

	viper.SetDefault("store.dbfile", "./listado.db")

	viper.SetDefault("sync.batchsize", DefaultBatchSize)
	viper.SetDefault("sync.batchdelay", "0s")
	viper.SetDefault("sync.newestfirst", false)
	viper.SetDefault("sync.fetchpolicy", FetchPolicyDegrade)

	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", DefaultCacheTTL.String())

	viper.SetDefault("feed.url", DefaultFeedURL)
	viper.SetDefault("feed.origin", "https://docker-java-lmse.onrender.com")
	viper.SetDefault("feed.topic", DefaultFeedTopic)
	viper.SetDefault("feed.maxreconnects", 5)
	viper.SetDefault("feed.reconnectdelay", "5s")
	viper.SetDefault("feed.heartbeat", "4s")

	viper.SetDefault("listing.pagesize", DefaultPageSize)
}

// Load reads the current viper state into Settings and validates it
func Load() (Settings, error) {
	s := Settings{
		RemoteURL:           viper.GetString("remote.url"),
		RemotePayload:       strings.ToLower(viper.GetString("remote.payload")),
		RemoteRatePerSecond: viper.GetInt("remote.ratepersecond"),
		StoreDBFile:         viper.GetString("store.dbfile"),
		BatchSize:           viper.GetInt("sync.batchsize"),
		NewestFirst:         viper.GetBool("sync.newestfirst"),
		FetchPolicy:         strings.ToLower(viper.GetString("sync.fetchpolicy")),
		CacheDBFile:         viper.GetString("cache.dbfile"),
		FeedURL:             viper.GetString("feed.url"),
		FeedOrigin:          viper.GetString("feed.origin"),
		FeedTopic:           viper.GetString("feed.topic"),
		FeedMaxReconnects:   viper.GetInt("feed.maxreconnects"),
		PageSize:            viper.GetInt("listing.pagesize"),
	}

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"remote.timeout", &s.RemoteTimeout},
		{"sync.batchdelay", &s.BatchDelay},
		{"cache.ttl", &s.CacheTTL},
		{"feed.reconnectdelay", &s.FeedReconnectDelay},
		{"feed.heartbeat", &s.FeedHeartbeat},
	}
	for _, d := range durations {
		parsed, err := parseDuration(d.key)
		if err != nil {
			return Settings{}, err
		}
		*d.target = parsed
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks enumerated values and positive sizes
func (s Settings) Validate() error {
	switch s.RemotePayload {
	case PayloadArray, PayloadEnvelope:
	default:
		return fmt.Errorf("invalid remote.payload %q (valid: %s, %s)", s.RemotePayload, PayloadArray, PayloadEnvelope)
	}

	switch s.FetchPolicy {
	case FetchPolicyDegrade, FetchPolicyStrict:
	default:
		return fmt.Errorf("invalid sync.fetchpolicy %q (valid: %s, %s)", s.FetchPolicy, FetchPolicyDegrade, FetchPolicyStrict)
	}

	if s.RemoteURL == "" {
		return fmt.Errorf("remote.url is required")
	}
	if s.StoreDBFile == "" {
		return fmt.Errorf("store.dbfile is required")
	}
	if s.BatchSize <= 0 {
		return fmt.Errorf("sync.batchsize must be positive, got %d", s.BatchSize)
	}
	if s.PageSize <= 0 {
		return fmt.Errorf("listing.pagesize must be positive, got %d", s.PageSize)
	}
	if s.FeedMaxReconnects < 0 {
		return fmt.Errorf("feed.maxreconnects must not be negative, got %d", s.FeedMaxReconnects)
	}
	return nil
}

func parseDuration(key string) (time.Duration, error) {
	raw := viper.GetString(key)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}
