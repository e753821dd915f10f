package database

import (
	"context"
	"fmt"
	"time"

	"bikey/config"

	"github.com/valkey-io/valkey-go"
)

type CacheClient valkey.Client

// Valkey database indexes
const (
	// GENERAL_CACHE_INDEX holds cached ride summaries.
	GENERAL_CACHE_INDEX = iota

	// EVENTS_CACHE_INDEX carries import progress events over pub/sub.
	EVENTS_CACHE_INDEX
)

type Cache struct {
	General CacheClient
	Events  CacheClient
}

// Enabled reports whether a valkey server is configured.
func (c Cache) Enabled() bool {
	return c.General != nil
}

func (c Cache) Close() {
	if c.General != nil {
		c.General.Close()
	}
	if c.Events != nil {
		c.Events.Close()
	}
}

func (s *DB) initializeCacheDB(config config.Config) error {
	log := s.log.Function("initializeCacheDB")

	address := config.DatabaseCacheAddress
	port := config.DatabaseCachePort
	if address == "" || port == 0 {
		log.Info("No cache configured, caching and event fan-out disabled")
		return nil
	}

	log.Info("initializing cache database", "address", address, "port", port)

	var cacheDB Cache
	var err error

	cacheDB.General, err = newCacheClient(address, port, GENERAL_CACHE_INDEX)
	if err != nil {
		return log.Err("failed to create general valkey client", err)
	}

	cacheDB.Events, err = newCacheClient(address, port, EVENTS_CACHE_INDEX)
	if err != nil {
		cacheDB.Close()
		return log.Err("failed to create events valkey client", err)
	}

	s.Cache = cacheDB
	return nil
}

func newCacheClient(address string, port int, index int) (CacheClient, error) {
	return valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{fmt.Sprintf("%s:%d", address, port)},
		SelectDB:    index,
	})
}

// FlushAllCaches clears every configured cache database.
func (s *DB) FlushAllCaches() error {
	log := s.log.Function("FlushAllCaches")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cacheClients := []struct {
		client CacheClient
		name   string
	}{
		{s.Cache.General, "General"},
		{s.Cache.Events, "Events"},
	}

	for _, cache := range cacheClients {
		if cache.client == nil {
			continue
		}
		if err := cache.client.Do(ctx, cache.client.B().Flushdb().Build()).Error(); err != nil {
			return log.Err("Failed to flush cache database", err, "cache", cache.name)
		}
		log.Info("Successfully flushed cache database", "cache", cache.name)
	}

	return nil
}
