package speech

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/logger"
)

// AudioCache keeps synthesized audio in memory and, when dir is set, on disk.
// A screening run repeats the same few utterances ("A", "B", "Correct"), so
// after the first test every prompt plays without a network round trip.
//
// Entries are keyed by sha256(profile + ":" + text); changing voice or rate
// changes the profile and therefore misses until switched back.
type AudioCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
	profile string
	dir     string
	log     *logger.Logger
	hits    int64
	misses  int64
}

// NewAudioCache creates a cache for audio produced under profile. An empty
// dir disables the disk layer.
func NewAudioCache(profile, dir string, log *logger.Logger) *AudioCache {
	c := &AudioCache{
		entries: make(map[string][]byte),
		profile: profile,
		dir:     dir,
		log:     log,
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Warn("cache: disabling disk layer, cannot create %s: %v", dir, err)
			c.dir = ""
		}
	}
	return c
}

// Get returns cached audio for text, checking memory and then disk. Disk hits
// are promoted to memory.
func (c *AudioCache) Get(text string) ([]byte, bool) {
	key := c.key(text)

	c.mu.RLock()
	data, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok && c.dir != "" {
		if disk, err := os.ReadFile(c.path(key)); err == nil {
			data, ok = disk, true
			c.mu.Lock()
			c.entries[key] = disk
			c.mu.Unlock()
		}
	}

	c.mu.Lock()
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()

	if ok {
		c.log.Debug("cache hit: %s (%d bytes)", truncate(text, 40), len(data))
	}
	return data, ok
}

// Put stores audio for text in memory and, when enabled, on disk.
func (c *AudioCache) Put(text string, audio []byte) {
	key := c.key(text)

	c.mu.Lock()
	c.entries[key] = audio
	c.mu.Unlock()

	if c.dir == "" {
		return
	}
	if err := os.WriteFile(c.path(key), audio, 0o644); err != nil {
		c.log.Error("cache: disk write failed for %q: %v", truncate(text, 40), err)
	}
}

// Has reports whether audio for text is cached without touching the stats.
func (c *AudioCache) Has(text string) bool {
	key := c.key(text)

	c.mu.RLock()
	_, ok := c.entries[key]
	c.mu.RUnlock()
	if ok || c.dir == "" {
		return ok
	}
	_, err := os.Stat(c.path(key))
	return err == nil
}

// Len returns the number of in-memory entries.
func (c *AudioCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counts.
func (c *AudioCache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

func (c *AudioCache) key(text string) string {
	h := sha256.Sum256([]byte(c.profile + ":" + text))
	return hex.EncodeToString(h[:])
}

func (c *AudioCache) path(key string) string {
	return filepath.Join(c.dir, key+".wav")
}
