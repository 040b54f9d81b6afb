// Package cache provides the on-disk cache: translated summaries and
// the last fetched conference list. Everything here is best effort;
// callers must treat failures as misses.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"parley/internal/types"
)

// DefaultTTL is how long cached translations stay valid. The backend
// recomputes translations on demand, so staleness only costs a refetch.
const DefaultTTL = 30 * 24 * time.Hour

const conferencesKey = "conferences/snapshot"

// Translation is one cached translation of a conference summary.
type Translation struct {
	Text       string    `json:"text"`
	TargetLang string    `json:"targetLang"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Cache is a badger-backed key-value store.
type Cache struct {
	db *badger.DB
}

// New opens (or creates) the cache at the given directory.
func New(path string) (*Cache, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// GenerateKey builds a stable cache key from its parts.
func GenerateKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// GetTranslation returns the cached translation for a conference and
// target language, if present and unexpired.
func (c *Cache) GetTranslation(conferenceID, targetLang string) (Translation, bool) {
	var t Translation
	key := translationKey(conferenceID, targetLang)
	if err := c.get(key, &t); err != nil {
		return Translation{}, false
	}
	return t, true
}

// SetTranslation stores a translation with the default TTL.
func (c *Cache) SetTranslation(conferenceID, targetLang string, t Translation) error {
	return c.set(translationKey(conferenceID, targetLang), t, DefaultTTL)
}

// DeleteTranslations drops all cached translations for a conference.
// Called when the conference itself is deleted.
func (c *Cache) DeleteTranslations(conferenceID string) error {
	prefix := []byte("translation/" + conferenceID + "/")
	return c.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetConferences stores the latest fetched conference list snapshot.
func (c *Cache) SetConferences(confs []types.Conference) error {
	return c.set(conferencesKey, confs, 0)
}

// Conferences returns the last stored conference list snapshot.
func (c *Cache) Conferences() ([]types.Conference, bool) {
	var confs []types.Conference
	if err := c.get(conferencesKey, &confs); err != nil {
		return nil, false
	}
	return confs, true
}

func translationKey(conferenceID, targetLang string) string {
	return "translation/" + conferenceID + "/" + targetLang
}

func (c *Cache) set(key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), data)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (c *Cache) get(key string, out any) error {
	return c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			return fmt.Errorf("read cache entry: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}
