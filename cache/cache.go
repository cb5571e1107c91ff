// Package cache keeps content hashes of previously seen source files
// so repeated builds against a mostly unchanged tree skip rehashing.
// Losing or corrupting the cache only costs time, never correctness.
package cache

import (
	"encoding/json"
	"os"

	"github.com/cockroachdb/pebble"

	"github.com/balebuild/bale/util"
)

type Cache struct {
	db *pebble.DB
}

type entry struct {
	Size   int64  `json:"size"`
	MTime  int64  `json:"mtime"`
	SHA256 string `json:"sha256"`
}

func Open(dir string) (*Cache, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// FileSHA256 returns the content hash for path, reusing the stored
// digest when size and mtime are unchanged since the last build.
func (c *Cache) FileSHA256(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	key := []byte(path)
	if val, closer, err := c.db.Get(key); err == nil {
		e := entry{}
		jerr := json.Unmarshal(val, &e)
		closer.Close()
		if jerr == nil && e.Size == info.Size() && e.MTime == info.ModTime().UnixNano() {
			return e.SHA256, nil
		}
	} else if err != pebble.ErrNotFound {
		return "", err
	}

	h, err := util.SHA256File(path)
	if err != nil {
		return "", err
	}
	val, err := json.Marshal(entry{
		Size:   info.Size(),
		MTime:  info.ModTime().UnixNano(),
		SHA256: h,
	})
	if err != nil {
		return "", err
	}
	if err := c.db.Set(key, val, pebble.Sync); err != nil {
		return "", err
	}
	return h, nil
}
