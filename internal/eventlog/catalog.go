package eventlog

import (
	"sort"
	"sync"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/rzbill/flowatch/internal/storage/pebble"
)

// Catalog hands out one shared *Log per source so that appenders and readers
// in the same process observe each other's notifications.
type Catalog struct {
	db *pebblestore.DB

	mu   sync.Mutex
	logs map[string]*Log
}

// NewCatalog returns a catalog over db.
func NewCatalog(db *pebblestore.DB) *Catalog {
	return &Catalog{db: db, logs: make(map[string]*Log)}
}

// Open returns the log for source, opening it on first use.
func (c *Catalog) Open(source string) (*Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.logs[source]; ok {
		return l, nil
	}
	l, err := OpenLog(c.db, source)
	if err != nil {
		return nil, err
	}
	c.logs[source] = l
	return l, nil
}

// Sources lists every source with a metadata key in the database.
func (c *Catalog) Sources() ([]string, error) {
	iter, err := c.db.NewIter(&pebble.IterOptions{LowerBound: logPrefix, UpperBound: []byte("log0")})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	for ok := iter.First(); ok; ok = iter.Next() {
		k := iter.Key()
		if len(k) <= len(logPrefix)+len(metaSuffix) || string(k[len(k)-len(metaSuffix):]) != string(metaSuffix) {
			continue
		}
		name := string(k[len(logPrefix) : len(k)-len(metaSuffix)])
		// entry keys whose seq bytes happen to end in "/m" carry a '/'
		if ValidateSource(name) != nil {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, iter.Error()
}
