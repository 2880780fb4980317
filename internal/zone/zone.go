// Package zone loads the single zone this resolver is authoritative
// for. Parsing itself is delegated to github.com/miekg/dns's
// dns.ZoneParser, per the spec's "zone-file loading is an external
// collaborator" stance; this package turns that record stream into
// the origin + default-TTL + record-set triple the rest of the
// resolver needs, and seeds the shared cache from it.
package zone

import (
	"fmt"
	"io"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/miekg/dns"
	"github.com/semihalev/log"

	"github.com/zoneward/zoneward/internal/cache"
)

// Zone is the served origin plus the records read from its zone file.
type Zone struct {
	Origin     string
	DefaultTTL uint32
	Records    []dns.RR
}

// Load parses path and returns the zone it describes. The origin is
// taken from the zone's SOA record; DefaultTTL is the SOA's minimum
// field, the master-file convention for "no explicit TTL given".
func Load(path string) (*Zone, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open zone file: %w", err)
	}
	defer f.Close()

	return parse(f, path)
}

func parse(r io.Reader, path string) (*Zone, error) {
	zp := dns.NewZoneParser(r, "", path)
	zp.SetIncludeAllowed(true)

	z := &Zone{}

	for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
		if soa, isSOA := rr.(*dns.SOA); isSOA {
			z.Origin = dns.CanonicalName(soa.Hdr.Name)
			z.DefaultTTL = soa.Minttl
		}

		z.Records = append(z.Records, rr)
	}

	if err := zp.Err(); err != nil {
		return nil, fmt.Errorf("parse zone file %s: %w", path, err)
	}

	if z.Origin == "" {
		return nil, fmt.Errorf("zone file %s has no SOA record", path)
	}

	return z, nil
}

// Seed inserts every record of the zone into c, each expiring after
// the zone's default TTL -- matching the spec's startup-seeding rule
// (expiry = now + zone_ttl) rather than each record's own TTL field.
func (z *Zone) Seed(c *cache.Cache) {
	for _, rr := range z.Records {
		seeded := dns.Copy(rr)
		seeded.Header().Ttl = z.DefaultTTL
		c.Put(seeded)
	}
}

// Watcher reloads the zone and re-seeds the cache whenever the zone
// file changes on disk, using fsnotify the way the rest of the
// ecosystem watches config files for live reload.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
}

// NewWatcher starts watching path for writes.
func NewWatcher(path string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create zone watcher: %w", err)
	}

	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch zone file: %w", err)
	}

	return &Watcher{path: path, watcher: w}, nil
}

// Run blocks, reloading the zone into c each time the watched file is
// written, until Close is called.
func (w *Watcher) Run(c *cache.Cache) {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			z, err := Load(w.path)
			if err != nil {
				log.Error("Zone reload failed", "path", w.path, "error", err.Error())
				continue
			}

			z.Seed(c)
			log.Info("Zone reloaded", "path", w.path, "origin", z.Origin, "records", len(z.Records))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error("Zone watcher error", "error", err.Error())
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
