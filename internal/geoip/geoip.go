// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package geoip resolves client addresses to ISO country codes using a
// MaxMind GeoLite2-Country database. Without a database every public
// address resolves to the empty string.
package geoip

import (
	"fmt"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/oschwald/maxminddb-golang"

	"github.com/olegiv/province-cms/internal/util"
)

// CountryLocal is reported for private and loopback addresses.
const CountryLocal = "LOCAL"

// Lookup maps addresses to countries. The zero value is usable and has
// no database.
type Lookup struct {
	path string

	mu  sync.RWMutex
	cur *snapshot
}

// snapshot is one opened copy of the database file.
type snapshot struct {
	reader  *maxminddb.Reader
	modTime time.Time
}

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// Open loads the database at path. An empty path returns a lookup that
// only classifies private addresses. On error the returned lookup is
// still usable.
func Open(path string) (*Lookup, error) {
	g := &Lookup{path: path}
	if path == "" {
		return g, nil
	}
	return g, g.Reload()
}

// Reload reopens the database when the file on disk has changed since it
// was last opened.
func (g *Lookup) Reload() error {
	if g.path == "" {
		return nil
	}

	info, err := os.Stat(g.path)
	if err != nil {
		return fmt.Errorf("geoip database %s: %w", g.path, err)
	}

	g.mu.RLock()
	fresh := g.cur != nil && g.cur.modTime.Equal(info.ModTime())
	g.mu.RUnlock()
	if fresh {
		return nil
	}

	reader, err := maxminddb.Open(g.path)
	if err != nil {
		return fmt.Errorf("opening geoip database: %w", err)
	}

	g.mu.Lock()
	old := g.cur
	g.cur = &snapshot{reader: reader, modTime: info.ModTime()}
	g.mu.Unlock()

	if old != nil {
		_ = old.reader.Close()
	}
	return nil
}

// Country returns the two-letter ISO code for ip, CountryLocal for
// private ranges and "" when unknown or unparsable.
func (g *Lookup) Country(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ""
	}
	addr = addr.WithZone("")
	if util.IsPrivateIP(addr) {
		return CountryLocal
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.cur == nil {
		return ""
	}

	var rec countryRecord
	if err := g.cur.reader.Lookup(net.IP(addr.AsSlice()), &rec); err != nil {
		return ""
	}
	return rec.Country.ISOCode
}

// Enabled reports whether a database is loaded.
func (g *Lookup) Enabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cur != nil
}

// Close releases the database. Later lookups behave as if none was loaded.
func (g *Lookup) Close() error {
	g.mu.Lock()
	cur := g.cur
	g.cur = nil
	g.mu.Unlock()

	if cur == nil {
		return nil
	}
	return cur.reader.Close()
}
