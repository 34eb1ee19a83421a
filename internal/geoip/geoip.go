// Package geoip places session clients on a map for the session log. It is
// optional: without a database every lookup is empty.
package geoip

import (
	"log/slog"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

type Location struct {
	Country string
	City    string
}

func (l Location) String() string {
	switch {
	case l.Country == "":
		return "unknown"
	case l.City == "":
		return l.Country
	default:
		return l.City + ", " + l.Country
	}
}

type Resolver struct {
	db *maxminddb.Reader
}

type record struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
}

// Open loads a MaxMind database. A missing or unreadable file disables
// lookups instead of failing startup.
func Open(dbPath string) *Resolver {
	if dbPath == "" {
		return &Resolver{}
	}
	db, err := maxminddb.Open(dbPath)
	if err != nil {
		slog.Warn("geoip: database unavailable, client locations disabled", "path", dbPath, "error", err)
		return &Resolver{}
	}
	slog.Info("geoip: loaded database", "path", dbPath)
	return &Resolver{db: db}
}

func (r *Resolver) Lookup(ip string) Location {
	if r == nil || r.db == nil {
		return Location{}
	}
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() {
		return Location{}
	}
	var rec record
	if err := r.db.Lookup(parsed, &rec); err != nil {
		return Location{}
	}
	return Location{Country: rec.Country.ISOCode, City: rec.City.Names["en"]}
}

func (r *Resolver) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
