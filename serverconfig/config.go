// Copyright 2015 The Cockroach Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package serverconfig loads the embedded server's static configuration
// from a TOML file, per spec.md §10.3, and lets the CLI layer over it
// with flag values, mirroring the split cli/context.go and cli/flags.go
// make in the teacher tree between a long-lived Context struct and its
// per-invocation pflag overrides.
package serverconfig

import (
	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"

	"github.com/kvindex/kvindex/kvxerror"
)

// Config is the embedded server's static configuration: where it
// listens, where it persists data, and how large its in-memory caches
// are, per spec.md §10.3.
type Config struct {
	ListenAddr string `toml:"listen_addr"`
	HTTPAddr   string `toml:"http_addr"`
	StorageDir string `toml:"storage_dir"`
	Insecure   bool   `toml:"insecure"`
	CertsDir   string `toml:"certs_dir"`

	QueryCacheItems int `toml:"query_cache_items"`
	JoinCacheItems  int `toml:"join_cache_items"`
	IdSetCacheItems int `toml:"idset_cache_items"`
}

// Default returns a Config with the same conservative defaults
// cache.DefaultQueryCapacity/DefaultJoinCapacity/DefaultIdSetCapacity
// use, so a server started with no config file at all still behaves
// sensibly, matching cli/context.go's InitDefaults idiom.
func Default() Config {
	return Config{
		ListenAddr:      "127.0.0.1:6534",
		HTTPAddr:        "127.0.0.1:6535",
		StorageDir:      "kvindex-data",
		Insecure:        true,
		QueryCacheItems: 1024,
		JoinCacheItems:  1024,
		IdSetCacheItems: 4096,
	}
}

// LoadFile parses a TOML config file at path over Default's values —
// any field the file omits keeps its default rather than zeroing out.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, kvxerror.Wrap(err, kvxerror.Params, "reading config file "+path)
	}
	return cfg, nil
}

// flagUsage documents each overlay flag, mirroring cli/flags.go's
// flagUsage map of one-line-plus-detail descriptions per flag name.
var flagUsage = map[string]string{
	"addr":              "the host:port to bind for the binary RPC listener",
	"http-addr":         "the host:port to bind for the REST/HTTP gateway",
	"storage-dir":       "directory holding persisted namespace data",
	"insecure":          "run without TLS certificates",
	"certs":             "directory containing TLS certificates, required unless --insecure",
	"query-cache-items": "capacity, in entries, of each namespace's QueryCache",
	"join-cache-items":  "capacity, in entries, of each namespace's JoinCache",
	"idset-cache-items": "capacity, in entries, of each namespace's IdSetCache",
}

// BindFlags registers a pflag overlay for every Config field onto fs,
// defaulting each flag to cfg's current value so an unset flag leaves
// the file-loaded (or Default) value untouched — the layering spec.md
// §10.3 describes as "environment/flag overrides layered" on top of the
// static file.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ListenAddr, "addr", c.ListenAddr, flagUsage["addr"])
	fs.StringVar(&c.HTTPAddr, "http-addr", c.HTTPAddr, flagUsage["http-addr"])
	fs.StringVar(&c.StorageDir, "storage-dir", c.StorageDir, flagUsage["storage-dir"])
	fs.BoolVar(&c.Insecure, "insecure", c.Insecure, flagUsage["insecure"])
	fs.StringVar(&c.CertsDir, "certs", c.CertsDir, flagUsage["certs"])
	fs.IntVar(&c.QueryCacheItems, "query-cache-items", c.QueryCacheItems, flagUsage["query-cache-items"])
	fs.IntVar(&c.JoinCacheItems, "join-cache-items", c.JoinCacheItems, flagUsage["join-cache-items"])
	fs.IntVar(&c.IdSetCacheItems, "idset-cache-items", c.IdSetCacheItems, flagUsage["idset-cache-items"])
}

// Validate checks the invariants BindFlags/LoadFile cannot express
// declaratively: a secure server needs a certs directory.
func (c *Config) Validate() error {
	if !c.Insecure && c.CertsDir == "" {
		return kvxerror.Paramsf("certs directory is required when insecure=false")
	}
	if c.ListenAddr == "" {
		return kvxerror.Paramsf("listen_addr must not be empty")
	}
	return nil
}
