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

package serverconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/kvindex/kvindex/kvxerror"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kvindex.toml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr = \"0.0.0.0:9000\"\nstorage_dir = \"/data/kvindex\"\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
	require.Equal(t, "/data/kvindex", cfg.StorageDir)
	// fields absent from the file keep Default's values.
	require.Equal(t, Default().HTTPAddr, cfg.HTTPAddr)
	require.Equal(t, Default().QueryCacheItems, cfg.QueryCacheItems)
}

func TestLoadFileMissingIsParamsError(t *testing.T) {
	_, err := LoadFile("/nonexistent/kvindex.toml")
	require.True(t, kvxerror.Is(err, kvxerror.Params))
}

func TestValidateRequiresCertsWhenSecure(t *testing.T) {
	cfg := Default()
	cfg.Insecure = false
	err := cfg.Validate()
	require.True(t, kvxerror.Is(err, kvxerror.Params))

	cfg.CertsDir = "/etc/kvindex/certs"
	require.NoError(t, cfg.Validate())
}

func TestBindFlagsOverridesFileValue(t *testing.T) {
	cfg := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)

	require.NoError(t, fs.Parse([]string{"--addr=10.0.0.5:6534", "--query-cache-items=2048"}))
	require.Equal(t, "10.0.0.5:6534", cfg.ListenAddr)
	require.Equal(t, 2048, cfg.QueryCacheItems)
	// untouched flags keep the pre-parse (default) value.
	require.Equal(t, Default().HTTPAddr, cfg.HTTPAddr)
}
