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

package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

// getJSON fetches path from addr's REST gateway and decodes the
// response body into v, the client-side half of node.go's
// getJSON(cliContext.HTTPAddr, ...) calls.
func getJSON(addr, path string, v interface{}) error {
	scheme := "http"
	resp, err := http.Get(scheme + "://" + addr + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// mustUsage prints cmd's usage and exits with a non-zero status, the
// helper node.go/debug.go call when a command is invoked with the
// wrong number of positional arguments.
func mustUsage(cmd *cobra.Command) {
	if err := cmd.Usage(); err != nil {
		panic(err)
	}
	os.Exit(1)
}
