// Copyright 2016 The Cockroach Authors.
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
//
// Author: Peter Mattis (peter@cockroachlabs.com)

package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kvindex/kvindex/log"
	"github.com/kvindex/kvindex/registry"
	"github.com/kvindex/kvindex/restapi"
	"github.com/kvindex/kvindex/rpcserver"
	"github.com/kvindex/kvindex/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "start a kvindex server",
	Long: `
	Starts a kvindex server: opens (or creates) a Pebble-backed storage
	directory, recovers any namespace it finds, opens every namespace
	named by a --schema file, and serves the REST gateway and the
	binary RPC listener until interrupted.
	`,
	SilenceUsage: true,
	RunE:         runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg := cliContext.Config
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	engine, err := storage.OpenPebble(cfg.StorageDir)
	if err != nil {
		return err
	}
	defer engine.Close()

	reg := registry.New(storage.NewWALFactory(engine))
	if err := recoverNamespaces(reg, engine); err != nil {
		return err
	}

	if cliContext.schemaPath != "" {
		if err := openSchemas(reg, cliContext.schemaPath); err != nil {
			return err
		}
	}

	log.Infof(ctx, "kvindex starting: addr=%s http-addr=%s storage-dir=%s",
		cfg.ListenAddr, cfg.HTTPAddr, cfg.StorageDir)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: restapi.NewServer(reg)}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf(ctx, "REST gateway stopped: %v", err)
		}
	}()

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return err
	}
	grpcSrv := rpcserver.NewGRPCServer(rpcserver.New(reg, cfg.ListenAddr))
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			log.Errorf(ctx, "RPC listener stopped: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Infof(ctx, "kvindex shutting down")
	grpcSrv.GracefulStop()
	return httpSrv.Shutdown(ctx)
}

// openSchemas loads every ".yaml"/".yml" file directly under path (or
// path itself, if it names a single file) as a nsdef.NewYAML namespace
// definition and opens it on reg, per spec.md §10.3's "the CLI/embedded
// server opens the namespaces named by the schema directory at
// startup" bring-up sequence.
func openSchemas(reg *registry.Registry, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	var files []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
	} else {
		files = []string{path}
	}

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		def, err := namespaceDefFromYAML(data)
		if err != nil {
			return fmt.Errorf("loading schema %s: %w", f, err)
		}
		if _, err := reg.OpenNamespace(def); err != nil {
			return fmt.Errorf("opening namespace from %s: %w", f, err)
		}
	}
	return nil
}
