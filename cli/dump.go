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
// permissions and limitations under the License. See the AUTHORS file
// for names of contributors.
//
// Author: Daniel Harrison (daniel.harrison@gmail.com)

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <namespace> <file>",
	Short: "dump a namespace to a newline-delimited JSON file",
	Long:  "Writes every item of <namespace> to <file>, one JSON document per line.",
	RunE:  runDump,
}

func runDump(cmd *cobra.Command, args []string) error {
	if len(args) != 2 {
		mustUsage(cmd)
		return errors.New("expected <namespace> <file>")
	}
	ns, path := args[0], args[1]

	conn, err := dial(cliContext.dsn)
	if err != nil {
		return err
	}
	defer conn.Close()

	mc, ok := conn.(mutableConn)
	if !ok {
		return fmt.Errorf("dump requires a builtin:// DSN, got %q", cliContext.dsn)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	count := 0
	err = mc.ForEach(context.Background(), ns, func(doc []byte) error {
		if _, err := w.Write(doc); err != nil {
			return err
		}
		count++
		return w.WriteByte('\n')
	})
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("Dumped %d items from %s to %s\n", count, ns, path)
	return nil
}

var restoreCmd = &cobra.Command{
	Use:   "restore <namespace> <file>",
	Short: "restore a namespace from a newline-delimited JSON file",
	Long:  "Inserts every JSON document in <file> (one per line, as produced by dump) into <namespace>.",
	RunE:  runRestore,
}

func runRestore(cmd *cobra.Command, args []string) error {
	if len(args) != 2 {
		mustUsage(cmd)
		return errors.New("expected <namespace> <file>")
	}
	ns, path := args[0], args[1]

	conn, err := dial(cliContext.dsn)
	if err != nil {
		return err
	}
	defer conn.Close()

	mc, ok := conn.(mutableConn)
	if !ok {
		return fmt.Errorf("restore requires a builtin:// DSN, got %q", cliContext.dsn)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx := context.Background()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	count := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		doc := append([]byte(nil), line...)
		if _, err := mc.Insert(ctx, ns, doc); err != nil {
			return fmt.Errorf("restoring line %d: %w", count+1, err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("Restored %d items into %s from %s\n", count, ns, path)
	return nil
}
