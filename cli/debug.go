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
// Author: Ben Darnell

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kvindex/kvindex/storage"
)

var debugKeysCmd = &cobra.Command{
	Use:   "keys <storage-dir>",
	Short: "dump every key in a storage directory",
	Long: `
  Pretty-prints every key an on-disk Pebble store holds, across every
  namespace it backs.
`,
	RunE: runDebugKeys,
}

func openStore(cmd *cobra.Command, args []string) (storage.Engine, error) {
	if len(args) != 1 {
		return nil, errors.New("one argument is required")
	}
	return storage.OpenPebble(args[0])
}

func runDebugKeys(cmd *cobra.Command, args []string) error {
	db, err := openStore(cmd, args)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.IterateWithPrefix(nil, func(key, _ []byte) (bool, error) {
		fmt.Printf("%q\n", key)
		return true, nil
	})
}

var debugItemsCmd = &cobra.Command{
	Use:   "items <storage-dir> <namespace>",
	Short: "dump every persisted item of one namespace",
	Long: `
  Iterates a namespace's "I:" key range directly against the storage
  engine, without recovering it into a namespace.Namespace first — a
  raw view useful when a namespace's own metadata record is itself in
  question.
`,
	RunE: runDebugItems,
}

func runDebugItems(cmd *cobra.Command, args []string) error {
	if len(args) != 2 {
		mustUsage(cmd)
		return errors.New("expected <storage-dir> <namespace>")
	}
	db, err := storage.OpenPebble(args[0])
	if err != nil {
		return err
	}
	defer db.Close()

	ns := args[1]
	return db.IterateWithPrefix(storage.ItemPrefix(ns), func(key, value []byte) (bool, error) {
		rowID, err := storage.RowIDFromItemKey(ns, key)
		if err != nil {
			return false, err
		}
		fmt.Printf("%d: %s\n", rowID, value)
		return true, nil
	})
}

var debugCmds = []*cobra.Command{
	debugKeysCmd,
	debugItemsCmd,
}

var debugCmd = &cobra.Command{
	Use:   "debug [command]",
	Short: "debugging commands",
	Long: `Various commands for inspecting the raw contents of a storage
  directory, useful for diagnosing a namespace that won't recover.
`,
	Run: func(cmd *cobra.Command, args []string) {
		mustUsage(cmd)
	},
}

func init() {
	debugCmd.AddCommand(debugCmds...)
}
