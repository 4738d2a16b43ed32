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
//
// Author: Nathan VanBenschoten (nvanbenschoten@gmail.com)

// Package cliflags names the flags cmd/kvindex's cobra commands bind,
// kept as a separate package from cli itself so a flag name can be
// referenced without pulling in the whole command tree.
package cliflags

// Flag names bound by the cli package's commands. DSN, Output and
// MaxResults are shared by several commands; Execute, File and Schema
// are each bound by a single command.
const (
	DSN        = "dsn"
	Execute    = "execute"
	File       = "file"
	Output     = "output"
	MaxResults = "max-results"
	Schema     = "schema"
)
