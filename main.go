// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70
//
// Seymour - Screen Masking Controller Client
//
// A CLI tool for querying and driving Seymour motorized screen masking
// controllers over RS-232 or a WebSocket serial bridge.

package main

import (
	"os"

	"github.com/johncarey70/seymour/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
