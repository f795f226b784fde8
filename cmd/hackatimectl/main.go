// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

// Command hackatimectl runs sync passes and apportionment from a shell.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shiba-arcade/hackatime-sync/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.NewRootCommand(cli.Options{}).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
