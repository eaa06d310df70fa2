// Package main is the admin command line for reviewing form submissions.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/clc-ministry/forms-backend/internal/tools/admincli"
)

func main() {
	cfg, err := admincli.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := admincli.Run(ctx, cfg, admincli.IO{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}); err != nil {
		stop()
		exitf("Error: %v", err)
	}
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
