// Command mockdaq generates synthetic DAQ samples into a SQLite store,
// inspects and exports them, and replays them to a collector over USB serial
// or TCP, or streams freshly generated samples over a WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/mockdaq/internal/version"
)

const defaultDBPath = "data_acquisition.db"

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout)
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errUsage):
		stop()
		os.Exit(2)
	default:
		log.Fatalf("mockdaq: %v", err)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 1 {
		printUsage(out)
		return errUsage
	}

	command, rest := args[0], args[1:]
	switch command {
	case "generate":
		return runGenerate(ctx, rest, out)
	case "show":
		return runShow(ctx, rest, out)
	case "export":
		return runExport(ctx, rest, out)
	case "replay":
		return runReplay(ctx, rest, out)
	case "live":
		return runLive(ctx, rest, out)
	case "migrate":
		return runMigrate(rest, out)
	case "version":
		fmt.Fprintln(out, version.String())
		return nil
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		fmt.Fprintf(out, "Unknown command: %s\n\n", command)
		printUsage(out)
		return errUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `mockdaq - synthetic DAQ data harness

Usage: mockdaq <command> [options]

Commands:
  generate   Write synthetic samples into the database
  show       Print stored tables
  export     Write one CSV per populated table
  replay     Stream stored samples to the collector at their recorded rate
  live       Generate samples continuously and stream them over a WebSocket
  migrate    Apply or inspect the database schema (up|down|version)
  version    Show build information
  help       Show this help message

Run 'mockdaq <command> -h' for command options.

Examples:
  mockdaq generate -n 1000 -interval 10ms -lat 37.77 -lon -122.42
  mockdaq replay -prefer wifi -host 192.168.4.1 -report timing.html
  mockdaq replay -prefer usb -fallback=false -debug-listen localhost:8081
  mockdaq live -addr ws://192.168.4.1:8080/ws -interval 100ms
`)
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

// setFlags returns the names of the flags given on the command line.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}
