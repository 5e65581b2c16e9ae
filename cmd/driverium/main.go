// Command driverium resolves and provisions the ChromeDriver binary for a
// given Chrome version, printing the driver path on stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/driverium/driverium"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("driverium %s\n", Version)
		return
	}

	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("driverium", flag.ContinueOnError)
	browserVersion := flags.String("browser-version", "", "dotted Chrome version to provision a driver for (required)")
	downloadDir := flags.String("dir", "", "download directory (default: current working directory)")
	progress := flags.Bool("progress", false, "report download progress and log resolution steps")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *browserVersion == "" {
		return fmt.Errorf("usage: driverium -browser-version <dotted version> [-dir <path>] [-progress]")
	}

	logger := zerolog.Nop()
	if *progress {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	d, err := driverium.New(driverium.Config{
		Version:     *browserVersion,
		DownloadDir: *downloadDir,
		Progress:    *progress,
		Logger:      &logger,
	})
	if err != nil {
		return err
	}

	path, err := d.GetDriver(context.Background())
	if err != nil {
		return err
	}

	fmt.Println(path)
	return nil
}
