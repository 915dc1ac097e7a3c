package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/saiset-co/b2b-portal/health"
	"github.com/saiset-co/b2b-portal/service"
)

// Options are the command line flags of the portal binary.
type Options struct {
	ConfigPath string `short:"c" long:"config" env:"PORTAL_CONFIG" default:"config.yml" description:"path to the YAML configuration"`
	Version    bool   `short:"v" long:"version" description:"print build information and exit"`
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "b2b-portal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	options := &Options{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return nil
		}
		return err
	}

	if options.Version {
		info := health.GetBuildInfo()
		_, err := fmt.Fprintf(out, "version=%s commit=%s built=%s go=%s\n", info.Version, info.GitCommit, info.BuildTime, info.GoVersion)
		return err
	}

	svc, err := service.NewService(ctx, options.ConfigPath)
	if err != nil {
		return err
	}

	return svc.Start()
}
