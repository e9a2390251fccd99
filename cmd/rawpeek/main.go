package main

import (
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // opt-in profiling endpoint
	"os"

	"github.com/urfave/cli/v2"

	"github.com/rawpeek/rawpeek"
)

func main() {
	app := &cli.App{
		Name:      "rawpeek",
		Usage:     "extract embedded preview JPEGs from camera RAW files",
		ArgsUsage: "INPUT_DIR [OUTPUT_DIR]",
		Description: `rawpeek walks INPUT_DIR for TIFF-derived RAW files (ARW, CR2, DNG, NEF,
...), pulls the largest embedded preview JPEG out of each, and writes it to
the mirrored location under OUTPUT_DIR (default: current directory) with the
extension replaced by .jpg. Only the IFD chain and the preview bytes of each
RAW file are ever read.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"j"},
				Usage:   "Maximum files processed at once",
				Value:   rawpeek.DefaultConcurrency,
			},
			&cli.StringSliceFlag{
				Name:    "ext",
				Aliases: []string{"e"},
				Usage:   "Additional RAW extension to recognize (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "no-soi-check",
				Usage: "Accept previews that do not begin with the JPEG SOI marker",
			},
			&cli.BoolFlag{
				Name:  "overwrite",
				Usage: "Replace existing output files instead of skipping them",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set the logging level [debug, info, warn, error]",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:   "pprof-addr",
				Usage:  "Serve pprof on this address",
				Hidden: true,
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cliCtx *cli.Context) error {
	if cliCtx.NArg() < 1 {
		return cli.Exit("missing INPUT_DIR argument", 2)
	}
	inputRoot := cliCtx.Args().Get(0)
	outputRoot := cliCtx.Args().Get(1)
	if outputRoot == "" {
		outputRoot = "."
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cliCtx.String("log-level"))); err != nil {
		return cli.Exit(fmt.Sprintf("invalid log level %q", cliCtx.String("log-level")), 2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if addr := cliCtx.String("pprof-addr"); addr != "" {
		go func() {
			logger.Info("pprof listening", "addr", addr)
			//nolint:gosec // profiling server, no timeouts needed
			if err := http.ListenAndServe(addr, nil); err != nil {
				logger.Warn("pprof server", "error", err)
			}
		}()
	}

	if err := os.MkdirAll(outputRoot, 0o750); err != nil {
		return cli.Exit(fmt.Sprintf("create output directory: %v", err), 1)
	}

	ex := rawpeek.NewExtractor(
		rawpeek.WithConcurrency(cliCtx.Int("concurrency")),
		rawpeek.WithExtensions(cliCtx.StringSlice("ext")...),
		rawpeek.WithSOICheck(!cliCtx.Bool("no-soi-check")),
		rawpeek.WithOverwrite(cliCtx.Bool("overwrite")),
		rawpeek.WithLogger(logger),
	)

	outcomes, err := ex.Run(cliCtx.Context, inputRoot, outputRoot)
	for _, o := range outcomes {
		if o.Err != nil {
			logger.Error("extract failed", "file", o.Rel, "error", o.Err)
		}
	}
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}
