package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/Lazizjon-web-dev/medchain/cmd/flags"
	"github.com/Lazizjon-web-dev/medchain/httpserver"
	"github.com/Lazizjon-web-dev/medchain/interfaces"
	"github.com/Lazizjon-web-dev/medchain/keymgmt"
	"github.com/Lazizjon-web-dev/medchain/ledger"
	"github.com/Lazizjon-web-dev/medchain/storage"
)

var serverFlags = append([]cli.Flag{
	flags.ListenAddrFlag,
	flags.MetricsAddrFlag,
	flags.PprofFlag,
	flags.DrainSecondsFlag,
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:  "medchain-server",
		Usage: "Serve the encrypted medical record API",
		Flags: serverFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			storageURIs := cCtx.StringSlice(flags.StorageFlag.Name)
			locations := make([]interfaces.StorageBackendLocation, 0, len(storageURIs))
			for _, uri := range storageURIs {
				locations = append(locations, interfaces.StorageBackendLocation(uri))
			}

			blobs, err := storage.NewFactory(logger).CreateMultiBackend(locations)
			if err != nil {
				logger.Error("Failed to create storage backends", "err", err)
				return err
			}
			logger.Info("Storage configured", "location", blobs.LocationURI())

			var authLedger interfaces.AuthorizationLedger
			if ledgerFile := cCtx.String(flags.LedgerFileFlag.Name); ledgerFile != "" {
				authLedger, err = ledger.NewFileLedger(ledgerFile, logger)
				if err != nil {
					logger.Error("Failed to open ledger file", "err", err)
					return err
				}
				logger.Info("Using file-backed ledger", "path", ledgerFile)
			} else {
				authLedger = ledger.NewInMemoryLedger(logger)
				logger.Warn("Using in-memory ledger, state is lost on shutdown")
			}

			service := keymgmt.New(authLedger, blobs, logger)
			handler := httpserver.NewHandler(service, logger)

			server, err := httpserver.New(flags.ConfigureServer(cCtx, logger), handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
