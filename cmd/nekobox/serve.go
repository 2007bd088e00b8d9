package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wyapx/nekobox/internal/adapter"
	"github.com/wyapx/nekobox/internal/config"
	"github.com/wyapx/nekobox/internal/logger"
)

var (
	configFile string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the adapter",
		Long:  "Connect to the client gateway and serve the Satori surface until interrupted",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				log.Fatalf("Failed to load config: %v", err)
			}

			logConfig := logger.Config{
				Level:        cfg.Logging.Level,
				File:         cfg.Logging.File,
				MaxSize:      cfg.Logging.MaxSize,
				MaxBackups:   cfg.Logging.MaxBackups,
				MaxAge:       cfg.Logging.MaxAge,
				Compress:     cfg.Logging.Compress,
				EnableStdout: cfg.Logging.EnableStdout,
			}
			if err := logger.InitLogger(logConfig); err != nil {
				log.Fatalf("Failed to initialize logger: %v", err)
			}

			logger.WithFields(logrus.Fields{
				"config_file": configFile,
				"uin":         cfg.Account.Uin,
				"listen":      cfg.Server.Listen,
			}).Info("starting adapter")

			a := adapter.New(cfg)

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			runErrChan := make(chan error, 1)
			go func() {
				runErrChan <- a.Run(context.Background())
			}()

			select {
			case sig := <-sigChan:
				logger.Infof("received signal %v, shutting down", sig)
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := a.Stop(ctx); err != nil {
					logger.Errorf("shutdown error: %v", err)
				}
				<-runErrChan
			case err := <-runErrChan:
				if err != nil {
					log.Fatalf("Adapter error: %v", err)
				}
			}

			logger.Info("adapter stopped")
		},
	}
)

func init() {
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "Configuration file path")
}
