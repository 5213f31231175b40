package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"xray-pipeline/internal/config"
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.WithError(err).Error("xray failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:   "xray",
		Short: "Train and gate a binary chest X-ray image classifier",
		Long: `xray stages an image dataset, validates it, builds a base network and trains it.
The trained model is only written when train accuracy reaches the expected
accuracy and the train/test accuracy gap stays within the overfit threshold.`,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (YAML)")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "", "log format (json, text)")
	root.PersistentFlags().String("store", "", "run store driver (sqlite, postgres, none)")
	root.PersistentFlags().String("sqlite-path", "", "sqlite run store file")

	load := func(cmd *cobra.Command) (*config.Config, error) {
		cfg, err := config.Load(cfgPath, cmd.Flags())
		if err != nil {
			return nil, err
		}
		initLogger(cfg)
		return cfg, nil
	}

	root.AddCommand(newRunCmd(load), newServeCmd(load), newRunsCmd(load))
	return root
}

type configLoader func(cmd *cobra.Command) (*config.Config, error)

func initLogger(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Logger.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
