package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yungbote/coursetree-backend/internal/app"
	"github.com/yungbote/coursetree-backend/internal/data/db"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/workflow"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

const envPrefix = "TREECTL"

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgPath string

	root := &cobra.Command{
		Use:           "treectl",
		Short:         "Build course trees from a terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initViper(v, cfgPath)
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (yaml, json or toml)")
	root.PersistentFlags().String("checkpoint-backend", "sqlite", "memory, sqlite, postgres or redis")
	root.PersistentFlags().String("sqlite-path", "treectl.db", "SQLite file for sqlite checkpoints and books")
	root.PersistentFlags().String("log-mode", "production", "development or production")
	root.PersistentFlags().Bool("verbose", false, "print stage events to stderr")
	_ = v.BindPFlags(root.PersistentFlags())

	root.AddCommand(newRunCmd(v), newResumeCmd(v), newShowCmd(v))
	return root
}

// initViper applies flags over TREECTL_* env over the optional config file.
func initViper(v *viper.Viper, cfgPath string) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if cfgPath == "" {
		return nil
	}
	v.SetConfigFile(cfgPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", cfgPath, err)
	}
	return nil
}

// loadConfig starts from the server's environment config and overlays the CLI settings.
func loadConfig(v *viper.Viper, log *logger.Logger) app.Config {
	cfg := app.LoadConfig(log)
	backend := strings.ToLower(v.GetString("checkpoint-backend"))
	if backend != "" {
		cfg.CheckpointBackend = backend
	}
	switch cfg.CheckpointBackend {
	case app.CheckpointPostgres:
		cfg.DB.Driver = db.DriverPostgres
	case app.CheckpointSQLite:
		cfg.DB.Driver = db.DriverSQLite
	}
	if p := v.GetString("sqlite-path"); p != "" {
		cfg.DB.SQLitePath = p
	}
	return cfg
}

type session struct {
	log  *logger.Logger
	core *app.Core
}

func openCore(ctx context.Context, v *viper.Viper, stderr io.Writer) (*session, error) {
	log, err := logger.New(v.GetString("log-mode"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	var observer workflow.Observer
	if v.GetBool("verbose") {
		observer = workflow.ObserverFunc(func(_ context.Context, ev workflow.Event) {
			fmt.Fprintf(stderr, "[%s] %s\n", ev.At.Format("15:04:05"), ev.Stage)
		})
	}
	core, err := app.NewCore(ctx, log, loadConfig(v, log), nil, observer)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return &session{log: log, core: core}, nil
}

func (s *session) Close() {
	s.core.Close(context.Background())
	s.log.Sync()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
