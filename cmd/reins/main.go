package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"reins/internal/audit"
	"reins/internal/chat"
	"reins/internal/client"
	"reins/internal/config"
	"reins/internal/logging"
	"reins/internal/protocol"
	"reins/internal/session"
	"reins/internal/transcript"
	"reins/internal/tui"
	"reins/internal/upload"
)

const version = "v0.1.0"

func main() {
	if err := execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "reins: %v\n", err)
		os.Exit(1)
	}
}

func execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string
	var logLevel string

	cmd := &cobra.Command{
		Use:   "reins",
		Short: "reins is a confirmation-gated client for a remote agent host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.LoadOptions{Path: strings.TrimSpace(configPath)})
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, err := buildLogger(cfg, logLevel)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			hostSettings, err := cfg.HostSettings()
			if err != nil {
				return fmt.Errorf("resolve host settings: %w", err)
			}
			remote, err := client.New(client.Config{
				BaseURL:        hostSettings.BaseURL,
				APIToken:       hostSettings.APIToken,
				RequestTimeout: hostSettings.RequestTimeout,
				Logger:         logger,
			})
			if err != nil {
				return fmt.Errorf("create host client: %w", err)
			}

			recorder, closeRecorder := buildRecorder(cfg, logger)
			defer closeRecorder()

			store, err := transcript.NewStore(cfg.Transcript.Dir)
			if err != nil {
				return fmt.Errorf("create transcript store: %w", err)
			}

			runner, err := chat.New(chat.Config{
				Host:       chat.HostClient{Client: remote},
				Session:    session.New(""),
				Audit:      recorder,
				Transcript: store,
				Logger:     logger,
				Params: buildParams(cfg),
			})
			if err != nil {
				return fmt.Errorf("create runner: %w", err)
			}

			uploadSettings, err := cfg.UploadSettings()
			if err != nil {
				return fmt.Errorf("resolve upload settings: %w", err)
			}

			app := tui.NewApp(tui.AppConfig{
				Version:       version,
				ModelName:     cfg.Model.Name,
				ThemeName:     cfg.TUI.Theme,
				ShowCountdown: cfg.TUI.ShowCountdown,
				Runner:        runner,
				Remote:        remote,
				Upload: upload.Config{
					InitialDelay: uploadSettings.SettleDelay,
					BaseDelay:    uploadSettings.BaseDelay,
					MaxAttempts:  uploadSettings.MaxAttempts,
				},
			})

			program := tea.NewProgram(app, tea.WithAltScreen())
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("run tui: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.AddCommand(newPolicyCmd())
	return cmd
}

func buildParams(cfg config.Config) protocol.ModelParams {
	params := protocol.ModelParams{
		Model:     cfg.Model.Name,
		MaxTokens: cfg.Model.MaxTokens,
	}
	if cfg.Model.Temperature > 0 {
		temp := cfg.Model.Temperature
		params.Temperature = &temp
	}
	return params
}

func buildLogger(cfg config.Config, level string) (*zap.Logger, error) {
	logPath := filepath.Join(filepath.Dir(cfg.Audit.JournalPath), "reins.log")
	return logging.New(level, logPath)
}

// buildRecorder opens the bbolt journal, falling back to the log recorder
// when the journal cannot be opened.
func buildRecorder(cfg config.Config, logger *zap.Logger) (audit.Recorder, func()) {
	journal, err := audit.OpenJournal(cfg.Audit.JournalPath, logger)
	if err != nil {
		logger.Warn("audit journal unavailable, falling back to log recorder",
			zap.String("path", cfg.Audit.JournalPath),
			zap.Error(err),
		)
		return audit.NewLogRecorder(logger), func() {}
	}
	return journal, func() { _ = journal.Close() }
}
