package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"taleweaver/cmd/tale/story"
	"taleweaver/internal/config"
	"taleweaver/internal/logging"
	"taleweaver/internal/perception"
	"taleweaver/internal/store"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	debug     bool
	verbose   bool
	workspace string

	// Loaded in PersistentPreRunE, shared by all commands.
	appCfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tale",
	Short: "taleWEAVER - interactive fiction in your terminal",
	Long: `taleWEAVER is a turn-based interactive fiction engine for the terminal.

A language model narrates; you play. Replies are parsed into
speaker-labelled blocks so characters keep their own voices, hold the
floor during dialogue, and hand back to the narrator when you walk
away. Transcripts are saved per session and can be replayed later.

Run without arguments to start a new story.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ws := resolveWorkspace()

		cfg, err := config.Load(config.DefaultPath(ws))
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if debug {
			cfg.Logging.Debug = true
		}
		appCfg = cfg

		if err := logging.Initialize(ws, cfg.Logging.Debug || verbose); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		if err := logging.InitAudit(); err != nil {
			logging.BootError("audit log unavailable: %v", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStory()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the taleWEAVER version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", appCfg.Name, appCfg.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging and diagnostic transcript entries")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")

	rootCmd.AddCommand(sessionsCmd, versionCmd)
}

func main() {
	defer logging.CloseAll()
	defer logging.CloseAudit()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveWorkspace() string {
	if workspace != "" {
		return workspace
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// runStory boots the engine and hands the terminal to the interface.
func runStory() error {
	ws := resolveWorkspace()
	cfg := appCfg

	logging.Boot("Starting story session (model %s)", cfg.Model.Name)

	client := perception.NewClient(cfg, "")
	key, err := resolveValidKey(ws, client)
	if err != nil {
		return err
	}
	client.SetAPIKey(key)

	var transcripts *store.TranscriptStore
	if cfg.Storage.Enabled {
		transcripts, err = store.NewTranscriptStore(storagePath(cfg, ws))
		if err != nil {
			logging.BootError("transcript store unavailable: %v", err)
		} else {
			defer transcripts.Close()
		}
	}

	// Pick up .env edits mid-session so a rotated key does not require
	// a restart.
	watcher, err := config.NewCredentialWatcher(ws, func(key string, _ config.KeySource) {
		client.SetAPIKey(key)
	})
	if err != nil {
		logging.ConfigWarn("credential watcher unavailable: %v", err)
	} else if err := watcher.Start(context.Background()); err != nil {
		logging.ConfigWarn("credential watcher failed to start: %v", err)
	} else {
		defer watcher.Stop()
	}

	return story.Run(story.Config{
		Workspace: ws,
		App:       cfg,
		Client:    client,
		Store:     transcripts,
		Debug:     cfg.Logging.Debug,
	})
}

func storagePath(cfg *config.Config, ws string) string {
	path := cfg.Storage.DatabasePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(ws, path)
	}
	return path
}

// resolveValidKey finds a working API key: process environment first,
// then the workspace .env file, then an interactive prompt. A key
// accepted at the prompt is persisted to .env for next time.
func resolveValidKey(ws string, client *perception.Client) (string, error) {
	if key := config.NormalizeKey(os.Getenv(config.EnvKeyName)); key != "" {
		err := validateKey(client, key)
		if err == nil {
			return key, nil
		}
		fmt.Printf("%s from environment is invalid: %v\n", config.EnvKeyName, err)
		logging.BootError("environment key rejected: %v", err)
	}

	if vars, err := godotenv.Read(config.EnvFilePath(ws)); err == nil {
		if key := config.NormalizeKey(vars[config.EnvKeyName]); key != "" {
			err := validateKey(client, key)
			if err == nil {
				return key, nil
			}
			fmt.Printf("%s from .env is invalid: %v\n", config.EnvKeyName, err)
			logging.BootError(".env key rejected: %v", err)
		}
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("%s not found. Paste your API key and press Enter:\n", config.EnvKeyName)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("failed to read API key: %w", err)
		}

		key := config.NormalizeKey(line)
		if key == "" {
			fmt.Println("No API key provided. Please try again.")
			continue
		}
		if err := validateKey(client, key); err != nil {
			fmt.Printf("API key validation failed: %v\n", err)
			continue
		}

		if err := config.UpsertEnvKey(ws, key); err != nil {
			logging.BootError("failed to save API key to .env: %v", err)
		}
		return key, nil
	}
}

func validateKey(client *perception.Client, key string) error {
	fmt.Println("Validating OpenAI API key...")
	logging.Boot("Validating API key")
	return client.ValidateKey(context.Background(), key)
}
