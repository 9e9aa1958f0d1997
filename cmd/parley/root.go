package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	goruntime "runtime"
	"time"

	"github.com/parley-chat/parley/internal/client"
	"github.com/parley-chat/parley/internal/speech"
	"github.com/parley-chat/parley/internal/store"
	"github.com/spf13/cobra"
)

var (
	relayURL   string
	modelName  string
	timeout    time.Duration
	autoSpeak  bool
	ttsCommand string
	renderMD   bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Chat with a local language model through the parley relay",
	Long: `parley is a terminal chat client for a locally running language model.
It streams replies token by token through the parley relay, keeps
conversations in a local store, and can read replies aloud.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&relayURL, "relay", "http://localhost:8080", "base URL of the parley relay")
	rootCmd.PersistentFlags().StringVarP(&modelName, "model", "m", "llama3.2", "model to generate with")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall limit for one reply")
	rootCmd.PersistentFlags().BoolVar(&autoSpeak, "speak", false, "read replies aloud")
	rootCmd.PersistentFlags().StringVar(&ttsCommand, "tts", defaultTTSCommand(), "text-to-speech command")
	rootCmd.PersistentFlags().BoolVar(&renderMD, "render", false, "render replies as markdown instead of streaming raw tokens")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log diagnostics to stderr")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(modelsCmd)
}

func defaultTTSCommand() string {
	if goruntime.GOOS == "darwin" {
		return "say"
	}
	return "espeak"
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newClient() client.Client {
	return client.New(relayURL,
		client.WithTimeout(timeout),
		client.WithLogger(newLogger()),
	)
}

func newSpeaker() *speech.Speaker {
	return speech.NewSpeaker(speech.NewCommandSynthesizer(ttsCommand), newLogger())
}

// openStore opens the conversation database under the user's config
// directory, creating the directory on first use.
func openStore() (store.BoltDB, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return store.BoltDB{}, fmt.Errorf("error getting user config dir: %w", err)
	}
	dir := filepath.Join(cfgDir, "parley")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return store.BoltDB{}, fmt.Errorf("error creating config directory: %w", err)
	}
	return store.NewBoltDB(filepath.Join(dir, "conversations.db"))
}
