// Package main provides the entry point for the speak CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/speak/internal/config"
	"github.com/dgnsrekt/speak/internal/textproc"
	"github.com/dgnsrekt/speak/internal/tts"
	"github.com/dgnsrekt/speak/internal/ttypes"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile   string
	debug        bool
	provider     string
	voice        string
	rate         int
	priority     string
	interrupt    bool
	noCache      bool
	markdown     bool
	useClipboard bool
	output       string

	// defaultConfigFile is where `speak config` creates a config file
	defaultConfigFile string

	// cfg is resolved in PersistentPreRunE
	cfg config.Config

	rootCmd = &cobra.Command{
		Use:   "speak [TEXT...]",
		Short: "Speak text through the system voice or a remote provider",
		Long: paragraph(
			fmt.Sprintf("\nSpeak text aloud. Remote audio is %s; when a provider fails the next one takes over.", keyword("cached on disk")),
		),
		Example: paragraph(`speak "Hello there"
speak --provider openai --voice nova "Build finished"
git log -1 --format=%s | speak
speak --markdown < README.md
speak --output hello.mp3 -p elevenlabs "Hello"`),
		Args:             cobra.ArbitraryArgs,
		SilenceErrors:    true,
		SilenceUsage:     true,
		TraverseChildren: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

// validateOptions resolves the configuration from viper, the environment
// and the keychain.
func validateOptions(cmd *cobra.Command) error {
	if debug {
		enableDebugLog()
	}

	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	var err error
	cfg, err = config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	config.LoadEnvFiles()
	cfg.Credentials, err = config.LoadCredentials(nil, log.Default())
	if err != nil {
		return err
	}

	if noCache {
		cfg.Cache.Enabled = false
	}

	if cmd.Flags().Changed("rate") && rate < 0 {
		return fmt.Errorf("--rate must be non-negative, got %d", rate)
	}
	return nil
}

// stdinIsPipe reports whether text is being piped in.
func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// readText takes the text from the arguments, the clipboard or stdin, in
// that order.
func readText(args []string) (string, error) {
	var text string
	switch {
	case len(args) > 0:
		text = strings.Join(args, " ")
	case useClipboard:
		s, err := clipboard.ReadAll()
		if err != nil {
			return "", fmt.Errorf("unable to read clipboard: %w", err)
		}
		text = s
	default:
		pipe, err := stdinIsPipe()
		if err != nil {
			return "", err
		}
		if !pipe {
			return "", errors.New("nothing to speak: pass TEXT, use --clipboard or pipe text on stdin")
		}
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("unable to read stdin: %w", err)
		}
		text = string(b)
	}

	if markdown {
		plain, err := textproc.FromMarkdown(text, textproc.Options{})
		if err != nil {
			return "", err
		}
		text = plain
	}

	if strings.TrimSpace(text) == "" {
		return "", tts.ErrEmptyText
	}
	return text, nil
}

func speakOptions() (tts.SpeakOptions, error) {
	opts := tts.SpeakOptions{
		Interrupt: interrupt,
		Voice:     voice,
		Rate:      rate,
		Source:    ttypes.SourceCLI,
	}

	p, err := ttypes.ParsePriority(priority)
	if err != nil {
		return opts, err
	}
	opts.Priority = p

	if provider != "" {
		n, err := ttypes.ParseName(provider)
		if err != nil {
			return opts, err
		}
		opts.Provider = n
	}
	return opts, nil
}

func newController() (*tts.Controller, error) {
	prov := tts.NewProvenance(ttypes.SourceCLI)
	return tts.NewController(tts.Options{
		Config:     cfg,
		Provenance: &prov,
		Logger:     log.Default(),
	})
}

func execute(cmd *cobra.Command, args []string) error {
	text, err := readText(args)
	if err != nil {
		return err
	}
	opts, err := speakOptions()
	if err != nil {
		return err
	}

	ctrl, err := newController()
	if err != nil {
		return err
	}
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if output != "" {
		return writeOutput(ctx, ctrl, text, opts)
	}

	if err := ctrl.Speak(ctx, text, opts); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return nil
}

// writeOutput synthesizes text and writes the audio to the --output path
// ("-" for stdout) instead of playing it.
func writeOutput(ctx context.Context, ctrl *tts.Controller, text string, opts tts.SpeakOptions) error {
	res, err := ctrl.Synthesize(ctx, ttypes.SpeechRequest{
		Text:     text,
		Provider: opts.Provider,
		Voice:    opts.Voice,
		Rate:     opts.Rate,
		Source:   opts.Source,
	})
	if err != nil {
		return err
	}

	if output == "-" {
		_, err := os.Stdout.Write(res.Data)
		return err
	}
	if err := os.WriteFile(output, res.Data, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("unable to write audio: %w", err)
	}

	log.Info("wrote audio", "path", output, "provider", res.Provider, "format", res.Format,
		"size", humanize.IBytes(uint64(len(res.Data))), "cached", res.CacheHit)
	return nil
}

// describeError renders the final error for the terminal.
func describeError(err error) string {
	var exhausted *tts.AllProvidersExhaustedError
	if !errors.As(err, &exhausted) {
		return ttypes.DescribeError(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "No provider could speak the text (requested %s):\n", exhausted.Requested)
	for _, a := range exhausted.Attempts {
		fmt.Fprintf(&b, "  %s: %s\n", a.Provider, ttypes.DescribeError(a.Err))
	}
	b.WriteString("Run 'speak providers' to check your setup.")
	return b.String()
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle(describeError(err)))
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	config.SetDefaults(viper.GetViper())
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log debug output to stderr")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "do not read or write the result cache")

	rootCmd.Flags().StringVarP(&provider, "provider", "p", "", "provider to try first (system, openai, elevenlabs, google)")
	rootCmd.Flags().StringVar(&voice, "voice", "", "voice for the requested provider")
	rootCmd.Flags().IntVarP(&rate, "rate", "r", 0, "speech rate in words per minute (0 = provider default)")
	rootCmd.Flags().StringVar(&priority, "priority", "normal", "queue priority (high, normal, low)")
	rootCmd.Flags().BoolVarP(&interrupt, "interrupt", "i", false, "stop the current playback first")
	rootCmd.Flags().BoolVarP(&markdown, "markdown", "m", false, "strip markdown syntax before speaking")
	rootCmd.Flags().BoolVarP(&useClipboard, "clipboard", "c", false, "speak the clipboard contents")
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "write the audio to a file (- for stdout) instead of playing it")

	// Config bindings
	_ = viper.BindPFlag("provider", rootCmd.Flags().Lookup("provider"))

	rootCmd.AddCommand(configCmd, cacheCmd, providersCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	dirs, err := config.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("speak")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("speak")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	defaultConfigFile = filepath.Join(dirs[0], "speak.yml")
}
