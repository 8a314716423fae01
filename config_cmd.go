package main

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/speak/internal/config"
	"github.com/dgnsrekt/speak/internal/ttypes"
)

var (
	deleteKey bool

	configCmd = &cobra.Command{
		Use:     "config",
		Hidden:  false,
		Short:   "Edit the speak config file",
		Long:    paragraph(fmt.Sprintf("\n%s the speak config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
		Example: paragraph("speak config\nspeak config --config path/to/config.yml"),
		Args:    cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(*cobra.Command, []string) error {
			if err := ensureConfigFile(); err != nil {
				return err
			}

			c, err := editor.Cmd("Speak", configFile)
			if err != nil {
				return fmt.Errorf("unable to set config file: %w", err)
			}
			c.Stdin = os.Stdin
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			if err := c.Run(); err != nil {
				return fmt.Errorf("unable to run command: %w", err)
			}

			fmt.Println("Wrote config file to:", configFile)
			return nil
		},
	}

	configKeyCmd = &cobra.Command{
		Use:   "key PROVIDER",
		Short: "Store a provider API key in the OS keychain",
		Long: paragraph(fmt.Sprintf("\nStore the API key of %s in the OS keychain. The key is read from the terminal without echo, or from stdin when piped. Environment variables still take precedence.",
			keyword("openai, elevenlabs or google"))),
		Example: paragraph("speak config key openai\necho \"$KEY\" | speak config key google\nspeak config key elevenlabs --delete"),
		Args:    cobra.ExactArgs(1),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := ttypes.ParseName(args[0])
			if err != nil {
				return err
			}

			if deleteKey {
				if err := config.DeleteCredential(name); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Removed key for", name)
				return nil
			}

			secret, err := readSecret(cmd, name)
			if err != nil {
				return err
			}
			if err := config.StoreCredential(name, secret); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Stored key for", name, "in the keychain")
			return nil
		},
	}
)

// readSecret prompts for a key without echo, or reads one line from a pipe.
func readSecret(cmd *cobra.Command, name ttypes.Name) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec
	if term.IsTerminal(fd) {
		fmt.Fprintf(cmd.ErrOrStderr(), "API key for %s: ", name)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("unable to read key: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("unable to read key from stdin: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
	}
	if configFile == "" {
		configFile = defaultConfigFile
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(config.Template); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}

func init() {
	configKeyCmd.Flags().BoolVar(&deleteKey, "delete", false, "remove the stored key instead")
	configCmd.AddCommand(configKeyCmd)
}
