package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/speak/internal/tts"
)

var providersCmd = &cobra.Command{
	Use:     "providers",
	Aliases: []string{"check"},
	Short:   "Check which providers are ready to speak",
	Long:    paragraph(fmt.Sprintf("\nReport which providers are %s. No network requests are made.", keyword("configured"))),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		results := tts.CheckProviders(tts.BuildEngines(cfg))
		printProviders(cmd.OutOrStdout(), results, cfg.DefaultProvider().String())
		return nil
	},
}

func printProviders(w io.Writer, results []tts.ValidationResult, requested string) {
	fmt.Fprintln(w, headingStyle.Render("Providers"))
	for _, r := range results {
		status := okStyle.Render("ready")
		if !r.Available {
			status = warnStyle.Render("not configured")
		}
		name := string(r.Provider)
		if name == requested {
			name += " (default)"
		}
		kind := "remote"
		if r.Local {
			kind = "local"
		}
		fmt.Fprintf(w, "  %-22s %s %s\n", name, subtleStyle.Render(fmt.Sprintf("%-7s", kind)), status)
	}

	for _, r := range results {
		if r.Available || r.Guidance == "" {
			continue
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, headingStyle.Render(string(r.Provider)))
		for _, line := range strings.Split(r.Guidance, "\n") {
			fmt.Fprintln(w, "  "+line)
		}
	}
}
