package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/speak/internal/cache"
)

var (
	cacheFormat string

	listLimit    int
	listProvider string
	listModel    string
	listSource   string
	listText     string
	listSession  string
	listSince    string

	searchLimit int
	assumeYes   bool

	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the audio cache",
		Long:  paragraph(fmt.Sprintf("\nInspect the %s of synthesized audio. Only remote provider output is cached.", keyword("audio cache"))),
		Example: paragraph(`speak cache stats
speak cache list --provider openai --since 7d
speak cache search "build finished"
speak cache show 3fa9c1
speak cache prune`),
		Args: cobra.NoArgs,
	}

	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Args:  cobra.NoArgs,
		RunE: withCache(func(cmd *cobra.Command, m *cache.Manager, _ []string) error {
			st, err := m.Stats()
			if err != nil {
				return err
			}
			if cacheFormat != "text" {
				return encode(cmd.OutOrStdout(), st)
			}
			printStats(cmd.OutOrStdout(), m.Dir(), st)
			return nil
		}),
	}

	cacheListCmd = &cobra.Command{
		Use:   "list",
		Short: "List cached entries, newest first",
		Args:  cobra.NoArgs,
		RunE: withCache(func(cmd *cobra.Command, m *cache.Manager, _ []string) error {
			f := cache.Filter{
				Text:      listText,
				Provider:  listProvider,
				Model:     listModel,
				Source:    listSource,
				SessionID: listSession,
				Limit:     listLimit,
			}
			if listSince != "" {
				d, err := cache.ParseTTL(listSince)
				if err != nil {
					return fmt.Errorf("--since: %w", err)
				}
				f.After = time.Now().Add(-d)
			}

			mds, err := m.Query(f)
			if err != nil {
				return err
			}
			return printEntries(cmd.OutOrStdout(), mds)
		}),
	}

	cacheSearchCmd = &cobra.Command{
		Use:   "search PATTERN",
		Short: "Fuzzy search cached texts",
		Args:  cobra.MinimumNArgs(1),
		RunE: withCache(func(cmd *cobra.Command, m *cache.Manager, args []string) error {
			mds, err := m.Search(strings.Join(args, " "), searchLimit)
			if err != nil {
				return err
			}
			return printEntries(cmd.OutOrStdout(), mds)
		}),
	}

	cacheShowCmd = &cobra.Command{
		Use:   "show KEY",
		Short: "Show one entry and its provenance",
		Long:  paragraph("\nShow one cache entry. Any unique prefix of the key is accepted."),
		Args:  cobra.ExactArgs(1),
		RunE: withCache(func(cmd *cobra.Command, m *cache.Manager, args []string) error {
			md, err := resolveKey(m, args[0])
			if err != nil {
				return err
			}
			if cacheFormat != "text" {
				return encode(cmd.OutOrStdout(), md)
			}
			printMetadata(cmd.OutOrStdout(), md)
			return nil
		}),
	}

	cacheRmCmd = &cobra.Command{
		Use:     "rm KEY...",
		Aliases: []string{"delete"},
		Short:   "Remove entries",
		Args:    cobra.MinimumNArgs(1),
		RunE: withCache(func(cmd *cobra.Command, m *cache.Manager, args []string) error {
			var errs []error
			for _, arg := range args {
				md, err := resolveKey(m, arg)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if err := m.Delete(md.Key); err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Removed", md.Key)
			}
			return errors.Join(errs...)
		}),
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached entry",
		Args:  cobra.NoArgs,
		RunE: withCache(func(cmd *cobra.Command, m *cache.Manager, _ []string) error {
			if !assumeYes && term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec
				fmt.Fprintf(cmd.ErrOrStderr(), "Remove every entry in %s? [y/N] ", m.Dir())
				answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
				if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
					fmt.Fprintln(cmd.ErrOrStderr(), "Aborted.")
					return nil
				}
			}
			if err := m.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
			return nil
		}),
	}

	cachePruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "Drop expired, missing and over-budget entries",
		Args:  cobra.NoArgs,
		RunE: withCache(func(cmd *cobra.Command, m *cache.Manager, _ []string) error {
			res, err := m.Prune()
			if err != nil {
				return err
			}
			if cacheFormat != "text" {
				return encode(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries (%d missing, %d expired, %d evicted), freed %s\n",
				res.Removed(), res.Missing, res.Expired, res.Evicted, humanize.IBytes(uint64(res.FreedBytes))) //nolint:gosec
			return nil
		}),
	}

	cachePathCmd = &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), cfg.Cache.Dir)
			return nil
		},
	}
)

// withCache opens the configured cache for the duration of a command.
func withCache(fn func(*cobra.Command, *cache.Manager, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		switch cacheFormat {
		case "text", "json", "yaml":
		default:
			return fmt.Errorf("unknown --format %q: use text, json or yaml", cacheFormat)
		}

		opts := cfg.CacheOptions()
		opts.Logger = log.Default()
		m, err := cache.New(opts)
		if err != nil {
			return err
		}
		defer func() {
			if err := m.Close(); err != nil {
				log.Warn("closing cache", "err", err)
			}
		}()
		return fn(cmd, m, args)
	}
}

// resolveKey finds the record whose key is, or uniquely starts with, prefix.
func resolveKey(m *cache.Manager, prefix string) (*cache.Metadata, error) {
	md, err := m.Lookup(prefix)
	if err == nil {
		return md, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		return nil, err
	}

	all, err := m.Query(cache.Filter{})
	if err != nil {
		return nil, err
	}
	var found *cache.Metadata
	for _, md := range all {
		if !strings.HasPrefix(md.Key, prefix) {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("key prefix %q is ambiguous", prefix)
		}
		found = md
	}
	if found == nil {
		return nil, fmt.Errorf("%s: %w", prefix, cache.ErrNotFound)
	}
	return found, nil
}

func encode(w io.Writer, v any) error {
	if cacheFormat == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStats(w io.Writer, dir string, st cache.Stats) {
	fmt.Fprintln(w, headingStyle.Render("Cache"))
	row(w, "Directory", dir)
	row(w, "Entries", humanize.Comma(st.Entries))
	size := humanize.IBytes(uint64(st.TotalSize)) //nolint:gosec
	if st.MaxSize > 0 {
		size += " of " + humanize.IBytes(uint64(st.MaxSize)) //nolint:gosec
	}
	row(w, "Size", size)
	if st.Entries > 0 {
		row(w, "Average size", humanize.IBytes(uint64(st.AverageSize)))
	}
	row(w, "TTL", cache.FormatTTL(st.TTL))
	row(w, "Hits", fmt.Sprintf("%d / %d lookups (%.1f%%)", st.Hits, st.Hits+st.Misses, st.HitRate*100))
	if !st.Earliest.IsZero() {
		row(w, "Oldest", humanize.Time(st.Earliest))
		row(w, "Newest", humanize.Time(st.Latest))
	}

	for _, h := range []struct {
		title  string
		counts map[string]int
	}{
		{"By provider", st.ByProvider},
		{"By model", st.ByModel},
		{"By source", st.BySource},
	} {
		if len(h.counts) == 0 {
			continue
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, headingStyle.Render(h.title))
		keys := make([]string, 0, len(h.counts))
		for k := range h.counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			label := k
			if label == "" {
				label = "(none)"
			}
			row(w, label, humanize.Comma(int64(h.counts[k])))
		}
	}
}

func row(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s %s\n", subtleStyle.Render(runewidth.FillRight(label+":", 14)), value)
}

const keyWidth = 12

func printEntries(w io.Writer, mds []*cache.Metadata) error {
	if cacheFormat != "text" {
		if mds == nil {
			mds = []*cache.Metadata{}
		}
		return encode(w, mds)
	}
	if len(mds) == 0 {
		fmt.Fprintln(w, subtleStyle.Render("No entries."))
		return nil
	}

	cols := []int{keyWidth, 14, 11, 9}
	header := []string{"KEY", "CREATED", "PROVIDER", "SIZE"}
	used := 0
	for _, c := range cols {
		used += c + 1
	}
	textWidth := max(terminalWidth(100)-used, 20)

	var b strings.Builder
	for i, h := range header {
		b.WriteString(runewidth.FillRight(h, cols[i]) + " ")
	}
	b.WriteString("TEXT")
	fmt.Fprintln(w, headingStyle.Render(b.String()))

	for _, md := range mds {
		key := md.Key
		if len(key) > keyWidth {
			key = key[:keyWidth]
		}
		fields := []string{
			key,
			humanize.Time(md.CreatedAt),
			md.Provider,
			humanize.IBytes(uint64(md.Size)), //nolint:gosec
		}
		b.Reset()
		for i, f := range fields {
			b.WriteString(runewidth.FillRight(truncate.StringWithTail(f, uint(cols[i]), "…"), cols[i]) + " ") //nolint:gosec
		}
		b.WriteString(preview(md.Text, textWidth))
		fmt.Fprintln(w, b.String())
	}
	return nil
}

// preview flattens text onto one line and truncates it to width cells.
func preview(text string, width int) string {
	flat := strings.Join(strings.Fields(text), " ")
	return truncate.StringWithTail(flat, uint(width), "…") //nolint:gosec
}

func printMetadata(w io.Writer, md *cache.Metadata) {
	fmt.Fprintln(w, headingStyle.Render(md.Key))
	row(w, "Provider", md.Provider)
	if md.Model != "" {
		row(w, "Model", md.Model)
	}
	if md.Voice != "" {
		row(w, "Voice", md.Voice)
	}
	if md.Rate > 0 {
		row(w, "Rate", fmt.Sprintf("%d wpm", md.Rate))
	}
	row(w, "Format", md.Format)
	row(w, "Size", humanize.IBytes(uint64(md.Size))) //nolint:gosec
	row(w, "File", md.FilePath)
	row(w, "Created", fmt.Sprintf("%s (%s)", md.CreatedAt.Format(time.RFC3339), humanize.Time(md.CreatedAt)))
	if md.Duration > 0 {
		row(w, "Synthesis", md.Duration.Round(time.Millisecond).String())
	}
	if !md.Success {
		row(w, "Error", md.ErrorMessage)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render("Provenance"))
	row(w, "Source", md.Source)
	row(w, "Session", md.SessionID)
	row(w, "PID", fmt.Sprint(md.PID))
	row(w, "Host", md.Hostname)
	row(w, "User", md.User)
	row(w, "Directory", md.WorkingDir)
	row(w, "Command", md.CommandLine)

	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render("Text"))
	fmt.Fprintln(w, paragraph(md.Text))
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cacheFormat, "format", "text", "output format (text, json, yaml)")

	cacheListCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "maximum entries to list (0 = all)")
	cacheListCmd.Flags().StringVar(&listProvider, "provider", "", "only entries from this provider")
	cacheListCmd.Flags().StringVar(&listModel, "model", "", "only entries from this model")
	cacheListCmd.Flags().StringVar(&listSource, "source", "", "only entries from this source (cli, library)")
	cacheListCmd.Flags().StringVar(&listText, "text", "", "only entries whose text contains this")
	cacheListCmd.Flags().StringVar(&listSession, "session", "", "only entries from this session id")
	cacheListCmd.Flags().StringVar(&listSince, "since", "", "only entries newer than this age (e.g. 12h, 7d)")

	cacheSearchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum results (0 = all)")

	cacheClearCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")

	cacheCmd.AddCommand(cacheStatsCmd, cacheListCmd, cacheSearchCmd, cacheShowCmd,
		cacheRmCmd, cacheClearCmd, cachePruneCmd, cachePathCmd)
}
