// Command cel-cli is the CEL engine's status CLI: it loads the same
// configuration file the host platform would, boots an engine against
// it, and prints what that configuration resolves to. It never talks to
// a running process over a socket -- the engine has no network surface
// -- so "querying status" means constructing the engine and reading it
// back, the same read APIs any embedder would call.
package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"celengine/internal/config"
	"celengine/internal/engine"
	"celengine/internal/event"
)

var (
	configPath string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cel",
		Short: "Inspect Channel Event Logging engine configuration and status",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "cel.conf", "path to the CEL configuration file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "include engine activity counters")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show engine state",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print enabled state, tracked events, tracked apps, and registered backends",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}

	showCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(showCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	eng := engine.New()

	f, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("cel: opening %s: %w", configPath, err)
	}
	defer f.Close()

	if err := eng.Reload(f); err != nil {
		return fmt.Errorf("cel: loading %s: %w", configPath, err)
	}

	cfg := eng.GetConfig()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "enabled:\t%v\n", cfg.Enabled)
	fmt.Fprintf(w, "dateformat:\t%s\n", orNone(cfg.DateFormat))
	fmt.Fprintf(w, "tracked events:\t%s\n", trackedEventNames(cfg))
	fmt.Fprintf(w, "tracked apps:\t%s\n", trackedAppNames(cfg))
	fmt.Fprintf(w, "backends:\t%s\n", backendNames(eng))
	w.Flush()

	if verbose {
		printMetrics(eng)
	}

	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func trackedEventNames(cfg *config.Config) string {
	var names []string
	for _, k := range event.Kinds() {
		if cfg.Tracks(k) {
			names = append(names, event.Name(k))
		}
	}
	if len(names) == 0 {
		return "(none)"
	}
	sort.Strings(names)
	return joinComma(names)
}

func trackedAppNames(cfg *config.Config) string {
	var names []string
	for name := range cfg.TrackedApps {
		names = append(names, name)
	}
	if len(names) == 0 {
		return "(none)"
	}
	sort.Strings(names)
	return joinComma(names)
}

func backendNames(eng *engine.Engine) string {
	names := eng.BackendNames()
	if len(names) == 0 {
		return "(none)"
	}
	sort.Strings(names)
	return joinComma(names)
}

func joinComma(ss []string) string {
	out := ss[0]
	for _, s := range ss[1:] {
		out += ", " + s
	}
	return out
}

func printMetrics(eng *engine.Engine) {
	snap := eng.Metrics().Snapshot()
	fmt.Println()
	fmt.Println("emitted by kind:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	kinds := make([]string, 0, len(snap.EmittedByKind))
	for k := range snap.EmittedByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %s:\t%d\n", k, snap.EmittedByKind[k])
	}
	fmt.Fprintf(w, "dropped by filter:\t%d\n", snap.DroppedFilter)
	w.Flush()
}
