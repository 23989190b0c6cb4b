// Command execution for CLI commands.
//
// Information Hiding:
// - Registry loading and provider resolution hidden
// - Dispatcher setup hidden
// - Output formatting hidden

package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/omni-cli/omni/config"
	"github.com/omni-cli/omni/llm"
	"github.com/omni-cli/omni/storage"
)

// Options holds CLI execution options.
type Options struct {
	Provider  string
	Verbose   bool
	DBPath    string
	NoHistory bool
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{
		DBPath: defaultDBPath(),
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".omni/history.db"
	}
	return home + "/.config/omni/history.db"
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func newDispatcher(opts Options) *llm.Dispatcher {
	return llm.NewDispatcher(llm.WithLogger(newLogger(opts.Verbose)))
}

// Ask resolves a provider from the registry, sends the prompt and
// prints the answer. The result is appended to ask history unless
// disabled.
func Ask(ctx context.Context, req llm.AskRequest, opts Options) error {
	reg, err := config.Load()
	if err != nil {
		return err
	}
	cfg, err := reg.Resolve(opts.Provider)
	if err != nil {
		return err
	}

	d := newDispatcher(opts)

	start := time.Now()
	result, err := d.RunAsk(ctx, cfg, req)
	if err != nil {
		return err
	}
	latency := time.Since(start)

	fmt.Println(result.Text)
	if opts.Verbose && result.FinishReason != "" {
		fmt.Fprintf(os.Stderr, "(finish reason: %s, %s)\n", result.FinishReason, latency.Round(time.Millisecond))
	}

	if opts.NoHistory {
		return nil
	}
	if err := appendHistory(ctx, cfg, req, result, latency, opts); err != nil {
		// History is best-effort; a broken database must not turn a
		// successful answer into a failure.
		fmt.Fprintf(os.Stderr, "Warning: failed to record history: %v\n", err)
	}
	return nil
}

func appendHistory(ctx context.Context, cfg llm.ProviderConfig, req llm.AskRequest, result llm.AskResult, latency time.Duration, opts Options) error {
	store, err := storage.OpenSqlite(opts.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	model := req.Model
	if model == "" {
		model = cfg.Model
	}
	return store.Append(ctx, storage.AskRecord{
		Provider:     cfg.Name,
		Family:       cfg.Family,
		Model:        model,
		Prompt:       req.Prompt,
		ResponseText: result.Text,
		FinishReason: result.FinishReason,
		LatencyMs:    latency.Milliseconds(),
	})
}

// Doctor checks reachability of one provider, or of every registered
// provider when none is named. It reports problems as output rather
// than failing.
func Doctor(ctx context.Context, opts Options) error {
	reg, err := config.Load()
	if err != nil {
		return err
	}

	var targets []llm.ProviderConfig
	if opts.Provider != "" {
		cfg, err := reg.Resolve(opts.Provider)
		if err != nil {
			return err
		}
		targets = append(targets, cfg)
	} else {
		for _, name := range reg.Names() {
			targets = append(targets, reg.Providers[name])
		}
	}
	if len(targets) == 0 {
		fmt.Println("No providers configured. Add one with 'omni config-add'.")
		return nil
	}

	d := newDispatcher(opts)
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tFAMILY\tCONFIDENCE\tREACHABLE\tSTATUS\tLATENCY\tERROR")
	for _, cfg := range targets {
		rep := d.RunDoctor(ctx, cfg)
		fmt.Fprintln(w, doctorRow(rep))
		if rep.Err != "" && opts.Verbose {
			fmt.Fprintf(os.Stderr, "%s: %s\n", rep.Provider, rep.Err)
		}
	}
	return w.Flush()
}

// doctorRow formats one report as a tab-separated table row. The error
// is part of the row (truncated) so a failing provider is diagnosable
// from the default output; --verbose prints it in full.
func doctorRow(rep llm.DoctorReport) string {
	status := "-"
	if rep.Status != 0 {
		status = fmt.Sprintf("%d", rep.Status)
	}
	reachable := "yes"
	if !rep.Reachable {
		reachable = "no"
	}
	errCol := "-"
	if rep.Err != "" {
		errCol = truncate(rep.Err, 60)
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s\t%s",
		rep.Provider, rep.Family, rep.Confidence, reachable, status, rep.Latency.Round(time.Millisecond), errCol)
}

// DetectURL runs family detection against a raw base URL without
// touching the registry.
func DetectURL(ctx context.Context, baseURL, apiKey string, opts Options) error {
	det := llm.NewDetector(llm.WithDetectorLogger(newLogger(opts.Verbose)))
	outcome := det.Detect(ctx, baseURL, apiKey, llm.FamilyUnknown)

	fmt.Printf("family:     %s\n", outcome.Family)
	fmt.Printf("confidence: %s\n", outcome.Confidence)
	if outcome.ProbeLatency > 0 {
		fmt.Printf("probe:      %s\n", outcome.ProbeLatency.Round(time.Millisecond))
	}
	return nil
}

// ListProviders prints the registered providers, marking the default.
func ListProviders(opts Options) error {
	reg, err := config.Load()
	if err != nil {
		return err
	}
	names := reg.Names()
	if len(names) == 0 {
		fmt.Println("No providers configured. Add one with 'omni config-add'.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tFAMILY\tBASE URL\tMODEL\tDEFAULT")
	for _, name := range names {
		p := reg.Providers[name]
		def := ""
		if p.IsDefault {
			def = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Name, p.Family, p.BaseURL, p.Model, def)
	}
	return w.Flush()
}

// InitConfig writes an empty registry file if none exists yet.
func InitConfig() error {
	path, err := config.Path()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists at %s\n", path)
		return nil
	}
	reg := config.NewRegistry()
	if err := config.SaveTo(reg, path); err != nil {
		return err
	}
	fmt.Printf("Created %s\n", path)
	return nil
}

// AddProvider registers or updates a provider in the config file.
func AddProvider(p llm.ProviderConfig, makeDefault bool) error {
	reg, err := config.Load()
	if err != nil {
		return err
	}
	if err := reg.Add(p, makeDefault); err != nil {
		return err
	}
	if err := config.Save(reg); err != nil {
		return err
	}
	fmt.Printf("Registered provider %q (%s)\n", p.Name, p.Family)
	return nil
}

// History prints the most recent ask records.
func History(ctx context.Context, limit int, opts Options) error {
	store, err := storage.OpenSqlite(opts.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No history yet.")
		return nil
	}

	for _, rec := range records {
		fmt.Printf("[%s] %s (%s, %s, %dms)\n",
			rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.Provider, rec.Family, rec.Model, rec.LatencyMs)
		fmt.Printf("  > %s\n", truncate(rec.Prompt, 120))
		fmt.Printf("  %s\n\n", truncate(rec.ResponseText, 240))
	}
	return nil
}

// PurgeHistory deletes every recorded ask.
func PurgeHistory(ctx context.Context, opts Options) error {
	store, err := storage.OpenSqlite(opts.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Purge(ctx); err != nil {
		return err
	}
	fmt.Println("History purged.")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
