// Command shimmer retrieves health data from a provider and writes it as
// normalized data points or raw provider documents.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"

	"github.com/coachpo/shimmer/errs"
	"github.com/coachpo/shimmer/internal/app"
	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/infra/export"
	"github.com/coachpo/shimmer/internal/observability"
	"github.com/coachpo/shimmer/internal/retrieval"
)

const (
	dateLayout     = "2006-01-02"
	defaultTimeout = 5 * time.Minute
	defaultAddr    = ":8083"

	exitFailure       = 1
	exitUsage         = 2
	exitAuthorization = 3
	exitUpstream      = 4
	exitMapping       = 5
	exitCancelled     = 130
)

var errUsage = errors.New("usage")

type cliOptions struct {
	command     string
	configPath  string
	provider    string
	measure     string
	user        string
	start       time.Time
	end         time.Time
	raw         bool
	fine        bool
	format      string
	out         string
	accessToken string
	timeout     time.Duration
	addr        string
}

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) && !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitUsage)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "shimmer:", err)
		os.Exit(exitCode(err))
	}
}

func parseArgs(args []string, output io.Writer) (cliOptions, error) {
	fs := flag.NewFlagSet("shimmer", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintln(output, "usage: shimmer retrieve|providers|serve [flags]")
		fs.PrintDefaults()
	}

	var (
		opts  cliOptions
		start string
		end   string
	)
	fs.StringVar(&opts.configPath, "config", "", "Path to application configuration file")
	fs.StringVar(&opts.provider, "provider", "", "Provider key (e.g. fitbit, withings)")
	fs.StringVar(&opts.measure, "measure", "", "Measure type (e.g. step_count, heart_rate)")
	fs.StringVar(&opts.user, "user", "", "Local user id owning the provider tokens")
	fs.StringVar(&start, "start", "", "First day to retrieve, YYYY-MM-DD (default: yesterday)")
	fs.StringVar(&end, "end", "", "Last day to retrieve, YYYY-MM-DD (default: tomorrow)")
	fs.BoolVar(&opts.raw, "raw", false, "Return raw provider documents instead of data points")
	fs.BoolVar(&opts.fine, "fine", false, "Prefer fine-grained (intraday) endpoints")
	fs.StringVar(&opts.format, "format", "json", "Output format: json or parquet")
	fs.StringVar(&opts.out, "out", "", "Output file (default: stdout)")
	fs.StringVar(&opts.accessToken, "access-token", "", "Use this access token instead of the token store")
	fs.DurationVar(&opts.timeout, "timeout", defaultTimeout, "Maximum duration of the command")
	fs.StringVar(&opts.addr, "addr", defaultAddr, "Listen address of the serve command")
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		opts.command, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	rest := fs.Args()
	if opts.command == "" && len(rest) == 1 {
		opts.command, rest = rest[0], nil
	}
	if opts.command == "" || len(rest) != 0 {
		fs.Usage()
		return cliOptions{}, errUsage
	}
	switch opts.command {
	case "providers", "serve":
		return opts, nil
	case "retrieve":
	default:
		return cliOptions{}, fmt.Errorf("unknown command %q (expected retrieve, providers or serve)", opts.command)
	}

	var err error
	if opts.start, err = parseDay("start", start); err != nil {
		return cliOptions{}, err
	}
	if opts.end, err = parseDay("end", end); err != nil {
		return cliOptions{}, err
	}
	if opts.provider == "" || opts.measure == "" || opts.user == "" {
		return cliOptions{}, errors.New("-provider, -measure and -user are required")
	}
	return opts, nil
}

func parseDay(name, value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("-%s: expected YYYY-MM-DD, got %q", name, value)
	}
	return t, nil
}

func run(ctx context.Context, opts cliOptions, stdout io.Writer) error {
	if opts.command == "serve" {
		return serve(ctx, opts)
	}
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}
	if opts.command == "providers" {
		return listProviders(ctx, opts, stdout)
	}

	a, cleanup, err := InitializeApp(ctx, app.Options{
		ConfigPath:  opts.configPath,
		Format:      opts.format,
		AccessToken: opts.accessToken,
		UserID:      opts.user,
		Provider:    opts.provider,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	req := retrieval.Request{
		Provider:    opts.provider,
		Measure:     schema.MeasureType(strings.TrimSpace(opts.measure)),
		UserID:      opts.user,
		Start:       opts.start,
		End:         opts.end,
		Normalize:   !opts.raw,
		FineGrained: opts.fine,
	}
	result, err := a.Orchestrator.Retrieve(ctx, req)
	if err != nil {
		return err
	}
	for _, entryErr := range result.EntryErrors {
		observability.Log().Debug("skipped entry", observability.Err(entryErr))
	}
	if len(result.EntryErrors) > 0 {
		observability.Log().Info("entries skipped during mapping",
			observability.F("provider", req.Provider),
			observability.F("count", len(result.EntryErrors)))
	}

	doc := export.Document{Shim: strings.ToLower(opts.provider), TimeStamp: time.Now(), Result: result}
	return write(a.Saver, doc, opts.out, stdout)
}

func write(saver export.Saver, doc export.Document, out string, stdout io.Writer) error {
	if out == "" {
		return saver.Encode(stdout, doc)
	}
	if filepath.Ext(out) == "" {
		out += saver.Extension()
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := saver.Save(doc, out); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	observability.Log().Info("output written", observability.F("path", out))
	return nil
}

func listProviders(ctx context.Context, opts cliOptions, stdout io.Writer) error {
	cfg, err := app.ProvideConfig(ctx, app.Options{ConfigPath: opts.configPath})
	if err != nil {
		return err
	}
	reg, err := app.ProvideRegistry(cfg)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(reg.Describe())
}

// exitCode maps the pipeline error kind to the process exit status.
func exitCode(err error) int {
	switch errs.KindOf(err) {
	case errs.KindInvalid, errs.KindConfiguration:
		return exitUsage
	case errs.KindAuthorization:
		return exitAuthorization
	case errs.KindUpstreamHTTP:
		return exitUpstream
	case errs.KindMapping:
		return exitMapping
	case errs.KindCancellation:
		return exitCancelled
	default:
		return exitFailure
	}
}
