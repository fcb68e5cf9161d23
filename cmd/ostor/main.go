// ostor is a command line client for S3-compatible object storage: list, upload, download, remove, stat,
// pre-sign, and health-check against any store the objstore module supports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/tidalfs/objstore"
	"github.com/tidalfs/objstore/backend"
	"github.com/tidalfs/objstore/objstoresimple"
)

const defaultConfigPath = "~/.config/ostor/config.yml"

// errUsage signals that the command already explained itself on stderr; run turns it into exit code 2.
var errUsage = errors.New("usage")

// storeOpener resolves a store URI into a rooted store and the object name (or listing prefix) inside it.
// Commands take one so tests can hand them a mock store.
type storeOpener func(uri string) (objstore.Store, string, error)

type globalOptions struct {
	profile   string
	config    string
	accessKey string
	secretKey string
	endpoint  string
	region    string
	proxyURL  string
	insecure  bool
	timeout   time.Duration
	verbose   bool
	noColor   bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("ostor", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var g globalOptions
	flags.StringVar(&g.profile, "profile", defaultProfileName, "configuration profile name")
	flags.StringVar(&g.config, "config", defaultConfigPath, "configuration file path")
	flags.StringVar(&g.accessKey, "access-key", "", "access key id (overrides profile and environment)")
	flags.StringVar(&g.secretKey, "secret-key", "", "secret access key (overrides profile and environment)")
	flags.StringVar(&g.endpoint, "endpoint", "", "service endpoint host[:port], optionally http:// or https://")
	flags.StringVar(&g.region, "region", "", "service region")
	flags.StringVar(&g.proxyURL, "proxy", "", "proxy URL for outbound requests")
	flags.BoolVar(&g.insecure, "insecure", false, "skip TLS certificate verification")
	flags.DurationVar(&g.timeout, "timeout", 0, "per-request timeout (0 means no timeout)")
	flags.BoolVar(&g.verbose, "v", false, "verbose logging to stderr")
	flags.BoolVar(&g.noColor, "no-color", false, "disable colored output")
	flags.Usage = func() { usage(stderr, flags) }

	if err := flags.Parse(args); err != nil {
		return 2
	}
	rest := flags.Args()
	if len(rest) == 0 {
		flags.Usage()
		return 2
	}
	command, cmdArgs := rest[0], rest[1:]

	if g.noColor {
		color.NoColor = true
	}
	logger := zerolog.Nop()
	if g.verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: stderr, NoColor: g.noColor}).
			With().Timestamp().Logger()
	}

	opts, err := resolveOptions(g, logger)
	if err != nil {
		fmt.Fprintln(stderr, color.RedString("ostor: %v", err))
		return 1
	}
	open := func(uri string) (objstore.Store, string, error) {
		logger.Debug().Str("uri", uri).Msg("opening store")
		return openStore(uri, opts)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var cmdErr error
	switch command {
	case "ls":
		cmdErr = cmdLS(ctx, open, cmdArgs, stdout, stderr)
	case "put":
		cmdErr = cmdPut(ctx, open, cmdArgs, stdout, stderr)
	case "get":
		cmdErr = cmdGet(ctx, open, cmdArgs, stdout, stderr)
	case "rm":
		cmdErr = cmdRM(ctx, open, cmdArgs, stdout, stderr)
	case "stat":
		cmdErr = cmdStat(ctx, open, cmdArgs, stdout, stderr)
	case "presign":
		cmdErr = cmdPresign(open, cmdArgs, stdout, stderr)
	case "check":
		cmdErr = cmdCheck(ctx, open, cmdArgs, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "ostor: unknown command %q\n\n", command)
		flags.Usage()
		return 2
	}

	switch {
	case cmdErr == nil:
		return 0
	case errors.Is(cmdErr, errUsage):
		return 2
	default:
		fmt.Fprintln(stderr, color.RedString("ostor: %v", cmdErr))
		return 1
	}
}

func usage(w io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(w, "usage: ostor [options] <command> [command options] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  ls       list objects under a prefix:        ostor ls [-l] s3://bucket/prefix")
	fmt.Fprintln(w, "  put      upload a local file:                ostor put report.csv s3://bucket/key")
	fmt.Fprintln(w, "  get      download an object:                 ostor get s3://bucket/key [localfile]")
	fmt.Fprintln(w, "  rm       remove an object:                   ostor rm s3://bucket/key")
	fmt.Fprintln(w, "  stat     show object metadata:               ostor stat s3://bucket/key")
	fmt.Fprintln(w, "  presign  emit a time-limited GET URL:        ostor presign [-lifetime 15m] s3://bucket/key")
	fmt.Fprintln(w, "  check    probe endpoint and credentials:     ostor check s3://bucket/prefix")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "options:")
	flags.PrintDefaults()
}

// resolveOptions merges the profile from the config file with command line overrides. Credentials left
// empty after both fall back to the environment inside the backend.
func resolveOptions(g globalOptions, logger zerolog.Logger) (backend.Options, error) {
	prof, err := loadProfile(g.config, g.profile)
	if err != nil {
		return backend.Options{}, err
	}
	opts, err := prof.backendOptions()
	if err != nil {
		return backend.Options{}, err
	}

	if g.accessKey != "" {
		opts.AccessKeyID = g.accessKey
	}
	if g.secretKey != "" {
		opts.SecretAccessKey = g.secretKey
	}
	if g.endpoint != "" {
		opts.Endpoint = g.endpoint
	}
	if g.region != "" {
		opts.Region = g.region
	}
	if g.proxyURL != "" {
		opts.ProxyURL = g.proxyURL
	}
	if g.insecure {
		opts.InsecureSkipVerify = true
	}
	if g.timeout > 0 {
		opts.Timeout = g.timeout
	}

	logger.Debug().Str("profile", g.profile).Str("endpoint", opts.Endpoint).Msg("options resolved")
	return opts, nil
}

// splitStoreURI splits "scheme://bucket/some/key" into the store root and the object name (or prefix)
// inside it.
func splitStoreURI(uri string) (root, name string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("uri %q must look like scheme://bucket[/key]", uri)
	}
	return u.Scheme + "://" + u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

func openStore(uri string, opts backend.Options) (objstore.Store, string, error) {
	root, name, err := splitStoreURI(uri)
	if err != nil {
		return nil, "", err
	}
	store, err := objstoresimple.NewStoreWithOptions(root, opts)
	if err != nil {
		return nil, "", err
	}
	return store, name, nil
}
