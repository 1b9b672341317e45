package cli

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ratio1/apistore_sdk_go/internal/config"
	"github.com/Ratio1/apistore_sdk_go/pkg/apistore"
	"github.com/Ratio1/apistore_sdk_go/pkg/apistore_sdk"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	BaseURL    string
	Headers    []string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the apistore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "apistore",
		Short: "Query a schema-described REST API through the apistore cache",
		Long: `apistore fetches records, schemas, links and actions of a REST API that
describes its resources with schemas and links. The API is selected with
--base-url, a --config file or the APISTORE_* environment variables; without
any of them the built-in mock is used.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return WrapExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
			}
			if _, err := parseHeaders(opts.Headers); err != nil {
				return WrapExitError(ExitCommandError, "invalid header", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", "", "API base URL (selects the HTTP backend)")
	cmd.PersistentFlags().StringArrayVarP(&opts.Headers, "header", "H", nil, "extra request header as name:value (repeatable)")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewSchemasCommand(opts))
	cmd.AddCommand(NewLinkCommand(opts))
	cmd.AddCommand(NewActionCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openStore builds a store from --config (or APISTORE_*), then applies
// --base-url and -H on top.
func (o *RootOptions) openStore(cmd *cobra.Command) (*apistore.Store, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.ConfigPath != "" {
		cfg, err = config.Load(o.ConfigPath)
		if err == nil {
			cfg.ApplyEnv()
		}
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, err
	}
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
		if cfg.Mode() == config.ModeMock {
			cfg.RuntimeMode = config.ModeAuto
		}
	}
	extra, err := parseHeaders(o.Headers)
	if err != nil {
		return nil, err
	}
	for k := range extra {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string)
		}
		cfg.Headers[k] = extra.Get(k)
	}

	s, mode, err := apistore_sdk.NewFromConfig(cfg, apistore.WithLogger(newLogger(cmd.ErrOrStderr(), o.Verbose)))
	if err != nil {
		return nil, err
	}
	o.formatter(cmd).VerboseLog("using %s backend", mode)
	return s, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseHeaders(raw []string) (http.Header, error) {
	out := make(http.Header)
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("header %q must be name:value", h)
		}
		out.Set(name, strings.TrimSpace(value))
	}
	return out, nil
}
