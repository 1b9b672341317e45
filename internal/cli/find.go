package cli

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ratio1/apistore_sdk_go/pkg/apistore"
)

// FindOptions holds flags for the find command.
type FindOptions struct {
	*RootOptions
	Filters      []string
	Include      []string
	Limit        int
	NoDepaginate bool
	SortBy       string
	SortOrder    string
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find <type> [id]",
		Short: "Fetch one record or list a type",
		Long: `Fetch one record by id, or list every record of a type.

Examples:
  apistore find user 42
  apistore find user --filter role=admin --include groups --limit 50`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 2 {
				id = args[1]
			}
			return runFind(opts, args[0], id, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Filters, "filter", nil, "filter as name=value (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Include, "include", nil, "links to include in the response")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "page size (defaults to the store page size)")
	cmd.Flags().BoolVar(&opts.NoDepaginate, "no-depaginate", false, "return only the first page")
	cmd.Flags().StringVar(&opts.SortBy, "sort", "", "field to sort by")
	cmd.Flags().StringVar(&opts.SortOrder, "order", "", "sort order (asc|desc)")

	return cmd
}

func runFind(opts *FindOptions, typeName, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	filter, err := parseFilters(opts.Filters)
	if err != nil {
		return formatter.fail(ErrCodeUsage, "invalid --filter", err)
	}
	s, err := opts.openStore(cmd)
	if err != nil {
		return formatter.fail(ErrCodeConfig, "open store", err)
	}

	findOpts := &apistore.FindOptions{
		Filter:       filter,
		Include:      opts.Include,
		Limit:        opts.Limit,
		NoDepaginate: opts.NoDepaginate,
		SortBy:       opts.SortBy,
		SortOrder:    opts.SortOrder,
	}
	res, err := s.Find(cmd.Context(), typeName, id, findOpts)
	if err != nil {
		return formatter.fail(ErrCodeRequest, "find "+typeName, err)
	}
	formatter.VerboseLog("%d request(s) in flight after find", s.PendingFinds())
	return formatter.Success(res)
}

// NewSchemasCommand creates the schemas command.
func NewSchemasCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "schemas",
		Short:         "List the resource types the API describes",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			s, err := rootOpts.openStore(cmd)
			if err != nil {
				return formatter.fail(ErrCodeConfig, "open store", err)
			}
			if _, err := s.Find(cmd.Context(), apistore.TypeSchema, "", &apistore.FindOptions{URL: "schemas"}); err != nil {
				return formatter.fail(ErrCodeRequest, "load schemas", err)
			}
			return formatter.Success(sortedIDs(s.All(apistore.TypeSchema)))
		},
	}
}

func parseFilters(raw []string) (url.Values, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(url.Values, len(raw))
	for _, f := range raw {
		name, value, ok := strings.Cut(f, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("filter %q must be name=value", f)
		}
		out.Add(name, value)
	}
	return out, nil
}
