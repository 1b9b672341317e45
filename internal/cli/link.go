package cli

import (
	"github.com/spf13/cobra"

	"github.com/Ratio1/apistore_sdk_go/internal/apibody"
	"github.com/Ratio1/apistore_sdk_go/pkg/apistore"
)

// NewLinkCommand creates the link command.
func NewLinkCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "link <type> <id> <link>",
		Short: "Follow a named link of a record",
		Long: `Fetch a record and follow one of its links.

Example:
  apistore link user 42 groups`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			s, err := rootOpts.openStore(cmd)
			if err != nil {
				return formatter.fail(ErrCodeConfig, "open store", err)
			}
			rec, err := s.FindByID(cmd.Context(), args[0], args[1], nil)
			if err != nil {
				return formatter.fail(ErrCodeRequest, "find "+args[0], err)
			}
			res, err := rec.Base().FollowLink(cmd.Context(), args[2], &apistore.FindOptions{ForceReload: force})
			if err != nil {
				return formatter.fail(ErrCodeRequest, "follow "+args[2], err)
			}
			return formatter.Success(res)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "refetch links already included in the record")
	return cmd
}

// ActionOptions holds flags for the action command.
type ActionOptions struct {
	*RootOptions
	Data string
}

// NewActionCommand creates the action command.
func NewActionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActionOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "action <type> <id> <action>",
		Short: "Invoke a named action of a record",
		Long: `Fetch a record and post to one of its actions.

Example:
  apistore action user 42 promote --data '{"level":2}'`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(opts, args, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Data, "data", "", "JSON request body")
	return cmd
}

func runAction(opts *ActionOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	var body any
	if opts.Data != "" {
		decoded, err := apibody.Decode([]byte(opts.Data))
		if err != nil {
			return formatter.fail(ErrCodeUsage, "invalid --data JSON", err)
		}
		body = decoded
	}
	s, err := opts.openStore(cmd)
	if err != nil {
		return formatter.fail(ErrCodeConfig, "open store", err)
	}
	rec, err := s.FindByID(cmd.Context(), args[0], args[1], nil)
	if err != nil {
		return formatter.fail(ErrCodeRequest, "find "+args[0], err)
	}
	res, err := rec.Base().DoAction(cmd.Context(), args[2], &apistore.RequestOptions{Body: body})
	if err != nil {
		return formatter.fail(ErrCodeRequest, "action "+args[2], err)
	}
	if res == nil {
		res = map[string]any{"ok": true}
	}
	return formatter.Success(res)
}
