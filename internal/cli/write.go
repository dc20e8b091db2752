package cli

import (
	"github.com/spf13/cobra"
)

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "create <table>",
		Short: "Insert a row",
		Long: `Insert one row and print it as stored.

A generated UUID fills the id column when --data has no "id" key.

Examples:
  dobby create users --data '{"name":"Ada","age":36}'
  dobby create orders --data '{"id":"o-1","type":"SALES_ORDER","order_number":"SO-7"}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			row, err := parseData(data)
			if err != nil {
				return err
			}
			s, err := newSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			b, err := s.builder(cmd.Context())
			if err != nil {
				return err
			}
			res, err := b.To(args[0]).Create(cmd.Context(), row)
			if err != nil {
				return s.failure(err)
			}
			return s.envelope(res)
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "row as a JSON object")

	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:           "update <table> <id>",
		Short:         "Update a row by id",
		Example:       `  dobby update users 1a5ec39c-f1fd-495b-9346-e1a47ea7d684 --data '{"age":40}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			row, err := parseData(data)
			if err != nil {
				return err
			}
			s, err := newSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			b, err := s.builder(cmd.Context())
			if err != nil {
				return err
			}
			res, err := b.To(args[0]).Update(cmd.Context(), args[1], row)
			if err != nil {
				return s.failure(err)
			}
			return s.envelope(res)
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "columns to set as a JSON object")

	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <table> <id>",
		Short:         "Delete a row by id",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			b, err := s.builder(cmd.Context())
			if err != nil {
				return err
			}
			res, err := b.To(args[0]).Delete(cmd.Context(), args[1])
			if err != nil {
				return s.failure(err)
			}
			return s.envelope(res)
		},
	}
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <sql> [params...]",
		Short: "Run a statement unchanged",
		Long: `Send one SQL statement to the execution service as written, binding
any further arguments to its ? placeholders in order.

Examples:
  dobby exec "SELECT count(*) AS n FROM orders WHERE type = ?" SALES_ORDER`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			conn, err := s.shared.Get(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to initialize execution service", err)
			}
			params := make([]any, len(args)-1)
			for i, p := range args[1:] {
				params[i] = p
			}

			resp, err := conn.Execute(cmd.Context(), args[0], params...)
			if err != nil {
				return s.failure(err)
			}
			if !resp.Success {
				return s.rejected(resp.Error)
			}
			rows, err := resp.Rows()
			if err != nil {
				return s.failure(err)
			}
			return s.out.Rows(rows)
		},
	}
}
