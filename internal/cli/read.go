package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bfatoms/sqlite3-opfs-sample/internal/protocol"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/query"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	chain := &chainFlags{}

	cmd := &cobra.Command{
		Use:   "get <table>",
		Short: "Select rows",
		Long: `Select every row of a table matching the given conditions.

Conditions are joined in command-line order. --or-where joins its condition
to the previous one with OR, so it may not come first.

Examples:
  dobby get users --where "age:>=:34"
  dobby get users --where "age:=:33" --or-where "age:=:35"
  dobby get orders --raw "order_number LIKE 'SO-%'" --format json`,
		Args:          cobra.ExactArgs(1),
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
			b.From(args[0])
			if err := chain.apply(b); err != nil {
				return err
			}
			s.out.VerboseLog("sql: %s", b.ToSQL())

			resp, err := b.Get(cmd.Context())
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
	chain.register(cmd)

	return cmd
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "find <table> <id>",
		Short: "Select one row by id",
		Example: `  dobby find users 1a5ec39c-f1fd-495b-9346-e1a47ea7d684
  dobby find orders 1a5ec39c-f1fd-495b-9346-e1a47ea7d682 --format json`,
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
			res, err := b.From(args[0]).Find(cmd.Context(), args[1])
			if err != nil {
				return s.failure(err)
			}
			return s.envelope(res)
		},
	}
}

// NewPaginateCommand creates the paginate command.
func NewPaginateCommand(rootOpts *RootOptions) *cobra.Command {
	chain := &chainFlags{}
	var perPage, page int

	cmd := &cobra.Command{
		Use:   "paginate <table>",
		Short: "Select one page of rows",
		Long: `Select one page of rows matching the given conditions.

Total in the output counts the rows on this page, not the rows in the table.

Examples:
  dobby paginate users --per-page 2 --page 2
  dobby paginate users --where "age:>=:34" --per-page 20`,
		Args:          cobra.ExactArgs(1),
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
			b.From(args[0])
			if err := chain.apply(b); err != nil {
				return err
			}

			p, err := b.Paginate(cmd.Context(), perPage, page)
			if err != nil {
				return s.failure(err)
			}
			if !p.Result {
				return s.rejected(p.Error)
			}
			if s.out.Format == "json" {
				return s.out.Success(p)
			}
			if err := s.out.Rows(p.Data); err != nil {
				return err
			}
			fmt.Fprintf(s.out.Writer, "page %d, %d per page\n", p.CurrentPage, p.PerPage)
			return nil
		},
	}
	chain.register(cmd)
	cmd.Flags().IntVar(&perPage, "per-page", 20, "rows per page")
	cmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")

	return cmd
}

// envelope outputs a single-row result. A rejected statement exits with
// ExitFailure.
func (s *session) envelope(res query.Result) error {
	if !res.Result {
		return s.rejected(res.Error)
	}
	if s.out.Format == "json" {
		return s.out.Success(res)
	}
	if res.Data == nil {
		return s.out.Rows(nil)
	}
	return s.out.Rows([]protocol.Row{res.Data})
}
