package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/boardkeeper/internal/models"
	"github.com/spf13/cobra"
)

func (s *session) boardCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Manage boards",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List boards, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			boards, err := s.app.Private().Boards(cmd.Context())
			if err != nil {
				return err
			}
			shared, err := s.app.Shared().Boards(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
			defer w.Flush()
			printBoards(w, boards, models.ScopePrivate, s.defaultBoard)
			printBoards(w, shared, models.ScopeShared, "")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create NAME",
		Short: "Create a board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := s.app.Private().CreateBoard(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			s.printf("%s\n", id)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename a board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.app.Private().RenameBoard(cmd.Context(), args[0], args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a board with its items and tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.app.Private().DeleteBoard(cmd.Context(), args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "default ID",
		Short: "Choose the board ingest uses when --board is omitted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.app.Private().SetDefaultBoard(cmd.Context(), args[0])
		},
	})
	return cmd
}

func printBoards(w *tabwriter.Writer, boards []models.Board, scope models.Scope, def string) {
	for _, b := range boards {
		mark := ""
		if b.ID == def {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s%s\t%s\n", b.ID, b.Name, mark, scope)
	}
}

func (s *session) itemsCommand() *cobra.Command {
	var board string
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List the items of a board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if board == "" {
				board = s.defaultBoard
			}
			items, err := s.app.Private().Items(cmd.Context(), board)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
			defer w.Flush()
			for _, it := range items {
				name := ""
				if it.Name != nil {
					name = *it.Name
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", it.ID, it.DisplayType, name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&board, "board", "", "board id (default board when empty)")
	return cmd
}
