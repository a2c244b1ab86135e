package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/models"
	"github.com/spf13/cobra"
)

func (s *session) tagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage board tags",
	}

	var color string
	create := &cobra.Command{
		Use:   "create BOARD NAME",
		Short: "Create a tag on a board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ok := models.ParseTagColor(color)
			if !ok {
				return common.Wrapf(common.ErrDataValidation, "unknown color %q", color)
			}
			id, err := s.app.Private().CreateTag(cmd.Context(), args[0], args[1], c)
			if err != nil {
				return err
			}
			s.printf("%s\n", id)
			return nil
		},
	}
	create.Flags().StringVar(&color, "color", "blue", "red, orange, yellow, green, teal, blue, purple or gray")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "list BOARD",
		Short: "List the tags of a board in display order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tags, err := s.app.Private().Tags(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
			defer w.Flush()
			for _, t := range tags {
				fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.Name, t.Color)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "toggle ITEM TAG",
		Short: "Attach the tag to the item, or detach it when attached",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := s.app.Private().ToggleTag(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if on {
				s.printf("attached\n")
			} else {
				s.printf("detached\n")
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reorder BOARD TAG...",
		Short: "Set the display order of a board's tags",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.app.Private().ReorderTags(cmd.Context(), args[0], args[1:])
		},
	})
	return cmd
}
