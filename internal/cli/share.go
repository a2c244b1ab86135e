package cli

import (
	"github.com/dmitrijs2005/boardkeeper/internal/models"
	"github.com/spf13/cobra"
)

func (s *session) shareCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "share BOARD",
		Short: "Print the share token of a board, creating the share on first use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := s.app.Coordinator().CreateShare(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			s.printf("share %s\ntoken %s\n", tok.ShareID, tok.Token)
			return nil
		},
	}
}

func (s *session) acceptCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "accept TOKEN",
		Short: "Join a board shared with you",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := s.app.Coordinator().AcceptShareInvitation(cmd.Context(), models.ShareMetadata{Token: args[0]})
			if err != nil {
				return err
			}
			s.printf("joined board %s (share %s)\n", tok.BoardID, tok.ShareID)
			return nil
		},
	}
}
