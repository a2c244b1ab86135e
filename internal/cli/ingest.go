package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/ingest"
	"github.com/spf13/cobra"
)

var origins = map[string]ingest.Origin{
	"pasteboard": ingest.OriginPasteboard,
	"picker":     ingest.OriginFilePicker,
	"drop":       ingest.OriginDrop,
	"share":      ingest.OriginShare,
}

func (s *session) ingestCommand() *cobra.Command {
	var (
		board  string
		text   string
		urls   []string
		audio  []string
		origin string
	)
	cmd := &cobra.Command{
		Use:   "ingest [FILE...]",
		Short: "Add files, text, links or recordings to a board",
		Long: `Add files, text, links or recordings to a board.

Every input becomes one item and is imported independently: when one input
fails the others are still created. Text is read from stdin when it is piped
and no other input is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, ok := origins[origin]
			if !ok {
				return common.Wrapf(common.ErrDataValidation, "unknown origin %q", origin)
			}

			var inputs []ingest.Input
			for _, path := range args {
				inputs = append(inputs, ingest.FileInput(path, o))
			}
			for _, path := range audio {
				inputs = append(inputs, ingest.AudioInput(path, ""))
			}
			for _, u := range urls {
				inputs = append(inputs, ingest.URLInput(u, o))
			}
			if text != "" {
				inputs = append(inputs, ingest.TextInput(text, o))
			}
			if len(inputs) == 0 && s.stdinPiped() {
				data, err := io.ReadAll(io.LimitReader(s.in, o.Limit()+1))
				if err != nil {
					return err
				}
				inputs = append(inputs, ingest.TextInput(strings.TrimRight(string(data), "\n"), o))
			}
			if len(inputs) == 0 {
				return fmt.Errorf("nothing to ingest")
			}

			if board == "" {
				board = s.defaultBoard
			}
			res, err := s.app.Ingest().Process(cmd.Context(), inputs, board)
			for _, out := range res.Outcomes {
				if out.Err != nil {
					s.printf("failed %d: %v\n", out.Index+1, out.Err)
					continue
				}
				s.printf("created %s\n", out.ItemID)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&board, "board", "", "target board id (default board when empty)")
	cmd.Flags().StringVar(&text, "text", "", "note text")
	cmd.Flags().StringSliceVar(&urls, "url", nil, "web link (repeatable)")
	cmd.Flags().StringSliceVar(&audio, "audio", nil, "audio recording file (repeatable)")
	cmd.Flags().StringVar(&origin, "origin", "drop", "input origin: pasteboard, picker, drop or share")
	return cmd
}
