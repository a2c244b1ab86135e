// Package cli implements the boardkeeper command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/boardkeeper/internal/app"
	"github.com/dmitrijs2005/boardkeeper/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type session struct {
	in   io.Reader
	out  io.Writer
	open func(context.Context, *config.Config) (*app.App, error)

	app          *app.App
	defaultBoard string
}

// NewRootCommand builds the command tree. Commands read piped input from in
// and print results to out.
func NewRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	s := &session{in: in, out: out, open: app.New}

	root := &cobra.Command{
		Use:           "boardkeeper",
		Short:         "Collect files, notes and links into boards that sync across devices",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.start(cmd)
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		s.initCommand(),
		s.boardCommand(),
		s.itemsCommand(),
		s.ingestCommand(),
		s.tagCommand(),
		s.shareCommand(),
		s.acceptCommand(),
		s.syncCommand(),
		s.runCommand(),
	)
	s.closeAfterRun(root)
	return root
}

// closeAfterRun makes every runnable command release the app when it
// returns, including on error, which PersistentPostRunE does not cover.
func (s *session) closeAfterRun(cmd *cobra.Command) {
	for _, c := range cmd.Commands() {
		s.closeAfterRun(c)
	}
	if cmd.RunE == nil {
		return
	}
	run := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		err := run(cmd, args)
		if cerr := s.stop(); err == nil {
			err = cerr
		}
		return err
	}
}

// Execute runs the CLI against the process streams.
func Execute(ctx context.Context) error {
	return NewRootCommand(os.Stdin, os.Stdout).ExecuteContext(ctx)
}

func (s *session) start(cmd *cobra.Command) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return err
	}
	a, err := s.open(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	s.app = a

	board, err := a.Init(cmd.Context())
	if err != nil {
		_ = s.stop()
		return err
	}
	s.defaultBoard = board
	return nil
}

func (s *session) stop() error {
	if s.app == nil {
		return nil
	}
	err := s.app.Close()
	s.app = nil
	return err
}

// stdinPiped reports whether in carries piped data rather than a terminal.
func (s *session) stdinPiped() bool {
	f, ok := s.in.(*os.File)
	if !ok {
		return s.in != nil
	}
	return !term.IsTerminal(int(f.Fd()))
}

func (s *session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *session) initCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the stores and the Inbox board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s.printf("store %s ready, default board %s\n", s.app.Private().ID(), s.defaultBoard)
			return nil
		},
	}
}

func (s *session) syncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push local changes and pull remote ones once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.app.Coordinator().SyncOnce(cmd.Context()); err != nil {
				return err
			}
			s.printf("synced\n")
			return nil
		},
	}
}

func (s *session) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Stay in the foreground, following store changes and syncing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.app.Run(cmd.Context())
		},
	}
}
