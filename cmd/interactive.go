package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"parcelview/internal/errors"
	"parcelview/internal/export"
	"parcelview/internal/session"
	"parcelview/internal/tui"
)

func newBrowseCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse the parcel table in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.browse(cmd.Context(), out)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", export.LeadsFileName, "where the e key writes the lead list")
	return cmd
}

func (a *app) browse(ctx context.Context, out string) error {
	if err := a.cfg.RequireSecrets(); err != nil {
		return err
	}
	if runtime.GOOS == "windows" {
		enableVT()
	}

	// A terminal session lives as long as the process.
	mgr := a.manager(session.NewMemoryStore(0))
	prompt := newPrompt(os.Stdin, os.Stderr)

	sess, err := prompt.login(ctx, mgr)
	if err != nil {
		return err
	}
	ds, err := a.loadDataset(ctx)
	if err != nil {
		return err
	}
	scale, err := a.scale(ds)
	if err != nil {
		return err
	}

	for {
		model, err := tui.New(ctx, mgr, sess, ds, scale, out)
		if err != nil {
			return err
		}
		final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
		if err != nil {
			return err
		}
		if m, ok := final.(tui.Model); !ok || !m.LoggedOut {
			return nil
		}
		fmt.Fprintln(os.Stderr, "Logged out.")
		if sess, err = prompt.login(ctx, mgr); err != nil {
			return err
		}
	}
}

// prompt reads credentials from the terminal, echoing nothing for the
// password when stdin is a TTY.
type prompt struct {
	in     *os.File
	reader *bufio.Reader
	out    io.Writer
}

func newPrompt(in *os.File, out io.Writer) *prompt {
	return &prompt{in: in, reader: bufio.NewReader(in), out: out}
}

// login asks until the credentials pass the gate. Anything but a rejected
// login ends the loop.
func (p *prompt) login(ctx context.Context, mgr *session.Manager) (*session.Session, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fmt.Fprint(p.out, "Username: ")
		user, err := p.reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read username: %w", err)
		}
		fmt.Fprint(p.out, "Password: ")
		pass, err := p.password()
		fmt.Fprintln(p.out)
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}

		s, err := mgr.Login(ctx, strings.TrimSpace(user), pass)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, errors.ErrCodeAuth) {
			return nil, err
		}
		fmt.Fprintln(p.out, "User not found or password incorrect")
	}
}

func (p *prompt) password() (string, error) {
	fd := int(p.in.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		return string(b), err
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
