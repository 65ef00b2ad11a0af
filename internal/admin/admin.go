// Package admin implements davusers, the administrator's command line over
// the user directory.
package admin

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dmitrijs2005/davkeeper/internal/common"
	"github.com/dmitrijs2005/davkeeper/internal/server/models"
)

// Directory is the part of services.UserDirectory the CLI needs.
type Directory interface {
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, login, password string) error
	Edit(ctx context.Context, login string, edit models.UserEdit) error
}

var ErrUsage = errors.New("usage: davusers [-c config.json] [-d dsn] list | create <login> | edit <login> [-password] [-quota MB] [-admin=true|false]")

// Commands lists the recognised sub-commands.
var Commands = []string{"list", "create", "edit"}

type App struct {
	dir    Directory
	reader *bufio.Reader
	out    io.Writer
	stdin  int
}

// NewApp returns a CLI reading from in and writing to out. stdinFd is the
// descriptor consulted for interactive password entry.
func NewApp(dir Directory, in io.Reader, out io.Writer, stdinFd int) *App {
	return &App{dir: dir, reader: bufio.NewReader(in), out: out, stdin: stdinFd}
}

// SplitArgs separates global flags from the sub-command and its arguments.
func SplitArgs(args []string) (global, command []string) {
	for i, a := range args {
		for _, c := range Commands {
			if a == c {
				return args[:i], args[i:]
			}
		}
	}
	return args, nil
}

// Run executes one sub-command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	switch args[0] {
	case "list":
		return a.list(ctx)
	case "create":
		return a.create(ctx, args[1:])
	case "edit":
		return a.edit(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q: %w", args[0], ErrUsage)
	}
}

func (a *App) list(ctx context.Context) error {
	users, err := a.dir.List(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LOGIN\tQUOTA (MB)\tADMIN\tCREATED")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%d\t%t\t%s\n", u.Login, u.QuotaBytes/common.BytesPerMB, u.IsAdmin, u.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

func (a *App) create(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}

	password, err := a.readNewPassword()
	if err != nil {
		return err
	}

	if err := a.dir.Create(ctx, args[0], password); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Success!")
	return nil
}

func (a *App) edit(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return ErrUsage
	}
	login := args[0]

	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	changePassword := fs.Bool("password", false, "prompt for a new password")
	quota := fs.Int64("quota", 0, "quota in MB, 0 for unlimited")
	isAdmin := fs.Bool("admin", false, "grant or revoke admin rights")
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%v: %w", err, ErrUsage)
	}

	var edit models.UserEdit
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "quota":
			edit.QuotaMB = quota
		case "admin":
			edit.IsAdmin = isAdmin
		}
	})

	if *changePassword {
		password, err := a.readNewPassword()
		if err != nil {
			return err
		}
		edit.Password = &password
	}

	if edit.Password == nil && edit.QuotaMB == nil && edit.IsAdmin == nil {
		return fmt.Errorf("nothing to change: %w", ErrUsage)
	}

	if err := a.dir.Edit(ctx, login, edit); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Success!")
	return nil
}
