package admin

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/todoauth/internal/flagx"
	"github.com/dmitrijs2005/todoauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/todoauth/internal/server/services"
)

const (
	CommandMigrate    = "migrate"
	CommandCreateUser = "create-user"
)

var ErrUnknownCommand = errors.New("unknown command")

type App struct {
	db      *sql.DB
	manager repomanager.RepositoryManager
	hasher  services.PasswordHasher
	reader  *bufio.Reader
	out     io.Writer
}

func NewApp(db *sql.DB, m repomanager.RepositoryManager, hasher services.PasswordHasher) *App {
	return &App{db: db, manager: m, hasher: hasher, reader: bufio.NewReader(os.Stdin), out: os.Stdout}
}

// Command returns the first recognized command name in args.
func Command(args []string) string {
	for _, a := range args {
		switch a {
		case CommandMigrate, CommandCreateUser:
			return a
		}
	}
	return ""
}

// Run executes the command found in args.
func (a *App) Run(ctx context.Context, args []string) error {
	switch Command(args) {
	case CommandMigrate:
		return a.Migrate(ctx)
	case CommandCreateUser:
		return a.CreateUser(ctx, userFlags(args))
	default:
		return fmt.Errorf("%w; want %q or %q", ErrUnknownCommand, CommandMigrate, CommandCreateUser)
	}
}

func (a *App) Migrate(ctx context.Context) error {
	if err := a.manager.RunMigrations(ctx, a.db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}
	fmt.Fprintln(a.out, "migrations applied")
	return nil
}

type NewUser struct {
	Email    string
	Username string
}

// userFlags picks -email and -username out of args; other flags belong to
// the server configuration.
func userFlags(args []string) NewUser {
	var u NewUser
	fs := flag.NewFlagSet(CommandCreateUser, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&u.Email, "email", "", "account email")
	fs.StringVar(&u.Username, "username", "", "account username")
	_ = fs.Parse(flagx.FilterArgs(args, []string{"-email", "-username"}))
	return u
}
