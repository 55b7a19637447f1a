// Command useradd registers an identity directly in the database. It is
// meant for bootstrapping the first administrator.
//
// Usage:
//
//	useradd -email admin@example.com -name Admin -admin
//
// The password is read from the terminal without echo, or from the first
// line of standard input when it is not a terminal. Server configuration
// (-d, PETAUTH_DATABASE_DSN, .env, config file) applies as usual.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/petauth/internal/common"
	"github.com/dmitrijs2005/petauth/internal/flagx"
	"github.com/dmitrijs2005/petauth/internal/logging"
	"github.com/dmitrijs2005/petauth/internal/server"
	"github.com/dmitrijs2005/petauth/internal/server/auth"
	"github.com/dmitrijs2005/petauth/internal/server/config"
	"github.com/dmitrijs2005/petauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/petauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/petauth/internal/server/services"
	"golang.org/x/term"
)

type options struct {
	email string
	name  string
	admin bool
}

func parseOptions(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("useradd", flag.ContinueOnError)
	fs.StringVar(&o.email, "email", "", "email of the new identity")
	fs.StringVar(&o.name, "name", "", "display name")
	fs.BoolVar(&o.admin, "admin", false, "grant ROLE_ADMIN")

	if err := fs.Parse(flagx.FilterArgs(args, []string{"-email", "-name", "-admin"})); err != nil {
		return o, err
	}
	if o.email == "" {
		return o, errors.New("-email is required")
	}
	return o, nil
}

func (o options) roles() []string {
	if o.admin {
		return []string{common.RoleUser, common.RoleAdmin}
	}
	return []string{common.RoleUser}
}

func readPassword(in *os.File, out io.Writer) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(out, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	fmt.Fprint(out, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		common.WipeByteArray(first)
		return "", err
	}
	defer common.WipeByteArray(first)
	defer common.WipeByteArray(second)

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

func run(ctx context.Context) error {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	password, err := readPassword(os.Stdin, os.Stderr)
	if err != nil {
		return err
	}

	db, err := server.OpenDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		return err
	}

	codec, err := auth.NewTokenCodec([]byte(cfg.SecretKey), cfg.Issuer)
	if err != nil {
		return err
	}
	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)
	svc, err := services.NewAuthService(db, m, refreshtokens.NewMemoryStore(), codec,
		auth.NewBcryptEncoder(cfg.BcryptCost), cfg, logger)
	if err != nil {
		return err
	}

	identity, err := svc.RegisterWithRoles(ctx, opts.email, password, opts.name, opts.roles())
	if err != nil {
		return err
	}

	fmt.Printf("created identity %d <%s> roles=%s\n", identity.ID, identity.Email, strings.Join(identity.Roles, ","))
	return nil
}

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "useradd:", err)
		os.Exit(1)
	}
}
