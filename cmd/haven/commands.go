package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"haven/cmd/identity"
	"haven/cmd/internal/app"
	"haven/cmd/internal/auth/session"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

// Build information, set via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

const defaultConfigPath = "./config/haven.yaml"

// Seams for the interactive password prompt.
var (
	readPassword    = term.ReadPassword
	stdinIsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) } // #nosec G115 -- fd fits in int.
)

func newApp() *cli.App {
	return &cli.App{
		Name:    "haven",
		Usage:   "Matrix homeserver authentication and session core",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config file",
				EnvVars: []string{"HAVEN_CONFIG"},
				Value:   defaultConfigPath,
			},
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server (default)",
				Action: serveAction,
			},
			{
				Name:   "migrate",
				Usage:  "apply Postgres migrations and exit",
				Action: migrateAction,
			},
			userCommand(),
			keysCommand(),
		},
	}
}

// loadConfig reads --config. The default path may be absent; an explicit
// one must exist.
func loadConfig(c *cli.Context) (app.Config, error) {
	return app.Load(c.String("config"), c.IsSet("config"))
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return app.Serve(cfg)
}

func migrateAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Storage.Backend != app.BackendPostgres {
		return fmt.Errorf("migrate: storage.backend is %q, migrations only apply to postgres", cfg.Storage.Backend)
	}
	if strings.TrimSpace(cfg.Database.URL) == "" {
		return errors.New("migrate: database.url is required")
	}
	if err := app.Migrate(c.Context, cfg.Database.URL); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.App.Writer, "migrations applied")
	return nil
}

func userCommand() *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "manage local accounts",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "create a user that can log in with a password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "localpart, e.g. alice", Required: true},
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "contact email", Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "password (prompted when omitted)"},
				},
				Action: userCreateAction,
			},
		},
	}
}

func userCreateAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Storage.Backend == app.BackendMemory {
		return errors.New("user create: the memory backend does not persist users; configure postgres or badger")
	}

	pw := c.String("password")
	if pw == "" {
		if pw, err = promptPassword(c); err != nil {
			return err
		}
	}

	log := app.NewLogger(app.LogConfig{Level: "warn", Format: "pretty"}, c.App.ErrWriter)
	ctx := context.WithoutCancel(c.Context)

	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	u, err := identity.NewAccounts(stores.Users, cfg.Password).CreateUser(ctx, identity.CreateUserInput{
		Name:     c.String("name"),
		Email:    c.String("email"),
		Password: pw,
	})
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(c.App.Writer, "created %s (id %s)\n", identity.QualifiedID(u.Name, cfg.Server.Name), u.ID)
	return nil
}

// promptPassword asks twice on a terminal, or reads one line otherwise.
func promptPassword(c *cli.Context) (string, error) {
	if !stdinIsTerminal() {
		line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password from stdin: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fd := int(os.Stdin.Fd()) // #nosec G115 -- fd fits in int.
	_, _ = fmt.Fprint(c.App.ErrWriter, "Password: ")
	first, err := readPassword(fd)
	_, _ = fmt.Fprintln(c.App.ErrWriter)
	if err != nil {
		return "", err
	}
	_, _ = fmt.Fprint(c.App.ErrWriter, "Repeat password: ")
	second, err := readPassword(fd)
	_, _ = fmt.Fprintln(c.App.ErrWriter)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

func keysCommand() *cli.Command {
	return &cli.Command{
		Name:  "keys",
		Usage: "manage token signing keys",
		Subcommands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "write a new signing key pair",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "algorithm", Aliases: []string{"a"}, Usage: "rs256 or paseto-v4", Value: session.AlgorithmRS256},
					&cli.StringFlag{Name: "out-dir", Aliases: []string{"o"}, Usage: "directory for the key files", Value: "./config/keys"},
					&cli.IntFlag{Name: "bits", Usage: "RSA modulus size", Value: session.DefaultRSABits},
					&cli.BoolFlag{Name: "force", Usage: "overwrite existing key files"},
				},
				Action: keysGenerateAction,
			},
		},
	}
}

func keysGenerateAction(c *cli.Context) error {
	dir := c.String("out-dir")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	var secretName, publicName string
	var secret, public []byte

	switch alg := strings.ToLower(c.String("algorithm")); alg {
	case session.AlgorithmRS256:
		priv, pub, err := session.GenerateRSAKeyPEM(c.Int("bits"))
		if err != nil {
			return err
		}
		secretName, publicName = "signing.pem", "verify.pem"
		secret, public = priv, pub
	case session.AlgorithmPasetoV4:
		s, p := session.GeneratePasetoV4KeyHex()
		secretName, publicName = "paseto_secret.hex", "paseto_public.hex"
		secret, public = []byte(s+"\n"), []byte(p+"\n")
	default:
		return fmt.Errorf("keys generate: unknown algorithm %q", alg)
	}

	secretPath := filepath.Join(dir, secretName)
	publicPath := filepath.Join(dir, publicName)
	if err := writeKeyFile(secretPath, secret, 0o600, c.Bool("force")); err != nil {
		return err
	}
	if err := writeKeyFile(publicPath, public, 0o644, c.Bool("force")); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(c.App.Writer, "wrote %s\nwrote %s\n", secretPath, publicPath)
	return nil
}

func writeKeyFile(path string, data []byte, mode os.FileMode, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, mode) // #nosec G304 -- operator-chosen path.
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s exists; pass --force to overwrite", path)
		}
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
