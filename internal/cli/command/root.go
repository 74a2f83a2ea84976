package command

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tallymesh/internal/cli/config"
	"github.com/yndnr/tallymesh/internal/cli/connection"
	"github.com/yndnr/tallymesh/internal/cli/output"
	"github.com/yndnr/tallymesh/internal/core/domain"
	"github.com/yndnr/tallymesh/internal/infra/buildinfo"
	"github.com/yndnr/tallymesh/internal/infra/tlsroots"
)

const envKey = "env"

// requestTimeout bounds a single HTTP command.
const requestTimeout = 30 * time.Second

// Env is the state shared by commands of one run.
type Env struct {
	Config     *config.CLIConfig
	ConfigPath string
	Format     output.Format
	TLS        *tls.Config
	Client     *connection.HTTPClient
}

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "tallymesh-cli",
		Usage:   "Read, change and watch TallyMesh counters",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			CounterCommand(),
			PresenceCommand(),
			WatchCommand(),
			HealthCommand(),
			VersionCommand(),
			ConfigCommand(),
		},
		Before: before,
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "CLI config file",
			EnvVars: []string{"TALLYMESH_CLI_CONFIG"},
			Value:   config.DefaultPath(),
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "TallyMesh server address (e.g., localhost:5080)",
			EnvVars: []string{"TALLYMESH_SERVER"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			EnvVars: []string{"TALLYMESH_OUTPUT"},
		},
		&cli.StringFlag{
			Name:    "ca-file",
			Usage:   "Extra CA bundle for https servers",
			EnvVars: []string{"TALLYMESH_CA_FILE"},
		},
		&cli.BoolFlag{
			Name:  "insecure",
			Usage: "Skip TLS certificate verification",
		},
		&cli.StringFlag{
			Name:    "user-name",
			Usage:   "Name reported as the counter updater",
			EnvVars: []string{"TALLYMESH_USER_NAME"},
		},
		&cli.StringFlag{
			Name:    "user-email",
			Usage:   "Email reported as the counter updater when no name is set",
			EnvVars: []string{"TALLYMESH_USER_EMAIL"},
		},
	}
}

// before loads the config file, lets flags override it and builds the
// HTTP client.
func before(c *cli.Context) error {
	path := c.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if c.IsSet("server") {
		cfg.Server = c.String("server")
	}
	if c.IsSet("output") {
		cfg.Output = c.String("output")
	}
	if c.IsSet("ca-file") {
		cfg.CAFile = c.String("ca-file")
	}
	if c.IsSet("insecure") {
		cfg.Insecure = c.Bool("insecure")
	}
	if c.IsSet("user-name") {
		cfg.UserName = c.String("user-name")
	}
	if c.IsSet("user-email") {
		cfg.UserEmail = c.String("user-email")
	}

	format, err := output.ParseFormat(cfg.Output)
	if err != nil {
		return err
	}
	tlsCfg, err := tlsroots.ClientConfig(cfg.CAFile, cfg.Insecure)
	if err != nil {
		return fmt.Errorf("tls: %w", err)
	}

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[envKey] = &Env{
		Config:     cfg,
		ConfigPath: path,
		Format:     format,
		TLS:        tlsCfg,
		Client: connection.NewHTTPClient(cfg.Server,
			domain.Identity{Name: cfg.UserName, Email: cfg.UserEmail}, tlsCfg),
	}
	return nil
}

// GetEnv returns the Env prepared by the App's Before hook.
func GetEnv(c *cli.Context) (*Env, error) {
	if env, ok := c.App.Metadata[envKey].(*Env); ok {
		return env, nil
	}
	return nil, errors.New("cli environment not initialized")
}

// render writes data in the selected format.
func render(c *cli.Context, env *Env, data any) error {
	return output.NewFormatter(env.Format).Format(c.App.Writer, data)
}

func requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, requestTimeout)
}
