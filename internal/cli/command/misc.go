package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tallymesh/internal/cli/config"
	"github.com/yndnr/tallymesh/internal/cli/connection"
	"github.com/yndnr/tallymesh/internal/infra/buildinfo"
)

// HealthCommand checks the server's liveness and readiness.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server health and readiness",
		Action: func(c *cli.Context) error {
			env, err := GetEnv(c)
			if err != nil {
				return err
			}

			ctx, cancel := requestContext(c)
			defer cancel()

			type health struct {
				Status  string `json:"status" yaml:"status"`
				Version string `json:"version,omitempty" yaml:"version,omitempty"`
				Error   string `json:"error,omitempty" yaml:"error,omitempty"`
			}

			var live health
			resp, err := env.Client.Get(ctx, "/health")
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			if err := connection.ParseResponse(resp, &live); err != nil {
				return err
			}

			var ready health
			resp, err = env.Client.Get(ctx, "/ready")
			if err != nil {
				return fmt.Errorf("readiness check failed: %w", err)
			}
			// /ready answers 503 with a health body, not an error envelope.
			readyErr := connection.ParseResponse(resp, &ready)

			view := struct {
				Server  string `json:"server" yaml:"server"`
				Version string `json:"version" yaml:"version"`
				Live    string `json:"live" yaml:"live"`
				Ready   string `json:"ready" yaml:"ready"`
			}{
				Server:  env.Client.BaseURL(),
				Version: live.Version,
				Live:    live.Status,
				Ready:   ready.Status,
			}
			if readyErr != nil {
				view.Ready = "not_ready"
			}
			if err := render(c, env, view); err != nil {
				return err
			}
			if readyErr != nil {
				return cli.Exit("server is not ready", 1)
			}
			return nil
		},
	}
}

// VersionCommand prints build information.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show build information",
		Action: func(c *cli.Context) error {
			env, err := GetEnv(c)
			if err != nil {
				return err
			}
			return render(c, env, buildinfo.Get())
		},
	}
}

// ConfigCommand manages the CLI config file.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "CLI configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the effective configuration",
				Action: func(c *cli.Context) error {
					env, err := GetEnv(c)
					if err != nil {
						return err
					}
					return render(c, env, env.Config)
				},
			},
			{
				Name:  "path",
				Usage: "Print the config file path",
				Action: func(c *cli.Context) error {
					env, err := GetEnv(c)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(c.App.Writer, env.ConfigPath)
					return err
				},
			},
			{
				Name:      "set",
				Usage:     "Set a key in the config file",
				ArgsUsage: "KEY VALUE",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return cli.Exit("usage: config set KEY VALUE", 2)
					}
					env, err := GetEnv(c)
					if err != nil {
						return err
					}

					// Start from the file, not the flag-merged view.
					cfg, err := config.Load(env.ConfigPath)
					if err != nil {
						return err
					}
					if err := cfg.Set(c.Args().Get(0), c.Args().Get(1)); err != nil {
						return err
					}
					return config.Save(cfg, env.ConfigPath)
				},
			},
		},
	}
}
