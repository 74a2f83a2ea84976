package command

import (
	"github.com/urfave/cli/v2"
)

// PresenceCommand returns the presence subcommand group.
func PresenceCommand() *cli.Command {
	return &cli.Command{
		Name:  "presence",
		Usage: "Connection presence",
		Subcommands: []*cli.Command{
			{
				Name:   "get",
				Usage:  "Show the number of connected presence sockets",
				Action: presenceGet,
			},
		},
	}
}

type presenceView struct {
	Count int `json:"count" yaml:"count"`
}

func presenceGet(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	n, err := env.Client.ConnectionCount(ctx)
	if err != nil {
		return err
	}
	return render(c, env, presenceView{Count: n})
}
