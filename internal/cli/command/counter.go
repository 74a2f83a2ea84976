package command

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tallymesh/internal/core/domain"
)

var nameFlag = &cli.StringFlag{
	Name:    "name",
	Aliases: []string{"n"},
	Usage:   "Counter name; empty selects the global counter",
}

// CounterCommand returns the counter subcommand group.
func CounterCommand() *cli.Command {
	amountFlag := &cli.Float64Flag{
		Name:    "amount",
		Aliases: []string{"a"},
		Usage:   "Amount between 1 and 1000 (server default 1)",
	}

	return &cli.Command{
		Name:    "counter",
		Aliases: []string{"cnt"},
		Usage:   "Counter operations",
		Subcommands: []*cli.Command{
			{
				Name:   "get",
				Usage:  "Show the counter snapshot",
				Flags:  []cli.Flag{nameFlag},
				Action: counterGet,
			},
			{
				Name:    "increment",
				Aliases: []string{"inc"},
				Usage:   "Add to the counter",
				Flags:   []cli.Flag{nameFlag, amountFlag},
				Action:  counterIncrement,
			},
			{
				Name:    "decrement",
				Aliases: []string{"dec"},
				Usage:   "Subtract from the counter",
				Flags:   []cli.Flag{nameFlag, amountFlag},
				Action:  counterDecrement,
			},
		},
	}
}

// amountArg returns the --amount value, or nil to let the server
// apply its default.
func amountArg(c *cli.Context) *float64 {
	if !c.IsSet("amount") {
		return nil
	}
	v := c.Float64("amount")
	return &v
}

func counterGet(c *cli.Context) error {
	return counterCall(c, func(env *Env, ctx context.Context) (domain.CounterState, error) {
		return env.Client.GetCounter(ctx, c.String("name"))
	})
}

func counterIncrement(c *cli.Context) error {
	return counterCall(c, func(env *Env, ctx context.Context) (domain.CounterState, error) {
		return env.Client.Increment(ctx, c.String("name"), amountArg(c))
	})
}

func counterDecrement(c *cli.Context) error {
	return counterCall(c, func(env *Env, ctx context.Context) (domain.CounterState, error) {
		return env.Client.Decrement(ctx, c.String("name"), amountArg(c))
	})
}

func counterCall(c *cli.Context, fn func(*Env, context.Context) (domain.CounterState, error)) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	st, err := fn(env, ctx)
	if err != nil {
		return err
	}
	return render(c, env, st)
}
