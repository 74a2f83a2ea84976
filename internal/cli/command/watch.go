package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tallymesh/internal/cli/connection"
	"github.com/yndnr/tallymesh/internal/cli/output"
	"github.com/yndnr/tallymesh/internal/core/domain"
)

// ErrConnectionLost is returned by watch once a socket stops reconnecting.
var ErrConnectionLost = errors.New("connection lost")

// WatchCommand streams counter and connection updates until interrupted.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Stream counter and connection updates",
		Flags: []cli.Flag{
			nameFlag,
			&cli.DurationFlag{
				Name:  "duration",
				Usage: "Stop after this long (0 runs until interrupted)",
			},
			&cli.DurationFlag{
				Name:  "reconnect-interval",
				Usage: "Delay between reconnect attempts",
				Value: connection.DefaultReconnectInterval,
			},
			&cli.IntFlag{
				Name:  "max-reconnects",
				Usage: "Reconnect attempts after an unexpected close",
				Value: connection.DefaultMaxReconnectAttempts,
			},
			&cli.DurationFlag{
				Name:  "ping-interval",
				Usage: "Keepalive interval",
				Value: connection.DefaultPingInterval,
			},
		},
		Action: watch,
	}
}

// watchEvent is one printed line of the stream.
type watchEvent struct {
	Time        string  `json:"time" yaml:"time"`
	Source      string  `json:"source" yaml:"source"`
	Type        string  `json:"type" yaml:"type"`
	Value       *int64  `json:"value,omitempty" yaml:"value,omitempty"`
	Updater     *string `json:"updater,omitempty" yaml:"updater,omitempty"`
	Connections *int    `json:"connections,omitempty" yaml:"connections,omitempty"`
}

func stateEvent(source string, t domain.MessageType, st domain.CounterState) watchEvent {
	v := st.Value
	return watchEvent{
		Time:    time.Now().Format(time.RFC3339),
		Source:  source,
		Type:    string(t),
		Value:   &v,
		Updater: st.LastUpdater,
	}
}

func countEvent(source string, n int) watchEvent {
	return watchEvent{
		Time:        time.Now().Format(time.RFC3339),
		Source:      source,
		Type:        string(domain.TypeConnectionCount),
		Connections: &n,
	}
}

func watch(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := c.Duration("duration"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	events := make(chan watchEvent, 64)
	emit := func(ev watchEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	name := c.String("name")
	if name == "" {
		name = domain.GlobalCounterName
	}
	base := connection.SocketOptions{
		Header:               env.Client.IdentityHeader(),
		TLSConfig:            env.TLS,
		ReconnectInterval:    c.Duration("reconnect-interval"),
		MaxReconnectAttempts: c.Int("max-reconnects"),
		PingInterval:         c.Duration("ping-interval"),
		OnError: func(err error) {
			fmt.Fprintf(c.App.ErrWriter, "warning: %v\n", err)
		},
	}

	counterOpts := base
	counterOpts.URL = env.Client.WebSocketURL(connection.CounterPath(name) + "/websocket")
	counterOpts.OnCounterState = func(st domain.CounterState) { emit(stateEvent(name, domain.TypeCounterState, st)) }
	counterOpts.OnCounterUpdate = func(st domain.CounterState) { emit(stateEvent(name, domain.TypeCounterUpdate, st)) }
	counterOpts.OnConnectionCount = func(n int) { emit(countEvent(name, n)) }

	presenceOpts := base
	presenceOpts.URL = env.Client.WebSocketURL("/api/connection-counter/websocket")
	presenceOpts.OnConnectionCount = func(n int) { emit(countEvent(domain.GlobalPresenceName, n)) }

	group := connection.NewGroup(connection.NewSocket(counterOpts), connection.NewSocket(presenceOpts))
	defer group.Disconnect()

	spin := output.NewSpinner(c.App.ErrWriter, "connecting to "+env.Client.BaseURL())
	spin.Start()
	if err := group.Connect(ctx); err != nil {
		spin.Fail("connect failed")
		return err
	}
	spin.Success("connected to " + env.Client.BaseURL())

	printEvent := eventPrinter(c.App.Writer, env.Format)
	check := time.NewTicker(250 * time.Millisecond)
	defer check.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if err := printEvent(ev); err != nil {
				return err
			}
		case <-check.C:
			if group.Lost() {
				if err := group.LastError(); err != nil {
					return fmt.Errorf("%w: %v", ErrConnectionLost, err)
				}
				return ErrConnectionLost
			}
		}
	}
}

// eventPrinter returns a writer of one event per line for json and
// table, and one document per event for yaml.
func eventPrinter(w io.Writer, format output.Format) func(watchEvent) error {
	switch format {
	case output.FormatJSON:
		f := &output.JSONFormatter{Compact: true}
		return func(ev watchEvent) error { return f.Format(w, ev) }
	case output.FormatYAML:
		f := &output.YAMLFormatter{}
		return func(ev watchEvent) error {
			if _, err := io.WriteString(w, "---\n"); err != nil {
				return err
			}
			return f.Format(w, ev)
		}
	default:
		return func(ev watchEvent) error {
			t := &output.Table{}
			detail := ""
			switch {
			case ev.Value != nil:
				detail = fmt.Sprintf("value=%d", *ev.Value)
				if ev.Updater != nil {
					detail += " updater=" + *ev.Updater
				}
			case ev.Connections != nil:
				detail = fmt.Sprintf("connections=%d", *ev.Connections)
			}
			t.AddRow(ev.Time, ev.Source, ev.Type, detail)
			return t.RenderWithOptions(w, true)
		}
	}
}
