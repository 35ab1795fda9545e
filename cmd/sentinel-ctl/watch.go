package main

import (
	"context"
	"fmt"
	"time"

	"sentinel-guard/internal/client"
	"sentinel-guard/internal/model"
	"sentinel-guard/internal/poller"
)

// runWatch polls one dashboard view and reprints it after every
// successful fetch. Failed fetches keep the last output on screen.
func runWatch(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: sentinel-ctl watch dashboard|hosts|processes|tracing", errUsage)
	}

	switch args[0] {
	case "dashboard":
		return watchView(ctx, a, poller.New[model.DashboardSummary]("dashboard", poller.DashboardInterval, a.api.DashboardSummary, a.logger), a.printSummary)
	case "hosts":
		fetch := func(ctx context.Context) ([]model.HostStatus, error) {
			return a.api.HostMonitorList(ctx, 1, 100)
		}
		return watchView(ctx, a, poller.New("host_status", poller.HostStatusInterval, fetch, a.logger), a.printHostStatus)
	case "processes":
		fetch := func(ctx context.Context) ([]model.ProcessRecord, error) {
			return a.api.Processes(ctx, 1, 100)
		}
		return watchView(ctx, a, poller.New("processes", poller.ProcessInterval, fetch, a.logger), a.printProcesses)
	case "tracing":
		fetch := func(ctx context.Context) ([]model.TracingResult, error) {
			return a.api.TracingResults(ctx, 1, 100)
		}
		return watchView(ctx, a, poller.New("tracing", poller.TracingInterval, fetch, a.logger), a.printTracing)
	}
	return fmt.Errorf("%w: unknown view %q", errUsage, args[0])
}

func watchView[T any](ctx context.Context, a *app, p *poller.Poller[T], render func(T) error) error {
	updates := p.Subscribe()
	go p.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-updates:
			if !ok {
				return nil
			}
			if !a.asJSON {
				fmt.Fprintf(a.out, "\n--- %s @ %s ---\n", p.Name(), time.Now().Format(model.TimeLayout))
			}
			if err := render(v); err != nil {
				return err
			}
		}
	}
}

// runStream tails the IDS stream with the saved session until interrupted.
func runStream(ctx context.Context, a *app, args []string) error {
	if !a.sess.Authenticated() {
		return client.ErrUnauthorized
	}

	stream := client.NewStreamClient(client.StreamConfig{
		URL:               a.config.Application.IDSStreamURL,
		ReconnectInterval: a.config.ReconnectInterval(),
		HandshakeTimeout:  a.config.HandshakeTimeout(),
		PingInterval:      a.config.PingInterval(),
	}, a.sess, a.logger, nil)
	stream.OnDecodeError(func(err error) {
		a.logger.Debugf("Dropped stream frame: %v", err)
	})

	events := make(chan model.ThreatEvent, 64)
	err := stream.Connect(ctx, func(event model.ThreatEvent) {
		select {
		case events <- event:
		default:
		}
	}, func(connected bool) {
		if connected {
			fmt.Fprintf(a.out, "Connected to %s\n", a.config.Application.IDSStreamURL)
		} else {
			fmt.Fprintln(a.out, "Disconnected, reconnecting...")
		}
	})
	if err != nil {
		return err
	}
	defer stream.Disconnect()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			if a.asJSON {
				if err := a.printJSON(e); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintf(a.out, "[%s] %-6s %-20s %s -> %s (%s)\n", e.Timestamp, e.RiskLevel, e.Type, e.SourceIP, e.TargetIP, e.ID)
		}
	}
}
