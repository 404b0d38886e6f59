package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/app"
)

func main() {
	cmd := &cli.Command{
		Name:  "opm",
		Usage: "Order and permission management API with live notifications",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db-path",
				Value:   "./opm.sqlite",
				Sources: cli.EnvVars("OPM_DB_PATH"),
				Usage:   "SQLite file path",
			},
			&cli.StringFlag{
				Name:    "addr",
				Value:   ":8080",
				Sources: cli.EnvVars("OPM_ADDR"),
				Usage:   "HTTP listen address",
			},
			&cli.StringFlag{
				Name:    "jwt-secret",
				Sources: cli.EnvVars("OPM_JWT_SECRET"),
				Usage:   "HMAC secret used to verify bearer tokens",
			},
			&cli.StringFlag{
				Name:    "order-prefix",
				Value:   "QESPL",
				Sources: cli.EnvVars("OPM_ORDER_PREFIX"),
				Usage:   "Organisation tag embedded in order numbers",
			},
			&cli.IntFlag{
				Name:    "max-sequence-attempts",
				Value:   16,
				Sources: cli.EnvVars("OPM_MAX_SEQUENCE_ATTEMPTS"),
				Usage:   "Retries when a generated order number collides",
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Sources: cli.EnvVars("OPM_WEBHOOK_URL"),
				Usage:   "Optional endpoint receiving every notification delivery",
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Sources: cli.EnvVars("OPM_WEBHOOK_SECRET"),
				Usage:   "HMAC-SHA256 signing secret for outbound webhook requests",
			},
			&cli.DurationFlag{
				Name:    "dispatch-interval",
				Value:   2 * time.Second,
				Sources: cli.EnvVars("OPM_DISPATCH_INTERVAL"),
				Usage:   "Outbox poll interval",
			},
			&cli.FloatFlag{
				Name:    "handshake-rate",
				Value:   5,
				Sources: cli.EnvVars("OPM_HANDSHAKE_RATE"),
				Usage:   "Websocket handshakes per second per client IP",
			},
			&cli.IntFlag{
				Name:    "handshake-burst",
				Value:   10,
				Sources: cli.EnvVars("OPM_HANDSHAKE_BURST"),
				Usage:   "Websocket handshake burst per client IP",
			},
			&cli.StringSliceFlag{
				Name:    "allowed-origins",
				Sources: cli.EnvVars("OPM_ALLOWED_ORIGINS"),
				Usage:   "Origins accepted on the websocket handshake (* for any)",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP and websocket server (default)",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "Apply database migrations and exit",
				Action: func(ctx context.Context, c *cli.Command) error {
					store, err := app.OpenStore(ctx, c.String("db-path"))
					if err != nil {
						return err
					}
					defer store.Close()
					version, err := store.SchemaVersion(ctx)
					if err != nil {
						return err
					}
					log.Printf("migrations applied db=%s version=%d", c.String("db-path"), version)
					return nil
				},
			},
			{
				Name:  "actor",
				Usage: "Create or update an actor",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true, Usage: "Actor id as issued by the identity provider"},
					&cli.StringFlag{Name: "username", Required: true, Usage: "Display name"},
					&cli.StringFlag{Name: "role", Value: "user", Usage: "admin or user"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					store, err := app.OpenStore(ctx, c.String("db-path"))
					if err != nil {
						return err
					}
					defer store.Close()
					actor, err := store.Actors.Upsert(ctx, c.String("id"), c.String("username"), c.String("role"))
					if err != nil {
						return err
					}
					log.Printf("actor saved id=%s username=%s role=%s", actor.ID, actor.Username, actor.Role)
					return nil
				},
			},
			{
				Name:  "grant",
				Usage: "Replace the actions an actor holds on a resource",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "actor", Required: true, Usage: "Grantee actor id"},
					&cli.StringFlag{Name: "resource", Required: true, Usage: "orders, users or permissions"},
					&cli.StringFlag{Name: "actions", Usage: "Comma separated actions; empty revokes"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					store, err := app.OpenStore(ctx, c.String("db-path"))
					if err != nil {
						return err
					}
					defer store.Close()
					grant, err := store.Grants.Bootstrap(ctx, c.String("actor"), c.String("resource"), splitList(c.String("actions")))
					if err != nil {
						return err
					}
					log.Printf("grant saved actor=%s resource=%s actions=%v", grant.ActorID, grant.Resource, grant.Actions)
					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func serve(ctx context.Context, c *cli.Command) error {
	cfg := app.Config{
		Addr:                c.String("addr"),
		DBPath:              c.String("db-path"),
		JWTSecret:           c.String("jwt-secret"),
		OrderPrefix:         c.String("order-prefix"),
		MaxSequenceAttempts: int(c.Int("max-sequence-attempts")),
		WebhookURL:          c.String("webhook-url"),
		WebhookSecret:       c.String("webhook-secret"),
		DispatchInterval:    c.Duration("dispatch-interval"),
		HandshakeRate:       c.Float("handshake-rate"),
		HandshakeBurst:      int(c.Int("handshake-burst")),
		AllowedOrigins:      c.StringSlice("allowed-origins"),
	}

	server, closer, err := app.NewServer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer func() {
		if closeErr := closer.Close(); closeErr != nil {
			log.Printf("close resources: %v", closeErr)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.Addr)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
	case sig := <-sigCh:
		log.Printf("received signal %s", sig)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
