package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/raniellyferreira/redis-lite/protocol"
)

// pingCommand checks that a server answers PING, for use as a health check
func pingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "check that a running server answers PING",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "127.0.0.1:6379", Usage: "server address"},
			&cli.DurationFlag{Name: "timeout", Value: 2 * time.Second, Usage: "connect and reply timeout"},
		},
		Action: func(c *cli.Context) error {
			reply, err := ping(c.Context, c.String("addr"), c.Duration("timeout"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, reply)
			return nil
		},
	}
}

// ping sends a single PING to addr and returns the reply text
func ping(ctx context.Context, addr string, timeout time.Duration) (string, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("connect %s: %w", addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}

	w := protocol.NewWriter(conn)
	if err := w.WriteCommand("PING"); err != nil {
		return "", err
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("send PING: %w", err)
	}

	reply, err := protocol.NewReader(conn).ReadNext()
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	if reply.IsError() {
		return "", fmt.Errorf("server replied %s", reply.String())
	}
	return reply.String(), nil
}
