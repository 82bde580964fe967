package natsconn

import (
	"fmt"
	"time"

	"blogpost-backend/pkg/logger"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Embedded is the NATS_URL value that starts an in-process server.
const Embedded = "embedded"

// Conn is a NATS connection plus the embedded server backing it, if any.
type Conn struct {
	*nats.Conn
	server *server.Server
}

// Connect dials url, or starts an embedded server when url is "embedded".
func Connect(url, name string) (*Conn, error) {
	if url == Embedded {
		ns, err := RunEmbedded()
		if err != nil {
			return nil, err
		}
		nc, err := dial(ns.ClientURL(), name)
		if err != nil {
			ns.Shutdown()
			return nil, fmt.Errorf("connect to embedded NATS: %w", err)
		}
		return &Conn{Conn: nc, server: ns}, nil
	}

	nc, err := dial(url, name)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Conn{Conn: nc}, nil
}

func dial(url, name string) (*nats.Conn, error) {
	log := logger.Named("NATS")
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
}

// RunEmbedded starts a NATS server on a random port and waits until it accepts clients.
func RunEmbedded() (*server.Server, error) {
	ns, err := server.NewServer(&server.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server failed to start")
	}
	return ns, nil
}

// Close flushes pending publishes, closes the connection and stops the embedded server.
func (c *Conn) Close() {
	if c.Conn != nil {
		_ = c.Conn.FlushTimeout(2 * time.Second)
		c.Conn.Close()
	}
	if c.server != nil {
		c.server.Shutdown()
		c.server.WaitForShutdown()
	}
}
