package command

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"paintboard/internal/draw"
	"paintboard/internal/logging"
	"paintboard/internal/mailbox"
	"paintboard/internal/registry"
	"paintboard/internal/transport"
)

var errNotSent = errors.New("request was not sent")

// session wires one connection, its registry and a controller for a single
// command invocation
type session struct {
	ctrl   *draw.Controller
	client *transport.Client
	box    *mailbox.Mailbox
	logger *zap.Logger
	cancel context.CancelFunc
}

func openSession(ctx context.Context) (*session, error) {
	logger, err := logging.New(cfg.Production(), cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	reg := registry.New(logger)
	client, err := transport.NewClient(serverURL, roomID, reg, logger,
		transport.WithMaxMessageSize(cfg.MaxMessageSize))
	if err != nil {
		return nil, err
	}
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", client.URL(), err)
	}

	ctx, cancel := context.WithCancel(ctx)
	go reg.Run(ctx, cfg.SweepInterval)

	return &session{
		ctrl:   draw.NewController(draw.Session{Registry: reg, Conn: client}, logger, draw.WithTimeout(timeout)),
		client: client,
		box:    mailbox.New(logger),
		logger: logger,
		cancel: cancel,
	}, nil
}

func (s *session) Close() {
	s.ctrl.Close()
	s.box.Close()
	s.client.Close()
	s.cancel()
	s.logger.Sync()
}

// await issues a request through send and blocks until its result arrives
func (s *session) await(ctx context.Context, send func(draw.Handler) bool) (draw.Result, error) {
	ch := make(chan draw.Result, 1)
	if !send(draw.OnMailbox(s.box, func(r draw.Result) { ch <- r })) {
		return draw.Result{}, errNotSent
	}

	select {
	case r := <-ch:
		if r.Err != nil {
			return r, fmt.Errorf("%s: %w", r.Op, r.Err)
		}
		return r, nil
	case <-ctx.Done():
		return draw.Result{}, ctx.Err()
	}
}
