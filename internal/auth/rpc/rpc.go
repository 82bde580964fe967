package rpc

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	authdomain "blogpost-backend/internal/auth/domain"
	"blogpost-backend/internal/auth/token"
	"blogpost-backend/pkg/apperror"
	"blogpost-backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	CorrelationHeader = "Correlation-Id"

	ActionGetToken   = "get_token"
	ActionIntrospect = "introspect"

	queueGroup = "auth-token"
)

var ErrCorrelationMismatch = errors.New("reply correlation id does not match request")

type Request struct {
	Action string `json:"action"`
	Token  string `json:"token,omitempty"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Reply struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	User    *User  `json:"user,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Introspector resolves an access token to its session.
type Introspector interface {
	Validate(ctx context.Context, plain string, ability authdomain.Ability) (*token.Session, error)
}

// Responder answers token requests published on a subject.
type Responder struct {
	nc        *nats.Conn
	subject   string
	validator Introspector
	sub       *nats.Subscription
	log       *zap.Logger
}

func NewResponder(nc *nats.Conn, subject string, validator Introspector) *Responder {
	return &Responder{
		nc:        nc,
		subject:   subject,
		validator: validator,
		log:       logger.Named("TokenResponder"),
	}
}

// Start subscribes in a queue group so that several responders share the load.
func (r *Responder) Start(ctx context.Context) error {
	sub, err := r.nc.QueueSubscribe(r.subject, queueGroup, func(msg *nats.Msg) {
		r.handle(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", r.subject, err)
	}
	r.sub = sub
	r.log.Info("listening", zap.String("subject", r.subject))
	return nil
}

func (r *Responder) Stop() {
	if r.sub != nil {
		_ = r.sub.Drain()
	}
}

func (r *Responder) handle(ctx context.Context, msg *nats.Msg) {
	correlationID := msg.Header.Get(CorrelationHeader)

	var req Request
	var reply Reply
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		reply = Reply{Error: "malformed request"}
	} else {
		reply = r.dispatch(ctx, req)
	}

	data, err := json.Marshal(reply)
	if err != nil {
		r.log.Error("marshal reply", zap.Error(err))
		return
	}

	out := nats.NewMsg(msg.Reply)
	out.Data = data
	out.Header.Set(CorrelationHeader, correlationID)
	if err := msg.RespondMsg(out); err != nil {
		r.log.Warn("reply failed", zap.String("correlation_id", correlationID), zap.Error(err))
		return
	}
	r.log.Debug("replied",
		zap.String("action", req.Action),
		zap.String("correlation_id", correlationID),
		zap.Bool("success", reply.Success),
	)
}

func (r *Responder) dispatch(ctx context.Context, req Request) Reply {
	switch req.Action {
	case ActionGetToken:
		tok, err := serviceToken()
		if err != nil {
			r.log.Error("generate service token", zap.Error(err))
			return Reply{Error: apperror.MsgInternal}
		}
		return Reply{Success: true, Token: tok}

	case ActionIntrospect:
		session, err := r.validator.Validate(ctx, req.Token, authdomain.AbilityAccessAPI)
		if err != nil {
			return Reply{Error: apperror.From(err).Message}
		}
		return Reply{Success: true, User: &User{
			ID:    session.User.ID,
			Email: session.User.Email,
			Name:  session.User.Name,
		}}

	default:
		return Reply{Error: fmt.Sprintf("unknown action %q", req.Action)}
	}
}

func serviceToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Client sends token requests and waits for the matching reply.
type Client struct {
	nc      *nats.Conn
	subject string
}

func NewClient(nc *nats.Conn, subject string) *Client {
	return &Client{nc: nc, subject: subject}
}

// Request blocks until a reply arrives or ctx is done.
func (c *Client) Request(ctx context.Context, action, tok string) (*Reply, error) {
	data, err := json.Marshal(Request{Action: action, Token: tok})
	if err != nil {
		return nil, err
	}

	correlationID := uuid.NewString()
	msg := nats.NewMsg(c.subject)
	msg.Data = data
	msg.Header.Set(CorrelationHeader, correlationID)

	res, err := c.nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", action, err)
	}
	if res.Header.Get(CorrelationHeader) != correlationID {
		return nil, ErrCorrelationMismatch
	}

	var reply Reply
	if err := json.Unmarshal(res.Data, &reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return &reply, nil
}
