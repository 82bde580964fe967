package rpc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	authdomain "blogpost-backend/internal/auth/domain"
	"blogpost-backend/internal/auth/repository"
	"blogpost-backend/internal/auth/token"
	"blogpost-backend/pkg/database"
	"blogpost-backend/pkg/natsconn"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const subject = "auth.token"

type fixture struct {
	client *Client
	conn   *natsconn.Conn
	pair   *token.Pair
	user   *authdomain.User
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := database.NewInMemory(uuid.NewString())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&authdomain.User{}, &authdomain.Token{}))

	users := repository.NewUserRepository(db)
	tokens := repository.NewTokenRepository(db)
	strategy := token.NewOpaqueStrategy()
	issuer := token.NewIssuer(tokens, strategy, 15*time.Minute, time.Hour)
	validator := token.NewValidator(tokens, users, strategy)

	user := &authdomain.User{Email: "eve@example.com", Name: "Eve", Password: "x"}
	require.NoError(t, users.Create(context.Background(), user))
	pair, err := issuer.Issue(context.Background(), user)
	require.NoError(t, err)

	conn, err := natsconn.Connect(natsconn.Embedded, "rpc-test")
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	responder := NewResponder(conn.Conn, subject, validator)
	require.NoError(t, responder.Start(context.Background()))
	t.Cleanup(responder.Stop)

	return &fixture{client: NewClient(conn.Conn, subject), conn: conn, pair: pair, user: user}
}

func request(t *testing.T, f *fixture, action, tok string) *Reply {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reply, err := f.client.Request(ctx, action, tok)
	require.NoError(t, err)
	return reply
}

func TestGetToken(t *testing.T) {
	f := setup(t)

	first := request(t, f, ActionGetToken, "")
	second := request(t, f, ActionGetToken, "")

	assert.True(t, first.Success)
	assert.Len(t, first.Token, 32)
	assert.NotEqual(t, first.Token, second.Token)
}

func TestIntrospect(t *testing.T) {
	f := setup(t)

	reply := request(t, f, ActionIntrospect, f.pair.Access.Value)
	require.True(t, reply.Success)
	require.NotNil(t, reply.User)
	assert.Equal(t, f.user.ID, reply.User.ID)
	assert.Equal(t, "eve@example.com", reply.User.Email)

	reply = request(t, f, ActionIntrospect, f.pair.Refresh.Value)
	assert.False(t, reply.Success)
	assert.Equal(t, "Invalid ability provided.", reply.Error)

	reply = request(t, f, ActionIntrospect, "nope")
	assert.False(t, reply.Success)
	assert.Nil(t, reply.User)
}

func TestUnknownAction(t *testing.T) {
	f := setup(t)
	reply := request(t, f, "launch", "")
	assert.False(t, reply.Success)
	assert.Contains(t, reply.Error, "launch")
}

func TestReplyEchoesCorrelationID(t *testing.T) {
	f := setup(t)

	data, _ := json.Marshal(Request{Action: ActionGetToken})
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(CorrelationHeader, "abc-123")

	res, err := f.conn.RequestMsg(msg, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", res.Header.Get(CorrelationHeader))
}

func TestRequest_TimesOutWithoutResponder(t *testing.T) {
	conn, err := natsconn.Connect(natsconn.Embedded, "rpc-test")
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err = NewClient(conn.Conn, subject).Request(ctx, ActionGetToken, "")
	assert.Error(t, err)
}
