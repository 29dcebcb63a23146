package nats_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/infrastructure/messaging"
	"fraud-risk-engine/internal/infrastructure/messaging/nats"
)

type recordingConn struct {
	msgs    []*natsgo.Msg
	err     error
	drained bool
}

func (c *recordingConn) PublishMsg(msg *natsgo.Msg) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *recordingConn) Drain() error {
	c.drained = true
	return nil
}

func TestPublisher_SubjectAndHeaders(t *testing.T) {
	conn := &recordingConn{}
	p := nats.NewPublisherWithConn(conn, "fraud")
	alert := &fraud.FraudAlert{ID: uuid.New(), UserID: uuid.New(), RiskScore: 85}

	require.NoError(t, p.PublishAlertCreated(context.Background(), alert))

	require.Len(t, conn.msgs, 1)
	msg := conn.msgs[0]
	assert.Equal(t, "fraud.alert.created", msg.Subject)
	assert.Equal(t, fraud.EventAlertCreated, msg.Header.Get(messaging.HeaderEventType))
	assert.Equal(t, alert.UserID.String(), msg.Header.Get("user_id"))

	var env struct {
		ID   uuid.UUID        `json:"id"`
		Data fraud.FraudAlert `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	assert.Equal(t, env.ID.String(), msg.Header.Get(natsgo.MsgIdHdr))
	assert.Equal(t, 85, env.Data.RiskScore)
}

func TestPublisher_ReviewedSubject(t *testing.T) {
	conn := &recordingConn{}
	p := nats.NewPublisherWithConn(conn, "fraud")

	require.NoError(t, p.PublishAlertReviewed(context.Background(), &fraud.AlertReviewedEvent{UserID: uuid.New()}))
	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "fraud.alert.reviewed", conn.msgs[0].Subject)
}

func TestPublisher_Errors(t *testing.T) {
	boom := errors.New("no responders")
	p := nats.NewPublisherWithConn(&recordingConn{err: boom}, "fraud")
	err := p.PublishAlertCreated(context.Background(), &fraud.FraudAlert{UserID: uuid.New()})
	assert.ErrorIs(t, err, boom)

	conn := &recordingConn{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = nats.NewPublisherWithConn(conn, "fraud").PublishAlertCreated(ctx, &fraud.FraudAlert{UserID: uuid.New()})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, conn.msgs)
}

func TestPublisher_CloseDrains(t *testing.T) {
	conn := &recordingConn{}
	require.NoError(t, nats.NewPublisherWithConn(conn, "fraud").Close())
	assert.True(t, conn.drained)
}
