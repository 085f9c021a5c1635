package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisher_PublishEncodesEvent(t *testing.T) {
	config := mocks.NewTestConfig()
	config.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, config)

	reservationID := uuid.New()
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var decoded LifecycleEvent
		if err := json.Unmarshal(val, &decoded); err != nil {
			return err
		}
		if decoded.ReservationID != reservationID || decoded.Type != LifecycleReservationConfirmed {
			return errors.New("unexpected payload")
		}
		return nil
	})

	publisher := NewKafkaPublisherWithProducer(producer, "reservation-lifecycle")
	event := NewLifecycleEvent(LifecycleReservationConfirmed, reservationID, uuid.New(), "buyer-1", time.Now())
	event.TicketRef = "TKT-20260101-ABCDEF"

	require.NoError(t, publisher.Publish(context.Background(), event))
	require.NoError(t, publisher.Close())
}

func TestKafkaPublisher_PublishReturnsSendError(t *testing.T) {
	config := mocks.NewTestConfig()
	config.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, config)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewKafkaPublisherWithProducer(producer, "reservation-lifecycle")
	err := publisher.Publish(context.Background(),
		NewLifecycleEvent(LifecycleReservationExpired, uuid.New(), uuid.New(), "buyer-1", time.Now()))

	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, publisher.Close())
}

func TestLifecycleEvent_PartitionKeyIsReservation(t *testing.T) {
	reservationID := uuid.New()
	event := NewLifecycleEvent(LifecycleReservationCreated, reservationID, uuid.New(), "buyer-1", time.Now())
	assert.Equal(t, reservationID.String(), event.GetPartitionKey())
}
