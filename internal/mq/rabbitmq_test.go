package mq

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestHeadersToAttributes(t *testing.T) {
	assert.Nil(t, headersToAttributes(nil))

	attrs := headersToAttributes(amqp.Table{
		"kind":  "verification",
		"raw":   []byte("bytes"),
		"count": int32(3),
	})
	assert.Equal(t, map[string]string{
		"kind":  "verification",
		"raw":   "bytes",
		"count": "3",
	}, attrs)
}

func TestDeliveryMode(t *testing.T) {
	assert.Equal(t, uint8(amqp.Persistent), (&RabbitMQClient{queueDurable: true}).deliveryMode())
	assert.Equal(t, uint8(amqp.Transient), (&RabbitMQClient{}).deliveryMode())
}

func TestNewMessageID(t *testing.T) {
	a, b := newMessageID(), newMessageID()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
