package messaging

import (
	"log"
)

// CommandHandler is called for each decoded inbound command.
type CommandHandler interface {
	HandleBreakdownCommand(env *Envelope, cmd BreakdownCommand)
	HandleShiftCloseCommand(env *Envelope, cmd ShiftCloseCommand)
}

// Consumer subscribes to the commands topic and routes messages to the handler.
type Consumer struct {
	client  *Client
	topic   string
	handler CommandHandler
}

func NewConsumer(client *Client, topic string, handler CommandHandler) *Consumer {
	return &Consumer{
		client:  client,
		topic:   topic,
		handler: handler,
	}
}

func (c *Consumer) Start() error {
	return c.client.Subscribe(c.topic, c.handleMessage)
}

func (c *Consumer) handleMessage(_ string, payload []byte) {
	env, err := DecodeEnvelope(payload)
	if err != nil {
		log.Printf("consumer: decode error: %v", err)
		return
	}

	switch p := env.Payload.(type) {
	case BreakdownCommand:
		c.handler.HandleBreakdownCommand(env, p)
	case ShiftCloseCommand:
		c.handler.HandleShiftCloseCommand(env, p)
	default:
		log.Printf("consumer: unhandled payload type: %T", p)
	}
}
