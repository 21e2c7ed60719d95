package ocrlens

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"
	"github.com/streadway/amqp"
)

const (
	// RPCResponseTimeout is used when a request does not carry its own timeout.
	RPCResponseTimeout = time.Minute * 10
	rpcTimeoutStatus   = "timeout"
)

// ErrRPCTimeout is returned when no worker answered in time.
var ErrRPCTimeout = errors.New("timeout waiting for RPC response")

type OcrRpcClient struct {
	rabbitConfig RabbitConfig
	connection   *amqp.Connection
	channel      *amqp.Channel
}

func NewOcrRpcClient(rc RabbitConfig) (*OcrRpcClient, error) {
	ocrRpcClient := &OcrRpcClient{
		rabbitConfig: rc,
	}
	return ocrRpcClient, nil
}

// DecodeImage publishes the request to the queue of its pre-OCR stage, or
// straight to the OCR queue, and waits for the correlated reply.
func (c *OcrRpcClient) DecodeImage(ocrRequest *OcrRequest, requestID string) (OcrResult, error) {
	var err error

	correlationID := ksuid.New().String()
	logger := log.With().Str("component", "OCR_CLIENT").Str("RequestID", requestID).Logger()

	logger.Info().Str("AmqpURI", StripPasswordFromUrl(c.rabbitConfig.AmqpURI)).Msg("dialing rabbitMQ")
	c.connection, err = amqp.Dial(c.rabbitConfig.AmqpURI)
	if err != nil {
		return OcrResult{}, err
	}
	defer c.connection.Close()

	c.channel, err = c.connection.Channel()
	if err != nil {
		return OcrResult{}, err
	}

	if err := c.channel.ExchangeDeclare(
		c.rabbitConfig.Exchange,     // name
		c.rabbitConfig.ExchangeType, // type
		true,                        // durable
		false,                       // auto-deleted
		false,                       // internal
		false,                       // noWait
		nil,                         // arguments
	); err != nil {
		return OcrResult{}, err
	}

	rpcResponseChan := make(chan OcrResult, 1)

	callbackQueue, err := c.subscribeCallbackQueue(correlationID, rpcResponseChan)
	if err != nil {
		return OcrResult{}, err
	}

	// Reliable publisher confirms require confirm.select support from the
	// connection.
	if c.rabbitConfig.Reliable {
		if err := c.channel.Confirm(false); err != nil {
			return OcrResult{}, err
		}

		ack, nack := c.channel.NotifyConfirm(make(chan uint64, 1), make(chan uint64, 1))

		defer confirmDelivery(ack, nack)
	}

	// workers might not reach the url, so the image travels in the message
	if err := ocrRequest.loadImage(); err != nil {
		logger.Error().Err(err).Msg("error loading image")
		return OcrResult{}, err
	}

	routingKey := ocrRequest.nextPreprocessor(c.rabbitConfig.RoutingKey)
	logger.Info().Str("routingKey", routingKey).Msg("publishing with routing key")

	ocrRequestJson, err := json.Marshal(ocrRequest)
	if err != nil {
		return OcrResult{}, err
	}

	if err = c.channel.Publish(
		c.rabbitConfig.Exchange, // publish to an exchange
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			Headers:         amqp.Table{},
			ContentType:     "application/json",
			ContentEncoding: "",
			Body:            ocrRequestJson,
			DeliveryMode:    amqp.Transient, // 1=non-persistent, 2=persistent
			Priority:        c.rabbitConfig.priority(ocrRequest.DocType),
			ReplyTo:         callbackQueue.Name,
			CorrelationId:   correlationID,
			// a bunch of application/implementation-specific fields
		},
	); err != nil {
		return OcrResult{}, err
	}

	timeout := RPCResponseTimeout
	if ocrRequest.TimeOut > 0 {
		timeout = time.Duration(ocrRequest.TimeOut) * time.Second
	}
	return CheckReply(rpcResponseChan, timeout)
}

func (c *OcrRpcClient) subscribeCallbackQueue(correlationID string, rpcResponseChan chan OcrResult) (amqp.Queue, error) {

	// declare a callback queue where we will receive rpc responses
	callbackQueue, err := c.channel.QueueDeclare(
		"",    // name -- let rabbit generate a random one
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // noWait
		nil,   // arguments
	)
	if err != nil {
		return amqp.Queue{}, err
	}

	// bind the callback queue to an exchange + routing key
	if err = c.channel.QueueBind(
		callbackQueue.Name,      // name of the queue
		callbackQueue.Name,      // bindingKey
		c.rabbitConfig.Exchange, // sourceExchange
		false,                   // noWait
		nil,                     // arguments
	); err != nil {
		return amqp.Queue{}, err
	}

	log.Debug().Str("component", "OCR_CLIENT").Str("callbackQueue", callbackQueue.Name).Msg("callback queue declared")

	deliveries, err := c.channel.Consume(
		callbackQueue.Name, // name
		correlationID,      // consumerTag,
		true,               // noAck
		true,               // exclusive
		false,              // noLocal
		false,              // noWait
		nil,                // arguments
	)
	if err != nil {
		return amqp.Queue{}, err
	}

	go handleRpcResponse(deliveries, correlationID, rpcResponseChan)

	return callbackQueue, nil

}

func handleRpcResponse(deliveries <-chan amqp.Delivery, correlationID string, rpcResponseChan chan OcrResult) {
	for d := range deliveries {
		if d.CorrelationId != correlationID {
			log.Warn().Str("component", "OCR_CLIENT").Str("CorrelationId", d.CorrelationId).
				Msg("ignoring delivery w/ unexpected correlation id")
			continue
		}
		log.Info().Str("component", "OCR_CLIENT").Int("size", len(d.Body)).
			Uint64("DeliveryTag", d.DeliveryTag).Msg("got reply")

		ocrResult := OcrResult{}
		if err := json.Unmarshal(d.Body, &ocrResult); err != nil {
			log.Error().Err(err).Str("component", "OCR_CLIENT").Msg("error unmarshaling rpc reply")
			ocrResult = OcrResult{Text: string(d.Body), Status: "error"}
		}
		rpcResponseChan <- ocrResult
		return
	}
}

// CheckReply waits for the worker's reply on rpcResponseChan.
func CheckReply(rpcResponseChan chan OcrResult, timeout time.Duration) (OcrResult, error) {
	select {
	case ocrResult := <-rpcResponseChan:
		if ocrResult.Status == "error" {
			return ocrResult, errorFromKind(ocrResult.ErrorKind, ocrResult.Text)
		}
		return ocrResult, nil
	case <-time.After(timeout):
		return OcrResult{Status: rpcTimeoutStatus}, ErrRPCTimeout
	}
}

func confirmDelivery(ack, nack chan uint64) {
	select {
	case tag := <-ack:
		log.Info().Str("component", "OCR_CLIENT").Uint64("tag", tag).Msg("confirmed delivery")
	case tag := <-nack:
		log.Warn().Str("component", "OCR_CLIENT").Uint64("tag", tag).Msg("failed to confirm delivery")
	}
}
