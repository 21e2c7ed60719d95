package ocrlens

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"
	"github.com/streadway/amqp"
)

// PreprocessorRpcWorker consumes the queue named after its stage, applies
// the stage and forwards the request to the OCR queue.
type PreprocessorRpcWorker struct {
	rabbitConfig RabbitConfig
	conn         *amqp.Connection
	channel      *amqp.Channel
	tag          string
	Done         chan error
	bindingKey   string
	preprocessor Preprocessor
}

func NewPreprocessorRpcWorker(rc RabbitConfig, preprocessor string, pipeline *Pipeline) (*PreprocessorRpcWorker, error) {

	p, err := NewPreprocessor(preprocessor, pipeline)
	if err != nil {
		return nil, fmt.Errorf("no preprocessor found for %q: %v", preprocessor, err)
	}
	bindingKey := preprocessor
	if stage, ok := p.(StagePreprocessor); ok {
		// aliases like "binary" still bind to the canonical queue
		bindingKey = stage.Stage.String()
	}

	preprocessorRpcWorker := &PreprocessorRpcWorker{
		rabbitConfig: rc,
		conn:         nil,
		channel:      nil,
		tag:          ksuid.New().String(),
		Done:         make(chan error, 1),
		bindingKey:   bindingKey,
		preprocessor: p,
	}
	return preprocessorRpcWorker, nil
}

func (w *PreprocessorRpcWorker) Run() error {

	var err error
	log.Info().Str("component", "PREPROCESSOR_WORKER").
		Str("AmqpURI", StripPasswordFromUrl(w.rabbitConfig.AmqpURI)).
		Msg("dialing amqpURI...")

	w.conn, err = amqp.Dial(w.rabbitConfig.AmqpURI)
	if err != nil {
		return err
	}

	go func() {
		if closeErr := <-w.conn.NotifyClose(make(chan *amqp.Error)); closeErr != nil {
			log.Warn().Str("component", "PREPROCESSOR_WORKER").Str("reason", closeErr.Error()).Msg("connection closed")
		}
	}()

	log.Info().Str("component", "PREPROCESSOR_WORKER").Msg("got Connection, getting Channel")
	w.channel, err = w.conn.Channel()
	if err != nil {
		return err
	}
	if err = w.channel.Qos(1, 0, true); err != nil {
		return err
	}

	if err = w.channel.ExchangeDeclare(
		w.rabbitConfig.Exchange,     // name of the exchange
		w.rabbitConfig.ExchangeType, // type
		true,                        // durable
		false,                       // delete when complete
		false,                       // internal
		false,                       // noWait
		nil,                         // arguments
	); err != nil {
		return err
	}

	// just call the queue the same name as the binding key, since
	// there is no reason to have a different name.
	queueName := w.bindingKey

	queue, err := w.channel.QueueDeclare(
		queueName, // name of the queue
		true,      // durable
		false,     // delete when usused
		false,     // exclusive
		false,     // noWait
		nil,       // arguments
	)
	if err != nil {
		return err
	}

	if err = w.channel.QueueBind(
		queue.Name,              // name of the queue
		w.bindingKey,            // bindingKey
		w.rabbitConfig.Exchange, // sourceExchange
		false,                   // noWait
		nil,                     // arguments
	); err != nil {
		return err
	}

	log.Info().Str("component", "PREPROCESSOR_WORKER").
		Str("tag", w.tag).
		Str("bindingKey", w.bindingKey).
		Msg("Queue bound to Exchange, starting Consume")
	deliveries, err := w.channel.Consume(
		queue.Name, // name
		w.tag,      // consumerTag,
		false,      // noAck
		false,      // exclusive
		false,      // noLocal
		false,      // noWait
		nil,        // arguments
	)
	if err != nil {
		return err
	}

	go w.handle(deliveries, w.Done)

	return nil
}

func (w *PreprocessorRpcWorker) Shutdown() error {
	// will close() the deliveries channel
	if err := w.channel.Cancel(w.tag, true); err != nil {
		return fmt.Errorf("worker cancel failed: %s", err)
	}

	if err := w.conn.Close(); err != nil {
		return fmt.Errorf("AMQP connection close error: %s", err)
	}

	defer log.Info().Str("component", "PREPROCESSOR_WORKER").Msg("Shutdown OK")

	// wait for handle() to exit
	return <-w.Done
}

func (w *PreprocessorRpcWorker) handle(deliveries <-chan amqp.Delivery, done chan error) {
	for d := range deliveries {
		log.Info().Str("component", "PREPROCESSOR_WORKER").
			Int("size", len(d.Body)).
			Uint64("DeliveryTag", d.DeliveryTag).
			Str("ReplyTo", d.ReplyTo).
			Msg("got delivery")

		if err := w.handleDelivery(d); err != nil {
			log.Error().Err(err).Str("component", "PREPROCESSOR_WORKER").Msg("Error handling delivery in preprocessor.")
			w.replyError(d, err)
		}
		if err := d.Ack(false); err != nil {
			log.Warn().Err(err).Str("component", "PREPROCESSOR_WORKER").Msg("Ack() was not successful")
		}

	}
	log.Info().Str("component", "PREPROCESSOR_WORKER").Msg("handle: deliveries channel closed")
	done <- fmt.Errorf("handle: deliveries channel closed")
}

// forward reads a request, applies the preprocessor and returns the
// request body and the routing key it goes to next.
func (w *PreprocessorRpcWorker) forward(body []byte) ([]byte, string, error) {
	ocrRequest := OcrRequest{}
	if err := json.Unmarshal(body, &ocrRequest); err != nil {
		return nil, "", errors.Wrap(err, "error unmarshaling json")
	}

	log.Info().Str("component", "PREPROCESSOR_WORKER").
		Str("RequestID", ocrRequest.RequestID).Str("descriptor", w.bindingKey).
		Msg("Preprocess request via descriptor")
	if err := w.preprocessor.preprocess(&ocrRequest); err != nil {
		return nil, "", errors.Wrapf(err, "error doing %s on %v", w.bindingKey, ocrRequest)
	}

	routingKey := ocrRequest.nextPreprocessor(w.rabbitConfig.RoutingKey)
	ocrRequestJson, err := json.Marshal(ocrRequest)
	if err != nil {
		return nil, "", err
	}
	return ocrRequestJson, routingKey, nil
}

func (w *PreprocessorRpcWorker) handleDelivery(d amqp.Delivery) error {

	ocrRequestJson, routingKey, err := w.forward(d.Body)
	if err != nil {
		return err
	}

	log.Info().Str("component", "PREPROCESSOR_WORKER").Str("routingKey", routingKey).
		Msg("publishing with routing key")

	if err := w.channel.Publish(
		w.rabbitConfig.Exchange, // publish to an exchange
		routingKey,              // routing to 0 or more queues
		false,                   // mandatory
		false,                   // immediate
		amqp.Publishing{
			Headers:         amqp.Table{},
			ContentType:     "application/json",
			ContentEncoding: "",
			Body:            ocrRequestJson,
			DeliveryMode:    amqp.Transient, // 1=non-persistent, 2=persistent
			Priority:        d.Priority,
			ReplyTo:         d.ReplyTo,
			CorrelationId:   d.CorrelationId,
		},
	); err != nil {
		return err
	}
	log.Info().Str("component", "PREPROCESSOR_WORKER").Msg("handleDelivery succeeded")

	return nil
}

// replyError answers the waiting client directly so it does not run into
// its timeout.
func (w *PreprocessorRpcWorker) replyError(d amqp.Delivery, cause error) {
	if d.ReplyTo == "" {
		return
	}
	body, err := json.Marshal(errorResult("", cause))
	if err != nil {
		return
	}
	if err := w.channel.Publish(
		w.rabbitConfig.Exchange,
		d.ReplyTo,
		false,
		false,
		amqp.Publishing{
			ContentType:   "application/json",
			Body:          body,
			DeliveryMode:  amqp.Transient,
			CorrelationId: d.CorrelationId,
		},
	); err != nil {
		log.Error().Err(err).Str("component", "PREPROCESSOR_WORKER").Msg("could not report preprocessing error")
	}
}
