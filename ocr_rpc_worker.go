package ocrlens

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"
	"github.com/streadway/amqp"
)

type OcrRpcWorker struct {
	workerConfig WorkerConfig
	conn         *amqp.Connection
	channel      *amqp.Channel
	tag          string
	Done         chan error
}

func NewOcrRpcWorker(wc WorkerConfig) (*OcrRpcWorker, error) {
	ocrRpcWorker := &OcrRpcWorker{
		workerConfig: wc,
		conn:         nil,
		channel:      nil,
		// tag is based on ksuid K-Sortable Globally Unique IDs
		tag:  ksuid.New().String(),
		Done: make(chan error, 1),
	}
	return ocrRpcWorker, nil
}

func (w *OcrRpcWorker) Run() error {

	var err error
	queueArgs := make(amqp.Table)
	queueArgs["x-max-priority"] = uint8(9)

	log.Info().
		Str("component", "OCR_WORKER").
		Str("tag", w.tag).
		Str("host", StripPasswordFromUrl(w.workerConfig.AmqpURI)).
		Msg("dialing rabbitMq")

	w.conn, err = amqp.Dial(w.workerConfig.AmqpURI)
	if err != nil {
		log.Warn().
			Str("component", "OCR_WORKER").
			Err(err).
			Str("tag", w.tag).
			Msg("error connecting to rabbitMq")
		return err
	}

	go func() {
		if closeErr := <-w.conn.NotifyClose(make(chan *amqp.Error)); closeErr != nil {
			log.Warn().Str("component", "OCR_WORKER").Str("tag", w.tag).
				Str("reason", closeErr.Error()).Msg("connection closed")
		}
	}()

	log.Info().Str("component", "OCR_WORKER").
		Str("tag", w.tag).
		Msg("got Connection, getting channel")
	w.channel, err = w.conn.Channel()
	if err != nil {
		return err
	}
	// setting the prefetchCount to 1 reduces the Memory Consumption by the worker
	if err = w.channel.Qos(1, 0, true); err != nil {
		return err
	}

	if err = w.channel.ExchangeDeclare(
		w.workerConfig.Exchange,     // name of the exchange
		w.workerConfig.ExchangeType, // type
		true,                        // durable
		false,                       // delete when complete
		false,                       // internal
		false,                       // noWait
		nil,                         // arguments
	); err != nil {
		return err
	}

	// just use the routing key as the queue name, since there's no reason
	// to have a different name
	queueName := w.workerConfig.RoutingKey

	queue, err := w.channel.QueueDeclare(
		queueName, // name of the queue
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // noWait
		queueArgs, // arguments
	)
	if err != nil {
		return err
	}

	log.Info().Str("component", "OCR_WORKER").Str("RoutingKey", w.workerConfig.RoutingKey).
		Str("tag", w.tag).
		Msg("binding to routing key")

	if err = w.channel.QueueBind(
		queue.Name,                // name of the queue
		w.workerConfig.RoutingKey, // bindingKey
		w.workerConfig.Exchange,   // sourceExchange
		false,                     // noWait
		queueArgs,                 // arguments
	); err != nil {
		return err
	}

	log.Info().Str("component", "OCR_WORKER").Str("tag", w.tag).
		Msg("Queue bound to Exchange, starting Consume tag")
	deliveries, err := w.channel.Consume(
		queue.Name, // name
		w.tag,      // consumerTag,
		false,      // noAck
		false,      // exclusive
		false,      // noLocal
		false,      // noWait
		queueArgs,  // arguments
	)
	if err != nil {
		return err
	}

	go w.handle(deliveries, w.Done)

	return nil
}

func (w *OcrRpcWorker) Shutdown() error {
	// will close() the deliveries channel
	if err := w.channel.Cancel(w.tag, true); err != nil {
		return fmt.Errorf("worker with tag %s cancel failed: %s", w.tag, err)
	}

	if err := w.conn.Close(); err != nil {
		return fmt.Errorf("AMQP connection with worker %s close error: %s", w.tag, err)
	}

	defer log.Info().Str("component", "OCR_WORKER").
		Str("tag", w.tag).
		Msg("Shutdown OK")

	// wait for handle() to exit
	return <-w.Done
}

func (w *OcrRpcWorker) handle(deliveries <-chan amqp.Delivery, done chan error) {
	for d := range deliveries {
		log.Info().Str("component", "OCR_WORKER").
			Str("tag", w.tag).
			Int("msg_size", len(d.Body)).
			Uint8("Priority", d.Priority).
			Str("CorrelationId", d.CorrelationId).
			Str("ReplyTo", d.ReplyTo).
			Uint64("DeliveryTag", d.DeliveryTag).
			Str("RoutingKey", d.RoutingKey).
			Msg("got delivery")

		ocrResult, err := w.resultForDelivery(d.Body)
		if err != nil {
			log.Error().Err(err).Str("component", "OCR_WORKER").
				Str("tag", w.tag).
				Msg("Error generating ocr result")
		}

		err = w.sendRpcResponse(ocrResult, d.ReplyTo, d.CorrelationId)
		if err != nil {
			log.Error().Err(err).Str("component", "OCR_WORKER").
				Str("tag", w.tag).
				Msg("Error sending ocr result")

			// if we can't send our response, let's just abort
			done <- err
			return
		}
		if err = d.Ack(false); err != nil {
			log.Warn().Str("component", "OCR_WORKER").Err(err).
				Str("tag", w.tag).
				Msg("Ack() was not successful")
		}

	}
	log.Info().Str("component", "OCR_WORKER").
		Str("tag", w.tag).
		Msg("handle: deliveries channel closed")
	done <- fmt.Errorf("handle: deliveries channel closed")
}

// resultForDelivery decodes a request and runs it through the requested
// engine. Failures are reported to the client as a result with status
// "error".
func (w *OcrRpcWorker) resultForDelivery(body []byte) (OcrResult, error) {

	ocrRequest := OcrRequest{}
	if err := json.Unmarshal(body, &ocrRequest); err != nil {
		return OcrResult{Status: "error", Text: fmt.Sprintf("error unmarshalling json: %v", err)}, err
	}
	defer timeTrack(time.Now(), "ocr", "request recognised", ocrRequest.RequestID)

	ocrEngine := NewOcrEngine(ocrRequest.EngineType)
	ocrResult, err := ocrEngine.ProcessRequest(&ocrRequest, &w.workerConfig.Engine)
	if err != nil {
		log.Error().Err(err).Str("component", "OCR_WORKER").
			Str("RequestID", ocrRequest.RequestID).
			Str("tag", w.tag).
			Msg("Error processing image")
		return errorResult(ocrRequest.RequestID, err), err
	}
	ocrResult.ID = ocrRequest.RequestID

	return ocrResult, nil

}

func (w *OcrRpcWorker) sendRpcResponse(r OcrResult, replyTo string, correlationId string) error {

	if w.workerConfig.Reliable {
		// Do not use Reliable=true due to major issues
		// that will completely  wedge the rpc worker.  Setting the
		// buffered channels length higher would delay the problem,
		// but then it would still happen later.
		if err := w.channel.Confirm(false); err != nil {
			return err
		}

		ack, nack := w.channel.NotifyConfirm(make(chan uint64, 100), make(chan uint64, 100))

		defer confirmDeliveryWorker(ack, nack)
	}

	// ocr worker is publishing back the decoded text
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}

	if err := w.channel.Publish(
		w.workerConfig.Exchange, // publish to an exchange
		replyTo,                 // routing to 0 or more queues
		false,                   // mandatory
		false,                   // immediate
		amqp.Publishing{
			Headers:         amqp.Table{},
			ContentType:     "application/json",
			ContentEncoding: "",
			Body:            body,
			DeliveryMode:    amqp.Transient, // 1=non-persistent, 2=persistent
			Priority:        0,              // 0-9
			CorrelationId:   correlationId,
		},
	); err != nil {
		return err
	}
	log.Info().Str("component", "OCR_WORKER").Str("CorrelationId", correlationId).
		Str("tag", w.tag).
		Str("replyTo", replyTo).
		Msg("sendRpcResponse succeeded")
	return nil

}

func confirmDeliveryWorker(ack, nack chan uint64) {
	select {
	case tag := <-ack:
		log.Info().Str("component", "OCR_WORKER").Uint64("tag", tag).
			Msg("confirmed delivery")
	case tag := <-nack:
		log.Info().Str("component", "OCR_WORKER").Uint64("tag", tag).
			Msg("failed to confirm delivery")
	case <-time.After(RPCResponseTimeout):
		// this is bad, the worker will probably be dysfunctional
		// at this point, so panic
		log.Panic().Str("component", "OCR_WORKER").Msg("timeout trying to confirm delivery. Worker panic")
	}
}
