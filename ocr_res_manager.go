package ocrlens

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
)

type ocrQueueManager struct {
	NumMessages  uint `json:"messages"`
	NumConsumers uint `json:"consumers"`
	MessageBytes uint `json:"message_bytes"`
}

type ocrNodeStats struct {
	MemLimit uint64 `json:"mem_limit"`
	MemUsed  uint64 `json:"mem_used"`
}

const (
	factorForMessageAccept uint   = 2
	memoryThreshold        uint64 = 95
	resManagerInterval            = 1 * time.Second
)

// ResManager decides whether the service admits new OCR requests. With a
// broker it polls the RabbitMQ management API; without one it only tracks
// shutdown.
type ResManager struct {
	mu          deadlock.Mutex
	canAccept   bool
	stopping    bool
	inFlight    int
	urlQueue    string
	urlStats    string
	fetch       func(url string) ([]byte, error)
	lastChecked time.Time
}

// NewResManager returns a manager admitting requests until told otherwise.
func NewResManager() *ResManager {
	return &ResManager{canAccept: true, fetch: url2bytes}
}

// NewRabbitResManager returns a manager that rejects requests until the
// first successful look at the broker.
func NewRabbitResManager(rabbitConfig RabbitConfig) *ResManager {
	return &ResManager{
		urlQueue: rabbitConfig.AmqpAPIURI + rabbitConfig.APIPathQueue + rabbitConfig.APIQueueName,
		urlStats: rabbitConfig.AmqpAPIURI + rabbitConfig.APIPathStats,
		fetch:    url2bytes,
	}
}

// ResStatus is reported by /status.
type ResStatus struct {
	CanAccept   bool      `json:"can_accept"`
	Stopping    bool      `json:"stopping"`
	InFlight    int       `json:"in_flight"`
	LastChecked time.Time `json:"last_checked,omitempty"`
}

func (m *ResManager) Status() ResStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ResStatus{
		CanAccept:   m.canAccept && !m.stopping,
		Stopping:    m.stopping,
		InFlight:    m.inFlight,
		LastChecked: m.lastChecked,
	}
}

// Acquire admits a request. Every successful Acquire must be paired with
// Release.
func (m *ResManager) Acquire() (ok bool, stopping bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopping {
		return false, true
	}
	if !m.canAccept {
		return false, false
	}
	m.inFlight++
	return true, false
}

func (m *ResManager) Release() {
	m.mu.Lock()
	if m.inFlight > 0 {
		m.inFlight--
	}
	m.mu.Unlock()
}

// Stop refuses new requests; requests already admitted run to the end.
func (m *ResManager) Stop() {
	m.mu.Lock()
	m.stopping = true
	m.mu.Unlock()
}

// InFlight returns the number of admitted requests not yet released.
func (m *ResManager) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

// Run polls the broker until ctx is done. It returns at once for managers
// without a broker.
func (m *ResManager) Run(ctx context.Context) {
	if m.urlQueue == "" {
		return
	}
	ticker := time.NewTicker(resManagerInterval)
	defer ticker.Stop()

	oldValue := !m.check(true)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		// only print the RESMAN output if the state has changed
		newValue := m.check(false)
		if newValue != oldValue {
			m.logState(newValue)
			oldValue = newValue
		}
	}
}

func (m *ResManager) check(verbose bool) bool {
	available := m.checkForAcceptRequest()
	m.mu.Lock()
	m.canAccept = available
	m.lastChecked = time.Now()
	m.mu.Unlock()
	if verbose {
		m.logState(available)
	}
	return available
}

func (m *ResManager) logState(available bool) {
	if available {
		log.Info().Str("component", "OCR_RESMAN").Msg("ocrlens is operational with free resources. We are ready to serve")
	} else {
		log.Info().Str("component", "OCR_RESMAN").Msg("ocrlens is alive but won't serve any requests. Workers are busy or not connected")
	}
}

// checkForAcceptRequest checks if resources for incoming request are available
func (m *ResManager) checkForAcceptRequest() bool {

	jsonQueueStat, err := m.fetch(m.urlQueue)
	if err != nil {
		log.Error().Err(err).Str("component", "OCR_RESMAN").Msg("can't get queue stats")
		return false
	}
	jsonResStat, err := m.fetch(m.urlStats)
	if err != nil {
		log.Error().Caller().Err(err).Str("component", "OCR_RESMAN").Msg("can't get RabbitMQ memory stats")
		return false
	}

	queueManager := ocrQueueManager{}
	if err := json.Unmarshal(jsonQueueStat, &queueManager); err != nil {
		log.Error().Caller().Err(err).Str("component", "OCR_RESMAN").
			Str("body", string(jsonQueueStat)).Msg("error unmarshaling json")
		return false
	}

	var nodes []ocrNodeStats
	if err := json.Unmarshal(jsonResStat, &nodes); err != nil {
		log.Error().Caller().Err(err).Str("component", "OCR_RESMAN").
			Str("body", string(jsonResStat)).Msg("error unmarshaling json")
		return false
	}

	log.Debug().Str("component", "OCR_RESMAN").
		Uint("MessageBytes", queueManager.MessageBytes).
		Uint("NumConsumers", queueManager.NumConsumers).
		Uint("NumMessages", queueManager.NumMessages).
		Interface("nodes", nodes).
		Msg("OCR_RESMAN stats")

	return schedulerByMemoryLoad(nodes) && schedulerByWorkerNumber(queueManager)
}

// schedulerByMemoryLoad is true while the broker nodes together use less than
// memoryThreshold percent of their memory limit.
func schedulerByMemoryLoad(nodes []ocrNodeStats) bool {
	var memTotalAvailable uint64
	var memTotalInUse uint64
	for _, node := range nodes {
		memTotalInUse += node.MemUsed
		memTotalAvailable += node.MemLimit
	}
	return memTotalInUse < (memTotalAvailable*memoryThreshold)/100
}

// if the number of messages in the queue too high we should not accept the new messages
func schedulerByWorkerNumber(queueManager ocrQueueManager) bool {
	return queueManager.NumMessages < queueManager.NumConsumers*factorForMessageAccept
}
