package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for chat commands and the
// ops API. Snapshots are served by the stats endpoint.
type Metrics struct {
	mu           sync.Mutex
	commandCount map[string]int64
	requestCount map[string]int64
	errorCount   map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		commandCount: make(map[string]int64),
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordCommand increments the counter for a chat command invocation.
func (m *Metrics) RecordCommand(name string, ok bool) {
	if m == nil {
		return
	}
	key := name + "|" + strconv.FormatBool(ok)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commandCount[key]++
}

// RecordRequest increments counters for ops API requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Snapshot copies the counters for reporting.
func (m *Metrics) Snapshot() (commands, requests, errors map[string]int64) {
	if m == nil {
		return nil, nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	commands = make(map[string]int64, len(m.commandCount))
	for k, v := range m.commandCount {
		commands[k] = v
	}
	requests = make(map[string]int64, len(m.requestCount))
	for k, v := range m.requestCount {
		requests[k] = v
	}
	errors = make(map[string]int64, len(m.errorCount))
	for k, v := range m.errorCount {
		errors[k] = v
	}
	return commands, requests, errors
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
