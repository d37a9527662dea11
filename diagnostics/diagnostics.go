// Package diagnostics provides structured decision logging and a live
// websocket stream for local debugging; the Coordinator's logDecision
// writes through it.
package diagnostics

import (
	"encoding/json"
	"log"

	"github.com/mindfence/decisioncore/observability"
)

// Decision is a structured log entry for one Decision Gate verdict or
// Coordinator state transition.
type Decision struct {
	Component string      `json:"component"`
	App       string      `json:"app,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Kind      string      `json:"kind"`
	Reason    string      `json:"reason,omitempty"`
	Metadata  interface{} `json:"metadata,omitempty"`
}

// Log writes d as a JSON line and increments the matching Prometheus
// counter, then broadcasts it to any live diagnostics subscribers.
func Log(d Decision) {
	bytes, err := json.Marshal(d)
	if err != nil {
		log.Printf("diagnostics: failed to marshal decision: %v", err)
		return
	}
	log.Println(string(bytes))

	observability.GateDecisions.WithLabelValues(d.Kind, d.Reason).Inc()

	defaultHub.broadcast(bytes)
}

// Subscribe registers a live diagnostics client. The returned channel
// receives Decisions logged after this call, as raw JSON; a Decision is
// dropped for this client while its 32-entry buffer is full. The channel is
// closed when Unsubscribe is called. When the client limit is reached, id is
// 0 and the channel is already closed.
func Subscribe() (id uint64, ch <-chan []byte) {
	return defaultHub.subscribe()
}

// Unsubscribe removes a client registered via Subscribe.
func Unsubscribe(id uint64) {
	defaultHub.unsubscribe(id)
}
