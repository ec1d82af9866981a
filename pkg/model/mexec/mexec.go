//nolint:revive // exported
package mexec

import (
	"the-dev-tools/apiconsole/pkg/errmap"
	"the-dev-tools/apiconsole/pkg/idwrap"
	"the-dev-tools/apiconsole/pkg/model/mcall"
)

// State is the lifecycle of an executed request record. A record leaves
// StatePending exactly once and never changes afterwards.
type State int8

const (
	StatePending   State = 0
	StateCompleted State = 1
	StateFailed    State = 2
)

func (s State) Terminal() bool {
	return s != StatePending
}

// ProxyResponse is the normalized result of a send: whatever status the
// remote returned, with the full header set the proxy saw, body already
// transport-decoded, decompressed, and charset-normalized.
type ProxyResponse struct {
	Status     int            `json:"status"`
	StatusText string         `json:"status_text"`
	Headers    []mcall.Header `json:"headers"`
	Body       []byte         `json:"body"`
	TimingMs   int64          `json:"timing_ms"`
}

// Failure is the terminal error form stored on a record.
type Failure struct {
	Code    errmap.Code `json:"code"`
	Message string      `json:"message"`
}

// Record is one executed request/response pair. Created on send, appended
// to history, immutable after its terminal transition.
type Record struct {
	ID         idwrap.IDWrap      `json:"id"`
	Request    mcall.RequestDraft `json:"request"`
	State      State              `json:"state"`
	Response   *ProxyResponse     `json:"response,omitempty"`
	Failure    *Failure           `json:"failure,omitempty"`
	StartedAt  int64              `json:"started_at"`
	FinishedAt int64              `json:"finished_at,omitempty"`
}
