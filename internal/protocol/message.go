// Package protocol defines the closed message-type enum and envelope
// contract consumed by the MessageRouter (spec §4.4, component C4).
// Messages are plain values; they never mutate canonical state
// directly — only the Coordinator does that, via a Schema
// transformation.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type is the closed enum of message types the router accepts. Any
// value outside this set fails validation (spec §4.4).
type Type string

const (
	TypePositionChanged    Type = "QT_POSITION_CHANGED"
	TypeSizeChanged        Type = "QT_SIZE_CHANGED"
	TypeCreated            Type = "QT_CREATED"
	TypeMinimized          Type = "QT_MINIMIZED"
	TypeRestored           Type = "QT_RESTORED"
	TypeClosed             Type = "QT_CLOSED"
	TypeManagerCloseAll    Type = "MANAGER_CLOSE_ALL"
	TypeManagerCloseMin    Type = "MANAGER_CLOSE_MINIMIZED"
	TypeRequestFullState   Type = "REQUEST_FULL_STATE"
	TypeContentScriptReady Type = "CONTENT_SCRIPT_READY"
	TypeContentScriptUnload Type = "CONTENT_SCRIPT_UNLOAD"
	TypeStateSync          Type = "QT_STATE_SYNC"
	TypeSidebarUpdate      Type = "SIDEBAR_UPDATE"
)

// Pattern is the delivery pattern the router dispatches a Type
// through (spec §4.4).
type Pattern string

const (
	PatternLocal     Pattern = "LOCAL"
	PatternGlobal    Pattern = "GLOBAL"
	PatternManager   Pattern = "MANAGER"
	PatternSync      Pattern = "SYNC"
	PatternLifecycle Pattern = "LIFECYCLE"
	PatternPush      Pattern = "PUSH"
)

// patternByType is the dispatch table from spec §4.4's delivery-pattern
// column. It is the single source of truth MessageRouter consults.
var patternByType = map[Type]Pattern{
	TypePositionChanged:     PatternLocal,
	TypeSizeChanged:         PatternLocal,
	TypeCreated:             PatternGlobal,
	TypeMinimized:           PatternGlobal,
	TypeRestored:            PatternGlobal,
	TypeClosed:              PatternGlobal,
	TypeManagerCloseAll:     PatternManager,
	TypeManagerCloseMin:     PatternManager,
	TypeRequestFullState:    PatternSync,
	TypeContentScriptReady:  PatternLifecycle,
	TypeContentScriptUnload: PatternLifecycle,
	TypeStateSync:           PatternPush,
	TypeSidebarUpdate:       PatternPush,
}

// PatternFor returns the delivery pattern for t and whether t is a
// recognized type at all.
func PatternFor(t Type) (Pattern, bool) {
	p, ok := patternByType[t]
	return p, ok
}

// Envelope is the message contract every inbound request carries:
// `{ type, correlationId, timestamp, ...payload }` (spec §3 "Message
// envelope", §6 "every message is a plain record").
type Envelope struct {
	Type          Type            `json:"type"`
	CorrelationID string          `json:"correlationId"`
	Timestamp     int64           `json:"timestamp"` // ms epoch
	Payload       map[string]any  `json:"-"`
}

// Response is the shape every handler returns:
// `{ success, error?, ...pattern-specific fields }` (spec §6).
type Response struct {
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Details []string       `json:"details,omitempty"`
	Fields  map[string]any `json:"-"`
}

// Invalid builds the canonical "Invalid message" response (spec §4.4).
func Invalid(details ...string) Response {
	return Response{Success: false, Error: "Invalid message", Details: details}
}

// Validate checks the closed-set/non-empty/numeric invariants from
// spec §4.4: type must be recognized, correlationId non-empty,
// timestamp numeric (always true for int64, so only its zero-ness is
// suspect and left to callers that care).
func Validate(e Envelope) error {
	if _, ok := PatternFor(e.Type); !ok {
		return &ValidationError{Reason: "unrecognized message type"}
	}
	if e.CorrelationID == "" {
		return &ValidationError{Reason: "missing correlationId"}
	}
	return nil
}

// ValidationError reports why an Envelope failed Validate.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Now is the single clock call sites use for envelope timestamps,
// kept here so tests can use a fixed time.Time and stamp Timestamp
// deterministically.
func NowMillis(t time.Time) int64 { return t.UnixMilli() }

// NewCorrelationID mints a fresh correlation id for a message
// originated locally (rather than echoing one already carried on an
// inbound envelope). UUIDs give every client-originated request a
// globally unique id without a shared counter across tabs/processes.
func NewCorrelationID() string { return uuid.NewString() }

// MarshalJSON flattens Payload into the envelope's top-level object,
// matching the wire contract's "plain record" shape (spec §3, §6):
// `{ type, correlationId, timestamp, ...payload }` rather than a
// nested payload field.
func (e Envelope) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(e.Payload)+3)
	for k, v := range e.Payload {
		flat[k] = v
	}
	flat["type"] = e.Type
	flat["correlationId"] = e.CorrelationID
	flat["timestamp"] = e.Timestamp
	return json.Marshal(flat)
}

// UnmarshalJSON reverses MarshalJSON: the three named fields populate
// their struct fields, and everything else becomes Payload.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	if t, ok := flat["type"].(string); ok {
		e.Type = Type(t)
	}
	if cid, ok := flat["correlationId"].(string); ok {
		e.CorrelationID = cid
	}
	if ts, ok := flat["timestamp"].(float64); ok {
		e.Timestamp = int64(ts)
	}
	delete(flat, "type")
	delete(flat, "correlationId")
	delete(flat, "timestamp")
	e.Payload = flat
	return nil
}

// MarshalJSON flattens Fields into the response's top-level object,
// the same wire convention Envelope uses.
func (r Response) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		flat[k] = v
	}
	flat["success"] = r.Success
	if r.Error != "" {
		flat["error"] = r.Error
	}
	if len(r.Details) > 0 {
		flat["details"] = r.Details
	}
	return json.Marshal(flat)
}

// UnmarshalJSON reverses MarshalJSON.
func (r *Response) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	if ok, isBool := flat["success"].(bool); isBool {
		r.Success = ok
	}
	if errMsg, ok := flat["error"].(string); ok {
		r.Error = errMsg
	}
	if details, ok := flat["details"].([]any); ok {
		for _, d := range details {
			if s, ok := d.(string); ok {
				r.Details = append(r.Details, s)
			}
		}
	}
	delete(flat, "success")
	delete(flat, "error")
	delete(flat, "details")
	r.Fields = flat
	return nil
}
