package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// OpCode identifies the kind of a request, response or push
type OpCode int

// OpCode constants for the paint board protocol
const (
	OpDraw          OpCode = 300
	OpDrawPush      OpCode = 301
	OpGetDrawList   OpCode = 302
	OpUploadPic     OpCode = 303
	OpBgPicPush     OpCode = 304
	OpClearDraw     OpCode = 305
	OpClearDrawPush OpCode = 306
)

// UploadPicAsk tags the first payload element of the upload handshake
const UploadPicAsk = 1

// Response status, always the first payload element of a reply
const (
	StatusOK     = 0
	StatusFailed = 1
)

var opNames = map[OpCode]string{
	OpDraw:          "DRAW",
	OpDrawPush:      "DRAW_PUSH",
	OpGetDrawList:   "GET_DRAW_LIST",
	OpUploadPic:     "UPLOAD_PIC",
	OpBgPicPush:     "BG_PIC_PUSH",
	OpClearDraw:     "CLEAR_DRAW",
	OpClearDrawPush: "CLEAR_DRAW_PUSH",
}

func (op OpCode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OpCode(%d)", int(op))
}

// Message is one request, response or push exchanged over the connection.
// It is immutable once built.
type Message struct {
	op        OpCode
	timestamp int64
	payload   []any
}

// wireMessage is the JSON envelope of a Message
type wireMessage struct {
	OpCode    OpCode `json:"opCode"`
	Timestamp int64  `json:"timestamp"`
	Payload   []any  `json:"payload"`
}

// NewMessage builds a Message. Every payload element must be a bool, a
// string, or a finite number.
func NewMessage(op OpCode, timestamp int64, payload ...any) (Message, error) {
	for i, v := range payload {
		if err := checkPrimitive(v); err != nil {
			return Message{}, &PayloadError{Op: op, Index: i, Reason: err.Error()}
		}
	}
	p := make([]any, len(payload))
	copy(p, payload)
	return Message{op: op, timestamp: timestamp, payload: p}, nil
}

func (m Message) OpCode() OpCode   { return m.op }
func (m Message) Timestamp() int64 { return m.timestamp }
func (m Message) Len() int         { return len(m.payload) }

// Payload returns a copy of the payload
func (m Message) Payload() []any {
	p := make([]any, len(m.payload))
	copy(p, m.payload)
	return p
}

// MarshalJSON encodes the wire envelope
func (m Message) MarshalJSON() ([]byte, error) {
	p := m.payload
	if p == nil {
		p = []any{}
	}
	return json.Marshal(wireMessage{OpCode: m.op, Timestamp: m.timestamp, Payload: p})
}

// UnmarshalJSON decodes the wire envelope
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	for i, v := range w.Payload {
		if err := checkPrimitive(v); err != nil {
			return &PayloadError{Op: w.OpCode, Index: i, Reason: err.Error()}
		}
	}
	m.op = w.OpCode
	m.timestamp = w.Timestamp
	m.payload = w.Payload
	return nil
}

// Encode returns the wire form of a Message
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses the wire form of a Message
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return m, nil
}

func checkPrimitive(v any) error {
	switch x := v.(type) {
	case bool, string:
		return nil
	case float32:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return fmt.Errorf("non-finite number %v", x)
		}
		return nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("non-finite number %v", x)
		}
		return nil
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return nil
	}
	return fmt.Errorf("unsupported value of type %T", v)
}
