package cdp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// CommandID identifies an in-flight command on a single Connection.
// IDs are assigned by the Connection, starting at 1.
type CommandID uint64

// Request is the wire shape of an outgoing command.
type Request struct {
	ID        CommandID       `json:"id"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

// Frame is a decoded incoming message: either a *Response or an *Event.
type Frame interface {
	frame()
}

// Response represents a CDP command response.
type Response struct {
	ID        CommandID       `json:"id"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *Error          `json:"error,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

// Event represents a CDP event notification.
type Event struct {
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params"`
	SessionID string          `json:"sessionId,omitempty"`
}

func (*Response) frame() {}
func (*Event) frame()    {}

// Error represents a CDP protocol error.
// Data is whatever the browser sent, usually a string but sometimes an object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if detail := e.Detail(); detail != "" {
		return fmt.Sprintf("cdp error %d: %s (%s)", e.Code, e.Message, detail)
	}
	return fmt.Sprintf("cdp error %d: %s", e.Code, e.Message)
}

// Detail renders Data for display. String data is unquoted; other values
// are returned as compact JSON.
func (e *Error) Detail() string {
	if !present(e.Data) {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Data, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, e.Data); err != nil {
		return string(e.Data)
	}
	return buf.String()
}

// emptyParams is sent when a command has no parameters.
var emptyParams = []byte("{}")

// Encode renders a command in wire form. params must already be valid JSON;
// an empty payload is sent as {}. Encode never fails and is deterministic.
func Encode(id CommandID, method string, params json.RawMessage, sessionID string) []byte {
	if len(params) == 0 {
		params = emptyParams
	}

	// Marshalling a string cannot fail.
	quotedMethod, _ := json.Marshal(method)

	var buf bytes.Buffer
	buf.Grow(len(quotedMethod) + len(params) + len(sessionID) + 48)
	buf.WriteString(`{"id":`)
	buf.WriteString(strconv.FormatUint(uint64(id), 10))
	buf.WriteString(`,"method":`)
	buf.Write(quotedMethod)
	buf.WriteString(`,"params":`)
	buf.Write(params)
	if sessionID != "" {
		quotedSession, _ := json.Marshal(sessionID)
		buf.WriteString(`,"sessionId":`)
		buf.Write(quotedSession)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// encodeParams converts caller parameters into a JSON payload.
// json.RawMessage values are validated and passed through untouched.
func encodeParams(params any) (json.RawMessage, error) {
	switch p := params.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		if len(p) == 0 {
			return nil, nil
		}
		if !json.Valid(p) {
			return nil, fmt.Errorf("invalid params: not valid JSON")
		}
		return p, nil
	}

	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	if bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	return data, nil
}

// envelope holds the top-level fields of a frame, still undecoded.
// Unmarshalling into raw fields cannot fail on payload shape, so the id
// check happens before any payload is interpreted.
type envelope struct {
	ID        json.RawMessage `json:"id"`
	Method    json.RawMessage `json:"method"`
	Result    json.RawMessage `json:"result"`
	Error     json.RawMessage `json:"error"`
	Params    json.RawMessage `json:"params"`
	SessionID json.RawMessage `json:"sessionId"`
}

// present reports whether a raw field was sent with a non-null value.
func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// Decode parses a raw CDP frame. A top-level id selects *Response; otherwise a
// method selects *Event. Anything else is a *FrameDecodeError.
func Decode(data []byte) (Frame, error) {
	var msg envelope
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, &FrameDecodeError{Data: data, Err: err}
	}

	if present(msg.ID) {
		var id CommandID
		if err := json.Unmarshal(msg.ID, &id); err != nil {
			return nil, &FrameDecodeError{Data: data, Err: fmt.Errorf("id: %w", err)}
		}
		return decodeResponse(id, msg), nil
	}

	if present(msg.Method) {
		var method string
		if err := json.Unmarshal(msg.Method, &method); err != nil {
			return nil, &FrameDecodeError{Data: data, Err: fmt.Errorf("method: %w", err)}
		}
		if method != "" {
			evt := &Event{Method: method, Params: msg.Params}
			if present(msg.SessionID) {
				if err := json.Unmarshal(msg.SessionID, &evt.SessionID); err != nil {
					return nil, &FrameDecodeError{Data: data, Err: fmt.Errorf("sessionId: %w", err)}
				}
			}
			return evt, nil
		}
	}

	return nil, &FrameDecodeError{Data: data, Err: errUnknownFormat}
}

// decodeResponse builds a Response once the id is known. The waiter for id
// always gets an outcome: an error payload that does not fit Error is
// reported with the raw payload as Data, and a sessionId that is not a
// string is ignored since responses are matched by id alone.
func decodeResponse(id CommandID, msg envelope) *Response {
	resp := &Response{ID: id, Result: msg.Result}

	if present(msg.Error) {
		var e Error
		if err := json.Unmarshal(msg.Error, &e); err != nil {
			e = Error{Message: "unreadable error payload", Data: msg.Error}
		}
		resp.Error = &e
	}

	if present(msg.SessionID) {
		_ = json.Unmarshal(msg.SessionID, &resp.SessionID)
	}

	return resp
}
