package chat

import (
	"bytes"
	"encoding/json"
	"strings"

	"PPLive/tools/decode"
	"PPLive/tools/errs"

	"github.com/pkg/errors"
)

// Frame is the wire envelope in both directions: {"event": "...", "data": {...}}.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// InFrame is an inbound frame with data left as a generic object so handlers
// can decode into their own request type.
type InFrame struct {
	Event string
	Data  map[string]any
}

func EncodeFrame(event string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s payload", event)
		}
		data = b
	}
	return json.Marshal(Frame{Event: event, Data: data})
}

// ParseFrame rejects anything that is not an object with a non-empty event.
func ParseFrame(raw []byte) (*InFrame, error) {
	var f Frame
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&f); err != nil {
		return nil, errs.ErrMalformed.WithDetail(err.Error())
	}
	f.Event = strings.TrimSpace(f.Event)
	if f.Event == "" {
		return nil, errs.ErrMalformed.WithDetail("missing event")
	}
	in := &InFrame{Event: f.Event}
	if len(f.Data) == 0 || string(f.Data) == "null" {
		return in, nil
	}
	dd := json.NewDecoder(bytes.NewReader(f.Data))
	dd.UseNumber()
	if err := dd.Decode(&in.Data); err != nil {
		return nil, errs.ErrMalformed.WithDetail("data must be an object")
	}
	return in, nil
}

// Bind decodes the frame data into T. The event is known by now, so a field
// of the wrong type is a ValidationError the sender gets told about.
func Bind[T any](f *InFrame) (*T, error) {
	v, err := decode.Map[T](f.Data)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail(err.Error())
	}
	return v, nil
}
