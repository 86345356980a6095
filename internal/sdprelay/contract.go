package sdprelay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// RequestTypeWebRTC is the only request type understood by the relay.
const RequestTypeWebRTC = "webrtc"

var (
	errBothFields    = errors.New("response carries both sdp and error")
	errNeitherField  = errors.New("response carries neither sdp nor error")
	errTrailingData  = errors.New("unexpected trailing data")
	errNotJSONString = errors.New("field is not a JSON string")
)

// Request is the single message sent to the relay on a session.
type Request struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// NewRequest builds the relay request carrying offer.
func NewRequest(offer string) Request {
	return Request{Type: RequestTypeWebRTC, SDP: offer}
}

func (r Request) Validate() error {
	if r.Type != RequestTypeWebRTC {
		return fmt.Errorf("unsupported request type %q", r.Type)
	}
	if r.SDP == "" {
		return errors.New("request missing sdp")
	}
	return nil
}

// EncodeRequest returns the wire encoding of the request for offer.
func EncodeRequest(offer string) ([]byte, error) {
	req := NewRequest(offer)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(req)
}

// ParseRequest decodes a request as received by a relay endpoint.
func ParseRequest(data []byte) (Request, error) {
	var req Request
	if err := decodeStrict(data, &req); err != nil {
		return Request{}, err
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Response is the single reply from the relay. Exactly one of SDP and Error is
// non-empty on a parsed Response.
type Response struct {
	SDP   string `json:"sdp,omitempty"`
	Error string `json:"error,omitempty"`
}

// Answer returns a successful response carrying sdp.
func Answer(sdp string) Response { return Response{SDP: sdp} }

// Reject returns a response reporting a negotiation failure.
func Reject(message string) Response { return Response{Error: message} }

func (r Response) Validate() error {
	switch {
	case r.SDP != "" && r.Error != "":
		return errBothFields
	case r.SDP == "" && r.Error == "":
		return errNeitherField
	}
	return nil
}

// ParseResponse decodes a relay reply and enforces the exactly-one-field
// rule. Fields other than sdp and error are ignored; a field that is null or
// an empty string counts as absent.
func ParseResponse(data []byte) (Response, error) {
	var raw struct {
		SDP   json.RawMessage `json:"sdp"`
		Error json.RawMessage `json:"error"`
	}
	if err := decodeLenient(data, &raw); err != nil {
		return Response{}, err
	}

	var (
		resp Response
		err  error
	)
	if resp.SDP, err = optionalString(raw.SDP); err != nil {
		return Response{}, fmt.Errorf("sdp: %w", err)
	}
	if resp.Error, err = optionalString(raw.Error); err != nil {
		return Response{}, fmt.Errorf("error: %w", err)
	}
	if err := resp.Validate(); err != nil {
		return Response{}, err
	}
	return resp, nil
}

func optionalString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", errNotJSONString
	}
	return s, nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return decodeSingle(dec, v)
}

func decodeLenient(data []byte, v any) error {
	return decodeSingle(json.NewDecoder(bytes.NewReader(data)), v)
}

func decodeSingle(dec *json.Decoder, v any) error {
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errTrailingData
	}
	return nil
}
