package rescache

import "encoding/json"

// Envelope is the tagged success/failure record stored in Redis. Field
// names are part of the wire contract (§6): s, v, e.type, e.message,
// e.data. Unknown fields are ignored on read for forward compatibility.
type Envelope struct {
	Success bool            `json:"s"`
	Value   json.RawMessage `json:"v,omitempty"`
	Err     *EnvelopeError  `json:"e,omitempty"`
}

// EnvelopeError is the failure-variant payload of an Envelope.
type EnvelopeError struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// SuccessEnvelope builds a success envelope around an already-marshaled
// value.
func SuccessEnvelope(value json.RawMessage) Envelope {
	return Envelope{Success: true, Value: value}
}

// FailureEnvelope builds a failure envelope from cached-failure metadata.
func FailureEnvelope(cf *CachedFailure) Envelope {
	return Envelope{
		Success: false,
		Err: &EnvelopeError{
			Type:    cf.Type,
			Message: cf.Message,
			Data:    json.RawMessage(cf.Data),
		},
	}
}

// EncodeEnvelope serializes an envelope to the bytes written to Redis.
func EncodeEnvelope(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses bytes read from Redis back into an Envelope.
//
// Bytes that fail to parse as JSON, or a failure envelope with an empty
// error type, return ErrMalformedEnvelope: the cache treats this as a
// plain miss (plus a warn log), not as data corruption. A success envelope
// missing its value field returns ErrCorruptedCache instead: that is a
// producer bug, not an absence, and the caller must not silently refill it
// by invoking the fetcher.
func DecodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, ErrMalformedEnvelope
	}
	if e.Success {
		if len(e.Value) == 0 {
			return Envelope{}, ErrCorruptedCache
		}
		return e, nil
	}
	if e.Err == nil || e.Err.Type == "" {
		return Envelope{}, ErrMalformedEnvelope
	}
	return e, nil
}
