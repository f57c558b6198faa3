package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrTrailingData is returned when a decoded payload contains more than one
// JSON value, mirroring the teacher's strict single-value HTTP body
// decoding (pkg/jsonx.ParseJSONObject in the teacher repo) applied here to
// bus payloads instead of HTTP bodies.
var ErrTrailingData = errors.New("wire: trailing data after JSON value")

// DecodeOrders strictly decodes and validates one orders payload. Decode
// failures (malformed JSON, unknown fields, missing required fields) are
// reported as a single error; the caller logs it and drops the message —
// this is a decode failure, not the StaleOrders/WrongHost paths, which
// only apply to well-formed messages.
func DecodeOrders(payload []byte) (Orders, error) {
	var o Orders
	if err := decodeStrict(payload, &o); err != nil {
		return Orders{}, fmt.Errorf("wire: decode orders: %w", err)
	}
	if err := validate.Struct(o); err != nil {
		return Orders{}, fmt.Errorf("wire: validate orders: %w", err)
	}
	return o, nil
}

// EncodeInfo marshals an Info snapshot for publication.
func EncodeInfo(info Info) ([]byte, error) {
	return json.Marshal(info)
}

// EncodePrintf marshals a Printf message for publication.
func EncodePrintf(p Printf) ([]byte, error) {
	return json.Marshal(p)
}

func decodeStrict(payload []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(new(struct{})); err != io.EOF {
		return ErrTrailingData
	}
	return nil
}
