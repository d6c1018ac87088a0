// Package json wraps the json-iterator library, it is faster and compatible with the standard library.
package json

import (
	stdJSON "encoding/json"

	jsoniter "github.com/json-iterator/go"

	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

// RawMessage is a raw encoded JSON value, it is compatible with the standard library.
type RawMessage = stdJSON.RawMessage

// nolint: gochecknoglobals
var api = jsoniter.ConfigCompatibleWithStandardLibrary

func Encode(v any, pretty bool) ([]byte, error) {
	var data []byte
	var err error
	if pretty {
		data, err = api.MarshalIndent(v, "", "  ")
	} else {
		data, err = api.Marshal(v)
	}
	if err != nil {
		return nil, errors.PrefixError(err, "json encoding error")
	}
	return data, nil
}

func EncodeString(v any, pretty bool) (string, error) {
	data, err := Encode(v, pretty)
	return string(data), err
}

func MustEncode(v any, pretty bool) []byte {
	data, err := Encode(v, pretty)
	if err != nil {
		panic(err)
	}
	return data
}

func Decode(data []byte, v any) error {
	if err := api.Unmarshal(data, v); err != nil {
		return errors.PrefixError(err, "json decoding error")
	}
	return nil
}

func DecodeString(data string, v any) error {
	return Decode([]byte(data), v)
}
