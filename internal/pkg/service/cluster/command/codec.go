package command

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/keboola/lockstep-cluster/internal/pkg/encoding/json"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/network"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

// Codec serializes commands, all ranks must use the same codec.
type Codec interface {
	Name() network.Codec
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

type msgpackCodec struct{}

func NewCodec(name network.Codec) (Codec, error) {
	switch name {
	case network.CodecJSON:
		return jsonCodec{}, nil
	case network.CodecMsgpack:
		return msgpackCodec{}, nil
	default:
		return nil, errors.Errorf(`unexpected codec "%s"`, name)
	}
}

func (jsonCodec) Name() network.Codec {
	return network.CodecJSON
}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Encode(v, false)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Decode(data, v)
}

func (msgpackCodec) Name() network.Codec {
	return network.CodecMsgpack
}

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.PrefixError(err, "msgpack encoding error")
	}
	return data, nil
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return errors.PrefixError(err, "msgpack decoding error")
	}
	return nil
}
