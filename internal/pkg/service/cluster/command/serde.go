package command

import (
	"github.com/keboola/lockstep-cluster/internal/pkg/encoding/json"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

// envelope is the wire representation of a command, the kind selects the concrete type.
type envelope struct {
	Kind    Kind            `json:"kind" msgpack:"kind"`
	Payload json.RawMessage `json:"payload" msgpack:"payload"`
}

// Serde encodes and decodes commands registered in the Registry.
type Serde struct {
	registry *Registry
	codec    Codec
}

func NewSerde(registry *Registry, codec Codec) *Serde {
	return &Serde{registry: registry, codec: codec}
}

func (s *Serde) Codec() Codec {
	return s.codec
}

func (s *Serde) Encode(cmd Command) ([]byte, error) {
	if cmd == nil {
		return nil, errors.New("command cannot be nil")
	}

	kind := cmd.Kind()
	if _, found := s.registry.factory(kind); !found {
		return nil, errors.Errorf(`command kind "%s" is not registered`, kind)
	}

	payload, err := s.codec.Marshal(cmd)
	if err != nil {
		return nil, errors.PrefixErrorf(err, `cannot encode command "%s"`, kind)
	}

	data, err := s.codec.Marshal(envelope{Kind: kind, Payload: payload})
	if err != nil {
		return nil, errors.PrefixErrorf(err, `cannot encode command "%s"`, kind)
	}

	return data, nil
}

// Decode reconstructs the command, any mismatch is an error, a different command is never returned.
func (s *Serde) Decode(data []byte) (Command, error) {
	if len(data) == 0 {
		return nil, errors.New("cannot decode command: empty data")
	}

	var env envelope
	if err := s.codec.Unmarshal(data, &env); err != nil {
		return nil, errors.PrefixError(err, "cannot decode command envelope")
	}

	factory, found := s.registry.factory(env.Kind)
	if !found {
		return nil, errors.Errorf(`cannot decode command: unknown kind "%s"`, env.Kind)
	}

	cmd := factory()
	if err := s.codec.Unmarshal(env.Payload, cmd); err != nil {
		return nil, errors.PrefixErrorf(err, `cannot decode command "%s"`, env.Kind)
	}

	if cmd.Kind() != env.Kind {
		return nil, errors.Errorf(`cannot decode command: factory of the kind "%s" returned kind "%s"`, env.Kind, cmd.Kind())
	}

	if v, ok := cmd.(validator); ok {
		if err := v.validate(s.registry); err != nil {
			return nil, errors.PrefixErrorf(err, `invalid command "%s"`, env.Kind)
		}
	}

	return cmd, nil
}
