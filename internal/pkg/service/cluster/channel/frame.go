package channel

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/c2h5oh/datasize"
	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/s2"

	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/network"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

// Frame header layout, big endian:
//
//	magic    2B
//	type     1B
//	flags    1B
//	sequence 8B
//	length   4B
//	checksum 8B, xxhash of the payload as it is sent
const (
	frameMagic      = uint16(0x4C53)
	frameHeaderSize = 2 + 1 + 1 + 8 + 4 + 8
)

const (
	flagCompressed = byte(1 << 0)
)

const (
	frameHello = frameType(iota + 1)
	frameWelcome
	frameData
	frameAck
	frameRelease
	frameGather
)

type frameType byte

type frame struct {
	Type     frameType
	Sequence uint64
	Payload  []byte
}

// frameCodec writes and reads frames, it compresses big payloads and checks integrity of received frames.
type frameCodec struct {
	compression          network.Compression
	compressionThreshold datasize.ByteSize
	maxFrameSize         datasize.ByteSize
}

func newFrameCodec(cfg network.Config) frameCodec {
	return frameCodec{
		compression:          cfg.Compression,
		compressionThreshold: cfg.CompressionThreshold,
		maxFrameSize:         cfg.MaxFrameSize,
	}
}

func (t frameType) String() string {
	switch t {
	case frameHello:
		return "hello"
	case frameWelcome:
		return "welcome"
	case frameData:
		return "data"
	case frameAck:
		return "ack"
	case frameRelease:
		return "release"
	case frameGather:
		return "gather"
	default:
		return fmt.Sprintf("unknown(%d)", byte(t))
	}
}

func (c frameCodec) write(w io.Writer, f frame) error {
	payload := f.Payload
	flags := byte(0)
	if c.compression == network.CompressionS2 && len(payload) > 0 && uint64(len(payload)) >= c.compressionThreshold.Bytes() {
		payload = s2.Encode(nil, payload)
		flags |= flagCompressed
	}

	if uint64(len(payload)) > c.maxFrameSize.Bytes() {
		return errors.Errorf(`frame payload size %s exceeds the limit %s`, datasize.ByteSize(len(payload)).HumanReadable(), c.maxFrameSize.HumanReadable())
	}

	buf := make([]byte, frameHeaderSize+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], frameMagic)
	buf[2] = byte(f.Type)
	buf[3] = flags
	binary.BigEndian.PutUint64(buf[4:12], f.Sequence)
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(payload)))
	binary.BigEndian.PutUint64(buf[16:24], xxhash.Sum64(payload))
	copy(buf[frameHeaderSize:], payload)

	_, err := w.Write(buf)
	return err
}

// read returns an io error if the connection failed, or a corruptedFrameError if the frame is not valid.
func (c frameCodec) read(r io.Reader) (frame, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return frame{}, err
	}

	if magic := binary.BigEndian.Uint16(header[0:2]); magic != frameMagic {
		return frame{}, corruptedFrameError{msg: fmt.Sprintf("unexpected magic 0x%04x", magic)}
	}

	f := frame{Type: frameType(header[2]), Sequence: binary.BigEndian.Uint64(header[4:12])}
	flags := header[3]
	length := binary.BigEndian.Uint32(header[12:16])
	checksum := binary.BigEndian.Uint64(header[16:24])

	if uint64(length) > c.maxFrameSize.Bytes() {
		return frame{}, corruptedFrameError{msg: fmt.Sprintf("frame payload size %d exceeds the limit %s", length, c.maxFrameSize.HumanReadable())}
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return frame{}, err
	}

	if actual := xxhash.Sum64(payload); actual != checksum {
		return frame{}, corruptedFrameError{msg: fmt.Sprintf("checksum mismatch, expected 0x%016x, actual 0x%016x", checksum, actual)}
	}

	if flags&flagCompressed != 0 {
		decodedLen, err := s2.DecodedLen(payload)
		if err != nil {
			return frame{}, corruptedFrameError{msg: fmt.Sprintf("cannot decompress payload: %s", err)}
		}
		if uint64(decodedLen) > c.maxFrameSize.Bytes() {
			return frame{}, corruptedFrameError{msg: fmt.Sprintf("decompressed payload size %d exceeds the limit %s", decodedLen, c.maxFrameSize.HumanReadable())}
		}
		if payload, err = s2.Decode(nil, payload); err != nil {
			return frame{}, corruptedFrameError{msg: fmt.Sprintf("cannot decompress payload: %s", err)}
		}
	}

	f.Payload = payload
	return f, nil
}

type corruptedFrameError struct {
	msg string
}

func (e corruptedFrameError) Error() string {
	return "corrupted frame: " + e.msg
}
