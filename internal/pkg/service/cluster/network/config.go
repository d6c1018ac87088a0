// Package network contains configuration of the communication between ranks of the process group.
package network

import (
	"time"

	"github.com/c2h5oh/datasize"
)

const (
	TransportProtocolTCP = TransportProtocol("tcp")
	TransportProtocolKCP = TransportProtocol("kcp")
)

const (
	CompressionNone = Compression("none")
	CompressionS2   = Compression("s2")
)

const (
	CodecJSON    = Codec("json")
	CodecMsgpack = Codec("msgpack")
)

type TransportProtocol string

type Compression string

type Codec string

// Config configures the connection of the ranks.
// The root rank listens on the RootAddress, worker ranks connect to it.
type Config struct {
	Transport   TransportProtocol `json:"transport" configKey:"transport" validate:"required,oneof=tcp kcp" configUsage:"Transport protocol."`
	RootAddress string            `json:"rootAddress" configKey:"rootAddress" validate:"required" configUsage:"Listen address of the root rank, workers connect to it."`
	// StartupTimeout limits the group formation, all workers must connect before the timeout.
	StartupTimeout     time.Duration `json:"startupTimeout" configKey:"startupTimeout" validate:"required" configUsage:"Timeout of the group formation."`
	KeepAliveInterval  time.Duration `json:"keepAliveInterval" configKey:"keepAliveInterval" validate:"required" configUsage:"Keep alive interval, a dead peer is detected by missing keep alive response."`
	StreamOpenTimeout  time.Duration `json:"streamOpenTimeout" configKey:"streamOpenTimeout" validate:"required" configUsage:"Timeout to open the stream to the root."`
	StreamCloseTimeout time.Duration `json:"streamCloseTimeout" configKey:"streamCloseTimeout" validate:"required" configUsage:"Timeout of the stream close."`
	StreamWriteTimeout time.Duration `json:"streamWriteTimeout" configKey:"streamWriteTimeout" validate:"required" configUsage:"Stream write timeout."`
	ShutdownTimeout    time.Duration `json:"shutdownTimeout" configKey:"shutdownTimeout" validate:"required" configUsage:"Timeout of the graceful shutdown of the connections."`
	// StreamMaxWindow is the yamux flow control window.
	StreamMaxWindow datasize.ByteSize `json:"streamMaxWindow" configKey:"streamMaxWindow" validate:"required,min=262144" configUsage:"Max size of the stream window."`
	// MaxFrameSize limits size of a received frame, it protects the rank from a corrupted length in the frame header.
	// The length field of the frame header has 4 bytes, so the limit cannot exceed 4GB.
	MaxFrameSize         datasize.ByteSize `json:"maxFrameSize" configKey:"maxFrameSize" validate:"required,max=4294967295" configUsage:"Max size of a frame payload, at most 4GB."`
	Compression          Compression       `json:"compression" configKey:"compression" validate:"required,oneof=none s2" configUsage:"Compression of frame payloads."`
	CompressionThreshold datasize.ByteSize `json:"compressionThreshold" configKey:"compressionThreshold" configUsage:"Payloads smaller than the threshold are not compressed."`
	Codec                Codec             `json:"codec" configKey:"codec" validate:"required,oneof=json msgpack" configUsage:"Encoding of commands."`
}

func NewConfig() Config {
	return Config{
		Transport:            TransportProtocolTCP,
		RootAddress:          "localhost:6100",
		StartupTimeout:       30 * time.Second,
		KeepAliveInterval:    5 * time.Second,
		StreamOpenTimeout:    10 * time.Second,
		StreamCloseTimeout:   10 * time.Second,
		StreamWriteTimeout:   10 * time.Second,
		ShutdownTimeout:      10 * time.Second,
		StreamMaxWindow:      8 * datasize.MB,
		MaxFrameSize:         64 * datasize.MB,
		Compression:          CompressionS2,
		CompressionThreshold: 4 * datasize.KB,
		Codec:                CodecJSON,
	}
}
