// Package dependencies provides dependencies for other parts of the project.
//
// Each part of the project defines a small "dependencies" interface with only the necessary dependencies.
// Dependency containers implement these interfaces, so parts are easily composable and testable.
//
// This package contains the common parts:
//   - [BaseScope] interface provides basic dependencies (see [NewBaseScope]).
//   - [Mocked] interface provides dependencies mocked for tests (see [NewMocked]).
//
// Dependency container of the cluster node is in the [pkg/github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/dependencies] package.
package dependencies

import (
	"context"
	"io"

	"github.com/keboola/lockstep-cluster/internal/pkg/log"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/common/servicectx"
	"github.com/keboola/lockstep-cluster/internal/pkg/telemetry"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/ioutil"
)

// BaseScope interface provides basic dependencies.
type BaseScope interface {
	Logger() log.Logger
	Telemetry() telemetry.Telemetry
	Process() *servicectx.Process
	Stdout() io.Writer
	Stderr() io.Writer
}

// Mocked dependencies for tests.
type Mocked interface {
	BaseScope
	DebugLogger() log.DebugLogger
	TestContext() context.Context
	TestTelemetry() telemetry.ForTest
	TestStdout() *ioutil.AtomicWriter
}
