// Package ctxattr carries log attributes in a context.
// The logger appends them to every record made with the context,
// so the records of a command executed on a rank can be correlated across all ranks.
package ctxattr

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

const (
	RankKey        = attribute.Key("cluster.rank")
	CommandKindKey = attribute.Key("command.kind")
)

type ctxKey string

const attributesCtxKey = ctxKey("ctxattr.attributes")

// ContextWith merges the attributes with the attributes already present, a later key wins.
func ContextWith(ctx context.Context, attrs ...attribute.KeyValue) context.Context {
	merged := append(Attributes(ctx).ToSlice(), attrs...)
	set := attribute.NewSet(merged...)
	return context.WithValue(ctx, attributesCtxKey, &set)
}

// ContextWithCommand marks the context of a command execution on the rank.
func ContextWithCommand(ctx context.Context, rank int, kind string) context.Context {
	return ContextWith(ctx, RankKey.Int(rank), CommandKindKey.String(kind))
}

func Attributes(ctx context.Context) *attribute.Set {
	if set, ok := ctx.Value(attributesCtxKey).(*attribute.Set); ok {
		return set
	}
	return attribute.EmptySet()
}
