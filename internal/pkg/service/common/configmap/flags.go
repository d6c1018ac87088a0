package configmap

import (
	"encoding"
	"reflect"
	"time"

	"github.com/spf13/pflag"

	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

func MustGenerateFlags(fs *pflag.FlagSet, v any) {
	if err := GenerateFlags(fs, v); err != nil {
		panic(err)
	}
}

// GenerateFlags generates FlagSet from the provided configuration structure.
// Current values of the structure are used as default values of the flags.
// Inspired by: https://stackoverflow.com/a/72893101
func GenerateFlags(fs *pflag.FlagSet, v any) error {
	fields, err := visit(v)
	if err != nil {
		return err
	}

	for _, f := range fields {
		if err := generateFlag(fs, f); err != nil {
			return err
		}
	}
	return nil
}

func generateFlag(fs *pflag.FlagSet, f field) error {
	flagName := f.flagName()
	if flagName == "" {
		return nil
	}

	// Types with a text representation, for example datasize.ByteSize
	if f.value.CanAddr() {
		if _, ok := f.value.Addr().Interface().(encoding.TextUnmarshaler); ok {
			def := ""
			if m, ok := f.value.Interface().(encoding.TextMarshaler); ok && !f.value.IsZero() {
				text, err := m.MarshalText()
				if err != nil {
					return err
				}
				def = string(text)
			}
			fs.StringP(flagName, f.shorthand, def, f.usage)
			return nil
		}
	}

	switch v := f.value.Interface().(type) {
	case time.Duration:
		fs.DurationP(flagName, f.shorthand, v, f.usage)
		return nil
	case []string:
		fs.StringSliceP(flagName, f.shorthand, v, f.usage)
		return nil
	}

	// Kinds, it covers also named types, for example "type Protocol string"
	switch f.value.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		fs.Int64P(flagName, f.shorthand, f.value.Int(), f.usage)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		fs.Uint64P(flagName, f.shorthand, f.value.Uint(), f.usage)
	case reflect.Float32, reflect.Float64:
		fs.Float64P(flagName, f.shorthand, f.value.Float(), f.usage)
	case reflect.Bool:
		fs.BoolP(flagName, f.shorthand, f.value.Bool(), f.usage)
	case reflect.String:
		fs.StringP(flagName, f.shorthand, f.value.String(), f.usage)
	default:
		return errors.Errorf(`unexpected type "%s" of the field "%s", please implement some method to convert the type to string`, f.value.Type().String(), f.key())
	}
	return nil
}
