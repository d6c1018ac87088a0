package configmap

import (
	"encoding"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/keboola/lockstep-cluster/internal/pkg/env"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

// BindSpec configures the Bind function.
type BindSpec struct {
	// Name of the program, it is used in the help.
	Name string
	// Flags is an already parsed FlagSet, for example from a cobra command, see GenerateFlags.
	// If it is nil, a new FlagSet is generated and Args are parsed.
	Flags *pflag.FlagSet
	// Args without the program name, it is used only if Flags is nil.
	Args      []string
	EnvNaming *env.NamingConvention
	Envs      env.Provider
}

// ValueWithValidation is a configuration structure with custom validation, it is called after the tags validation.
type ValueWithValidation interface {
	Validate() error
}

// Bind flags and ENVs to the target configuration structure.
// Priority: 1. flag, 2. ENV, 3. the value present in the target structure (default).
func Bind(spec BindSpec, target any) error {
	fields, err := visit(target)
	if err != nil {
		return err
	}

	// Parse args, if the FlagSet is not provided
	flags := spec.Flags
	if flags == nil {
		flags = pflag.NewFlagSet(spec.Name, pflag.ContinueOnError)
		flags.Usage = func() {}
		if err := GenerateFlags(flags, target); err != nil {
			return err
		}
		if err := flags.Parse(spec.Args); errors.Is(err, pflag.ErrHelp) {
			return newHelpError(spec.Name, flags, spec)
		} else if err != nil {
			return err
		}
	}

	v := viper.New()
	errs := errors.NewMultiError()
	for _, f := range fields {
		flag := flags.Lookup(f.flagName())
		if flag == nil {
			errs.Append(errors.Errorf(`flag "%s" not found, generate flags by the GenerateFlags function`, f.flagName()))
			continue
		}

		// Default value or the value from the flag
		if err := v.BindPFlag(f.key(), flag); err != nil {
			errs.Append(err)
			continue
		}

		// ENV takes precedence over the default value, but not over the flag
		if !flag.Changed && spec.EnvNaming != nil && spec.Envs != nil {
			if value, found := spec.Envs.Lookup(spec.EnvNaming.FlagToEnv(f.flagName())); found {
				v.Set(f.key(), value)
			}
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return err
	}

	decodeHook := mapstructure.ComposeDecodeHookFunc(
		emptyTextHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	err = v.Unmarshal(target, func(c *mapstructure.DecoderConfig) {
		c.TagName = configKeyTag
		c.WeaklyTypedInput = true
		c.DecodeHook = decodeHook
	})
	if err != nil {
		return errors.PrefixError(err, "invalid configuration")
	}

	return Validate(target)
}

// emptyTextHookFunc maps an empty string to the zero value of a type with a text representation.
func emptyTextHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || reflect.ValueOf(data).String() != "" {
			return data, nil
		}
		if _, ok := reflect.New(to).Interface().(encoding.TextUnmarshaler); ok {
			return reflect.Zero(to).Interface(), nil
		}
		return data, nil
	}
}
