package config

import (
	"reflect"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

// hookFunc decodes string-typed YAML/flag values into Octal.
func hookFunc() mapstructure.DecodeHookFuncType {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t != reflect.TypeOf(Octal(0)) {
			return data, nil
		}
		v, err := strconv.ParseUint(data.(string), 8, 32)
		if err != nil {
			return nil, err
		}
		return Octal(v), nil
	}
}

// DecodeHook is the viper/mapstructure decode hook memvfsctl installs so
// Config.Unmarshal understands Octal, time.Duration and comma-separated
// slices the same way the rest of the decode pipeline does.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		hookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}
