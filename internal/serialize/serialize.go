// Package serialize turns resource values into CloudFormation property maps
// and finds the logical IDs those maps reference.
package serialize

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Properties serializes a resource struct into its CloudFormation
// properties. Zero-valued fields are omitted, json.Marshaler values
// (intrinsic functions, policy principals) are expanded through their JSON
// form, and field names come from the json tag.
func Properties(v any) (map[string]any, error) {
	val := reflect.ValueOf(v)
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, nil
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("serialize: expected struct, got %s", val.Kind())
	}
	out, err := structValue(val, "")
	if err != nil {
		return nil, err
	}
	return out, nil
}

func structValue(val reflect.Value, path string) (map[string]any, error) {
	result := make(map[string]any)
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name := fieldName(field)
		if name == "-" {
			continue
		}
		fv := val.Field(i)
		if isZero(fv) {
			continue
		}
		v, err := value(fv, join(path, name))
		if err != nil {
			return nil, err
		}
		if v != nil {
			result[name] = v
		}
	}
	return result, nil
}

func fieldName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name
	}
	return name
}

func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Slice, reflect.Map:
		return v.IsNil() || v.Len() == 0
	case reflect.Struct:
		if z, ok := v.Interface().(interface{ IsZero() bool }); ok {
			return z.IsZero()
		}
		return false
	default:
		return v.IsZero()
	}
}

func value(v reflect.Value, path string) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}
	if v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		// Marshalers on pointer receivers are checked before unwrapping.
		if m, ok := v.Interface().(json.Marshaler); ok && v.Kind() == reflect.Ptr {
			return marshaled(m, path)
		}
		return value(v.Elem(), path)
	}

	if m, ok := v.Interface().(json.Marshaler); ok {
		return marshaled(m, path)
	}

	switch v.Kind() {
	case reflect.Struct:
		return structValue(v, path)
	case reflect.Slice, reflect.Array:
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			elem, err := value(v.Index(i), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = elem
		}
		return out, nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%s: map key must be string, got %s", path, v.Type().Key())
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			elem, err := value(iter.Value(), join(path, key))
			if err != nil {
				return nil, err
			}
			out[key] = elem
		}
		return out, nil
	case reflect.String:
		return v.String(), nil
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	default:
		return nil, fmt.Errorf("%s: unsupported kind %s", path, v.Kind())
	}
}

func marshaled(m json.Marshaler, path string) (any, error) {
	data, err := m.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
