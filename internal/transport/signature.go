package transport

import (
	"fmt"
	"reflect"

	"github.com/godbus/dbus/v5"
)

var (
	variantType    = reflect.TypeOf(dbus.Variant{})
	objectPathType = reflect.TypeOf(dbus.ObjectPath(""))
	signatureType  = reflect.TypeOf(dbus.Signature{})
	stringType     = reflect.TypeOf("")
	unixFDType     = reflect.TypeOf(dbus.UnixFDIndex(0))
)

// Conforms reports whether body has exactly the D-Bus signature sig, in the
// shapes godbus produces when decoding: structs as []any, dictionaries as
// maps, variants as dbus.Variant. Empty arrays conform to any element type.
func Conforms(body []any, sig string) error {
	if sig != "" {
		if _, err := dbus.ParseSignature(sig); err != nil {
			return fmt.Errorf("expected signature %q: %w", sig, err)
		}
	}
	rest := sig
	for i, value := range body {
		if rest == "" {
			return fmt.Errorf("body has %d values, signature %q expects fewer", len(body), sig)
		}
		single, tail := nextType(rest)
		if !conforms(single, reflect.ValueOf(value)) {
			return fmt.Errorf("body value %d (%T) does not match %q", i, value, single)
		}
		rest = tail
	}
	if rest != "" {
		return fmt.Errorf("body has %d values, signature %q expects more", len(body), sig)
	}
	return nil
}

func nextType(sig string) (string, string) {
	n := typeLen(sig)
	return sig[:n], sig[n:]
}

func typeLen(sig string) int {
	if sig == "" {
		return 0
	}
	switch sig[0] {
	case 'a':
		return 1 + typeLen(sig[1:])
	case '(', '{':
		depth := 0
		for i := 0; i < len(sig); i++ {
			switch sig[i] {
			case '(', '{':
				depth++
			case ')', '}':
				depth--
				if depth == 0 {
					return i + 1
				}
			}
		}
		return len(sig)
	default:
		return 1
	}
}

func splitTypes(sig string) []string {
	var out []string
	for sig != "" {
		var single string
		single, sig = nextType(sig)
		out = append(out, single)
	}
	return out
}

func conforms(sig string, v reflect.Value) bool {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return false
		}
		v = v.Elem()
	}
	if !v.IsValid() || sig == "" {
		return false
	}
	switch sig[0] {
	case 'v':
		return v.Type() == variantType
	case 's':
		return v.Type() == stringType
	case 'o':
		return v.Type() == objectPathType
	case 'g':
		return v.Type() == signatureType
	case 'h':
		return v.Type() == unixFDType
	case 'b':
		return v.Kind() == reflect.Bool
	case 'y':
		return v.Kind() == reflect.Uint8
	case 'n':
		return v.Kind() == reflect.Int16
	case 'q':
		return v.Kind() == reflect.Uint16
	case 'i':
		return v.Kind() == reflect.Int32
	case 'u':
		return v.Kind() == reflect.Uint32
	case 'x':
		return v.Kind() == reflect.Int64
	case 't':
		return v.Kind() == reflect.Uint64
	case 'd':
		return v.Kind() == reflect.Float64
	case 'a':
		if len(sig) > 1 && sig[1] == '{' {
			return conformsDict(sig[2:len(sig)-1], v)
		}
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return false
		}
		for i := 0; i < v.Len(); i++ {
			if !conforms(sig[1:], v.Index(i)) {
				return false
			}
		}
		return true
	case '(':
		if v.Kind() != reflect.Slice {
			return false
		}
		members := splitTypes(sig[1 : len(sig)-1])
		if v.Len() != len(members) {
			return false
		}
		for i, member := range members {
			if !conforms(member, v.Index(i)) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func conformsDict(inner string, v reflect.Value) bool {
	if v.Kind() != reflect.Map {
		return false
	}
	keySig, valueSig := nextType(inner)
	iter := v.MapRange()
	for iter.Next() {
		if !conforms(keySig, iter.Key()) || !conforms(valueSig, iter.Value()) {
			return false
		}
	}
	return true
}
