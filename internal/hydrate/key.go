package hydrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"unicode/utf8"
)

// ErrInvalidUTF8 - строка во входе не является корректным UTF-8. encoding/json
// заменил бы такие байты на U+FFFD, и разные входы получили бы один ключ.
var ErrInvalidUTF8 = errors.New("hydrate: input contains invalid UTF-8")

// Key строит ключ кэша из пути процедуры и её входа. Вход приводится к
// каноническому JSON (ключи объектов отсортированы), поэтому равные входы
// дают равные ключи независимо от порядка полей. null и пустой вход равны {}.
func Key(path string, input any) (string, error) {
	if !validUTF8(reflect.ValueOf(input), 0) {
		return "", fmt.Errorf("%w (procedure %s)", ErrInvalidUTF8, path)
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("hydrate: marshal input of %s: %w", path, err)
	}
	canonical, err := canonicalJSON(raw)
	if err != nil {
		return "", fmt.Errorf("hydrate: canonicalize input of %s: %w", path, err)
	}
	return path + "?" + canonical, nil
}

func canonicalJSON(raw []byte) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "{}", nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	// encoding/json сортирует ключи map при кодировании
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// maxDepth ограничивает обход циклических входов; их отвергнет json.Marshal.
const maxDepth = 64

func validUTF8(v reflect.Value, depth int) bool {
	if depth > maxDepth {
		return true
	}
	depth++
	switch v.Kind() {
	case reflect.String:
		return utf8.ValidString(v.String())
	case reflect.Pointer, reflect.Interface:
		return v.IsNil() || validUTF8(v.Elem(), depth)
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() && !validUTF8(v.Field(i), depth) {
				return false
			}
		}
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			// []byte кодируется в base64 без потерь
			return true
		}
		for i := 0; i < v.Len(); i++ {
			if !validUTF8(v.Index(i), depth) {
				return false
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if !validUTF8(iter.Key(), depth) || !validUTF8(iter.Value(), depth) {
				return false
			}
		}
	}
	return true
}
