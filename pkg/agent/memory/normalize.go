package memory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrNotSerializable is returned when a value is neither text nor representable as JSON.
var ErrNotSerializable = errors.New("memory: value is not JSON-serializable")

// Normalize maps a value produced upstream to the text that is persisted.
//
// A string is returned unchanged. Every other value is rendered as compact
// JSON with ", " and ": " separators and non-ASCII characters left literal.
// Object keys keep their source order for *orderedmap.OrderedMap values,
// json.RawMessage input and structs; plain Go maps are emitted with sorted keys.
func Normalize(value any) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	var buf bytes.Buffer
	if err := encodeValue(&buf, value); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func encodeValue(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		return encodeString(buf, v)
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		// Marshal validates the literal.
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNotSerializable, err)
		}
		buf.Write(b)
	case json.RawMessage:
		return encodeRaw(buf, v)
	case *orderedmap.OrderedMap[string, any]:
		if v == nil {
			buf.WriteString("null")
			return nil
		}
		buf.WriteByte('{')
		first := true
		for pair := v.Oldest(); pair != nil; pair = pair.Next() {
			if !first {
				buf.WriteString(", ")
			}
			first = false
			if err := encodeMember(buf, pair.Key, pair.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case map[string]any:
		if v == nil {
			buf.WriteString("null")
			return nil
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteString(", ")
			}
			if err := encodeMember(buf, k, v[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		if v == nil {
			buf.WriteString("null")
			return nil
		}
		buf.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				buf.WriteString(", ")
			}
			if err := encodeValue(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		// Typed values (structs, typed maps and slices, numbers) go through
		// encoding/json first so their tags and field order are honoured.
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNotSerializable, err)
		}
		return encodeRaw(buf, raw)
	}
	return nil
}

func encodeMember(buf *bytes.Buffer, key string, value any) error {
	if err := encodeString(buf, key); err != nil {
		return err
	}
	buf.WriteString(": ")
	return encodeValue(buf, value)
}

// encodeString writes s as a JSON string. U+2028 and U+2029 are written
// literally like every other non-ASCII rune; encoding/json would escape them.
func encodeString(buf *bytes.Buffer, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: string is not valid UTF-8", ErrNotSerializable)
	}
	buf.WriteByte('"')
	for {
		i := strings.IndexAny(s, "\u2028\u2029")
		if i < 0 {
			break
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		if err := encodeFragment(buf, s[:i]); err != nil {
			return err
		}
		buf.WriteString(s[i : i+size])
		s = s[i+size:]
	}
	if err := encodeFragment(buf, s); err != nil {
		return err
	}
	buf.WriteByte('"')
	return nil
}

// encodeFragment writes the escaped body of s without surrounding quotes.
func encodeFragment(buf *bytes.Buffer, s string) error {
	if s == "" {
		return nil
	}
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("%w: %w", ErrNotSerializable, err)
	}
	quoted := bytes.TrimSuffix(tmp.Bytes(), []byte("\n"))
	buf.Write(quoted[1 : len(quoted)-1])
	return nil
}

// encodeRaw re-emits a JSON document in canonical form, keeping object keys
// in the order they appear in raw.
func encodeRaw(buf *bytes.Buffer, raw []byte) error {
	if !utf8.Valid(raw) {
		return fmt.Errorf("%w: raw JSON is not valid UTF-8", ErrNotSerializable)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	v, err := decodeOrdered(dec)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotSerializable, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after JSON value", ErrNotSerializable)
	}
	return encodeValue(buf, v)
}

// decodeOrdered reads one JSON value, returning objects as ordered maps.
func decodeOrdered(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		obj := orderedmap.New[string, any]()
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("object key is %T, not string", keyTok)
			}
			val, err := decodeOrdered(dec)
			if err != nil {
				return nil, err
			}
			obj.Set(key, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		arr := []any{}
		for dec.More() {
			val, err := decodeOrdered(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %q", delim)
	}
}
