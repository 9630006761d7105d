package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrEmptyBody = errors.New("message: empty body")
	ErrMalformed = errors.New("message: malformed body")
	ErrPayload   = errors.New("message: invalid payload")
	ErrNil       = errors.New("message: nil message")
)

// Encode renders m in the externally tagged form: unit variants as a bare
// JSON string, payload variants as a single-key object.
func Encode(m Message) ([]byte, error) {
	switch v := m.(type) {
	case nil:
		return nil, ErrNil
	case DebugGeordon:
		return tagged(KindDebugGeordon, v.Text)
	case Movement:
		return tagged(KindMovement, v.Point)
	case GDReqHalfRow:
		return tagged(KindGDReqHalfRow, v.Index)
	case GDHalfRow:
		cells := make([]int, HalfRowLen)
		for i, c := range v.Cells {
			cells[i] = int(c)
		}
		return tagged(KindGDHalfRow, cells)
	case Initialize:
		if v.BD == nil {
			v.BD = []Coordinate{}
		}
		return tagged(KindInitialize, v)
	case Unknown:
		if v.Tag == "" {
			return nil, fmt.Errorf("%w: unknown variant without tag", ErrMalformed)
		}
		if len(v.Payload) == 0 {
			return json.Marshal(v.Tag)
		}
		return tagged(Kind(v.Tag), json.RawMessage(v.Payload))
	}
	if _, ok := unitVariants[m.Kind()]; ok {
		return json.Marshal(string(m.Kind()))
	}
	return nil, fmt.Errorf("%w: cannot encode %T", ErrMalformed, m)
}

func tagged(k Kind, payload any) ([]byte, error) {
	return json.Marshal(map[Kind]any{k: payload})
}

// Decode parses one frame body. Well-formed bodies with an unmodelled tag
// decode to Unknown; anything else that does not match a variant shape is
// an error.
func Decode(body []byte) (Message, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}
	switch body[0] {
	case '"':
		var tag string
		if err := json.Unmarshal(body, &tag); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		return decodeUnit(Kind(tag))
	case '{':
		var env map[string]json.RawMessage
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if len(env) != 1 {
			return nil, fmt.Errorf("%w: expected one variant tag, got %d", ErrMalformed, len(env))
		}
		for tag, raw := range env {
			return decodeTagged(Kind(tag), raw)
		}
	}
	return nil, fmt.Errorf("%w: unexpected leading byte %q", ErrMalformed, body[0])
}

func decodeUnit(k Kind) (Message, error) {
	if k == "" {
		return nil, fmt.Errorf("%w: empty variant tag", ErrMalformed)
	}
	if m, ok := unitVariants[k]; ok {
		return m, nil
	}
	if Known(k) {
		return nil, fmt.Errorf("%w: %s requires a payload", ErrPayload, k)
	}
	return Unknown{Tag: string(k)}, nil
}

func decodeTagged(k Kind, raw json.RawMessage) (Message, error) {
	if k == "" {
		return nil, fmt.Errorf("%w: empty variant tag", ErrMalformed)
	}
	if m, ok := unitVariants[k]; ok {
		if !isNull(raw) {
			return nil, fmt.Errorf("%w: %s carries no payload", ErrPayload, k)
		}
		return m, nil
	}
	if Known(k) && isNull(raw) {
		return nil, fmt.Errorf("%w: %s requires a payload", ErrPayload, k)
	}

	switch k {
	case KindDebugGeordon:
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, payloadErr(k, err)
		}
		return DebugGeordon{Text: text}, nil
	case KindMovement:
		p, err := decodePoint(raw)
		if err != nil {
			return nil, payloadErr(k, err)
		}
		return Movement{Point: p}, nil
	case KindGDReqHalfRow:
		var idx uint8
		if err := json.Unmarshal(raw, &idx); err != nil {
			return nil, payloadErr(k, err)
		}
		return GDReqHalfRow{Index: idx}, nil
	case KindGDHalfRow:
		var cells []int
		if err := json.Unmarshal(raw, &cells); err != nil {
			return nil, payloadErr(k, err)
		}
		if len(cells) != HalfRowLen {
			return nil, payloadErr(k, fmt.Errorf("expected %d cells, got %d", HalfRowLen, len(cells)))
		}
		var out GDHalfRow
		for i, c := range cells {
			if c < 0 || c > 255 {
				return nil, payloadErr(k, fmt.Errorf("cell[%d]=%d out of byte range", i, c))
			}
			out.Cells[i] = byte(c)
		}
		return out, nil
	case KindInitialize:
		msg, err := decodeInitialize(raw)
		if err != nil {
			return nil, payloadErr(k, err)
		}
		return msg, nil
	}

	payload := make([]byte, len(raw))
	copy(payload, raw)
	return Unknown{Tag: string(k), Payload: payload}, nil
}

func decodePoint(raw json.RawMessage) (Point, error) {
	if err := requireKeys(raw, "x", "y", "v", "angle", "av"); err != nil {
		return Point{}, err
	}
	var p Point
	if err := json.Unmarshal(raw, &p); err != nil {
		return Point{}, err
	}
	return p, nil
}

func decodeCoordinate(raw json.RawMessage) (Coordinate, error) {
	if err := requireKeys(raw, "x", "y"); err != nil {
		return Coordinate{}, err
	}
	var c Coordinate
	if err := json.Unmarshal(raw, &c); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

func decodeInitialize(raw json.RawMessage) (Initialize, error) {
	var fields struct {
		NT *uint32            `json:"nt"`
		RA json.RawMessage    `json:"ra"`
		BD *[]json.RawMessage `json:"bd"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Initialize{}, err
	}
	if fields.NT == nil || isNull(fields.RA) || fields.BD == nil {
		return Initialize{}, errors.New("missing nt, ra or bd")
	}
	ra, err := decodeCoordinate(fields.RA)
	if err != nil {
		return Initialize{}, fmt.Errorf("ra: %w", err)
	}
	out := Initialize{NT: *fields.NT, RA: ra, BD: make([]Coordinate, 0, len(*fields.BD))}
	for i, item := range *fields.BD {
		c, err := decodeCoordinate(item)
		if err != nil {
			return Initialize{}, fmt.Errorf("bd[%d]: %w", i, err)
		}
		out.BD = append(out.BD, c)
	}
	return out, nil
}

func requireKeys(raw json.RawMessage, keys ...string) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return err
	}
	if obj == nil {
		return errors.New("expected an object")
	}
	for _, k := range keys {
		v, ok := obj[k]
		if !ok {
			return fmt.Errorf("missing field %q", k)
		}
		if isNull(v) {
			return fmt.Errorf("field %q is null", k)
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func payloadErr(k Kind, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPayload, k, err)
}
