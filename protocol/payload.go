package protocol

import (
	"bytes"
	"encoding/json"
	"strings"

	termsuggest "github.com/Paranoid-AF/termsuggest"
)

// RawCompletion is one completion record as emitted by the shell.
// Field names follow the shell's object form; the positional form maps
// index 0 to Text, 1 to Kind, 2 to Tooltip and 3 to CustomIcon.
type RawCompletion struct {
	Text       string                 `json:"CompletionText"`
	Kind       termsuggest.ResultKind `json:"ResultType"`
	Tooltip    *string                `json:"ToolTip,omitempty"`
	CustomIcon *string                `json:"CustomIcon,omitempty"`
}

// batchShape tags the layout of a payload, sniffed once before decoding.
type batchShape int

const (
	shapeEmpty batchShape = iota
	shapeObject
	shapeTuple
	shapeObjectList
	shapeTupleList
)

func (s batchShape) String() string {
	switch s {
	case shapeEmpty:
		return "empty"
	case shapeObject:
		return "object"
	case shapeTuple:
		return "tuple"
	case shapeObjectList:
		return "object list"
	case shapeTupleList:
		return "tuple list"
	}
	return "unknown"
}

// batch is a payload split by shape. For shapeObject, elems holds the single record;
// for the other non-empty shapes it holds the top-level array elements.
type batch struct {
	shape batchShape
	elems []json.RawMessage
}

var jsonNull = []byte("null")

// Decode turns a completion payload into raw records. An empty or null payload
// yields an empty, non-nil list.
func Decode(payload string) ([]RawCompletion, error) {
	b, err := sniff(payload)
	if err != nil {
		return nil, err
	}

	switch b.shape {
	case shapeEmpty:
		return []RawCompletion{}, nil

	case shapeObject:
		rc, err := decodeObject(b.elems[0], 0)
		if err != nil {
			return nil, err
		}
		return []RawCompletion{rc}, nil

	case shapeTuple:
		rc, err := decodeTuple(b.elems, 0)
		if err != nil {
			return nil, err
		}
		return []RawCompletion{rc}, nil

	case shapeObjectList:
		out := make([]RawCompletion, 0, len(b.elems))
		for i, elem := range b.elems {
			rc, err := decodeObject(elem, i)
			if err != nil {
				return nil, err
			}
			out = append(out, rc)
		}
		return out, nil

	case shapeTupleList:
		out := make([]RawCompletion, 0, len(b.elems))
		for i, elem := range b.elems {
			var fields []json.RawMessage
			if err := json.Unmarshal(elem, &fields); err != nil {
				return nil, wrapDecodeError(err, "record %d: expected positional tuple", i)
			}
			rc, err := decodeTuple(fields, i)
			if err != nil {
				return nil, err
			}
			out = append(out, rc)
		}
		return out, nil
	}

	return nil, decodeErrorf("unsupported payload shape %s", b.shape)
}

// sniff classifies the payload by its top-level value and, for arrays, by the
// first element.
func sniff(payload string) (batch, error) {
	trimmed := bytes.TrimSpace([]byte(payload))
	if len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull) {
		return batch{shape: shapeEmpty}, nil
	}

	if trimmed[0] != '[' {
		return batch{shape: shapeObject, elems: []json.RawMessage{trimmed}}, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return batch{}, wrapDecodeError(err, "payload is not a valid array")
	}
	if len(elems) == 0 {
		return batch{shape: shapeEmpty}, nil
	}

	switch firstByte(elems[0]) {
	case '"':
		return batch{shape: shapeTuple, elems: elems}, nil
	case '[':
		return batch{shape: shapeTupleList, elems: elems}, nil
	}
	return batch{shape: shapeObjectList, elems: elems}, nil
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func decodeObject(raw json.RawMessage, index int) (RawCompletion, error) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, jsonNull) {
		return RawCompletion{}, decodeErrorf("record %d is null", index)
	}
	var rc RawCompletion
	if err := json.Unmarshal(trimmed, &rc); err != nil {
		return RawCompletion{}, wrapDecodeError(err, "record %d: invalid object", index)
	}
	return rc, nil
}

func decodeTuple(fields []json.RawMessage, index int) (RawCompletion, error) {
	if len(fields) < 2 {
		return RawCompletion{}, decodeErrorf("record %d: tuple has %d fields, want at least 2", index, len(fields))
	}

	var rc RawCompletion
	if err := json.Unmarshal(fields[0], &rc.Text); err != nil {
		return RawCompletion{}, wrapDecodeError(err, "record %d: text", index)
	}
	if err := json.Unmarshal(fields[1], &rc.Kind); err != nil {
		return RawCompletion{}, wrapDecodeError(err, "record %d: result kind", index)
	}
	if len(fields) > 2 {
		tooltip, err := optionalString(fields[2])
		if err != nil {
			return RawCompletion{}, wrapDecodeError(err, "record %d: tooltip", index)
		}
		rc.Tooltip = tooltip
	}
	if len(fields) > 3 {
		icon, err := optionalString(fields[3])
		if err != nil {
			return RawCompletion{}, wrapDecodeError(err, "record %d: custom icon", index)
		}
		rc.CustomIcon = icon
	}
	return rc, nil
}

// optionalString decodes a string that may be null.
func optionalString(raw json.RawMessage) (*string, error) {
	if bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// truncatePayload shortens a payload for error details.
func truncatePayload(s string) string {
	const max = 120
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
