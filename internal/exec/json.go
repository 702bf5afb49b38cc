package exec

import "encoding/json"

// marshalProps/unmarshalProps back the json.encode/json.decode opcodes
// (compiled to the __json_encode/__json_decode globals) with the same
// encoding/json the store uses for entity props, so a round trip through
// json.encode/decode and a round trip through the store agree.
func marshalProps(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalProps(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}
