package sqlite

import "encoding/json"

func marshalMetadata(m map[string]interface{}) (interface{}, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalMetadata(s string, dst *map[string]interface{}) error {
	return json.Unmarshal([]byte(s), dst)
}
