package server

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// parseFolderRef interprets an optional folder reference from a JSON body.
// An absent field means "leave unchanged"; null means the root; a positive
// number or numeric string names a folder.
func parseFolderRef(raw json.RawMessage) (move bool, id *int64, ok bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false, nil, true
	}
	if bytes.Equal(raw, []byte("null")) {
		return true, nil, true
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return false, nil, false
		}
		if str == "" {
			return true, nil, true
		}
		n, err = strconv.ParseInt(str, 10, 64)
		if err != nil {
			return false, nil, false
		}
	}
	if n <= 0 {
		return false, nil, false
	}
	return true, &n, true
}
