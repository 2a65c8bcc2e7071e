package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// TransferTarget is either an account id or a state id, depending on the
// transfer type. The UI sends account ids as numbers and state ids as strings,
// but either may arrive in either form.
type TransferTarget string

func (t *TransferTarget) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = TransferTarget(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = TransferTarget(n.String())
	return nil
}

// AccountID reads the target as an account id
func (t TransferTarget) AccountID() (int64, bool) {
	id, err := strconv.ParseInt(string(t), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
