package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StringList is a list-valued setting. It decodes from either a JSON array
// (["a","b"]) or a comma separated string (a, b). Entries are trimmed and
// empty entries dropped.
type StringList []string

// Decode implements envconfig.Decoder
func (l *StringList) Decode(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		*l = StringList{}
		return nil
	}

	var items []string
	if strings.HasPrefix(value, "[") {
		if err := json.Unmarshal([]byte(value), &items); err != nil {
			return fmt.Errorf("parse list %q: %w", value, err)
		}
	} else {
		items = strings.Split(value, ",")
	}

	out := make(StringList, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*l = out
	return nil
}

func (l StringList) String() string {
	return strings.Join(l, ",")
}

// Contains reports whether v is in the list
func (l StringList) Contains(v string) bool {
	for _, item := range l {
		if item == v {
			return true
		}
	}
	return false
}
