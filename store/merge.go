package store

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

func newKey() string { return uuid.NewString() }

// mergeFields applies a shallow merge of fields onto doc. A missing or null
// doc is treated as an empty object.
func mergeFields(doc json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	obj := map[string]json.RawMessage{}
	if len(doc) > 0 && string(doc) != "null" {
		if err := json.Unmarshal(doc, &obj); err != nil {
			return nil, errors.Wrap(err, "existing document is not an object")
		}
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrapf(err, "encode field %q", k)
		}
		obj[k] = raw
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func cloneCollection(src Collection) Collection {
	out := make(Collection, len(src))
	for k, v := range src {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
