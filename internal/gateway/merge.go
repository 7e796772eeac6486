package gateway

import (
	"encoding/json"
	"fmt"
)

// MergeDocuments folds the top-level fields of update into base and returns
// the combined document. Both inputs must be JSON objects; update wins on
// field collisions. This is the merge semantics of Store.Set.
func MergeDocuments(base, update []byte) ([]byte, error) {
	var dst map[string]json.RawMessage
	if err := json.Unmarshal(base, &dst); err != nil {
		return nil, fmt.Errorf("merge base: %w", err)
	}
	var src map[string]json.RawMessage
	if err := json.Unmarshal(update, &src); err != nil {
		return nil, fmt.Errorf("merge update: %w", err)
	}
	for k, v := range src {
		dst[k] = v
	}
	return json.Marshal(dst)
}
