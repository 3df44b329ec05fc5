package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatchValidator(t *testing.T) {
	v := NewPatchValidator(3, "title", "metadata")

	tests := []struct {
		name    string
		ops     []map[string]interface{}
		wantErr string
	}{
		{"replace title", []map[string]interface{}{{"op": "replace", "path": "/title", "value": "x"}}, ""},
		{"nested path", []map[string]interface{}{{"op": "add", "path": "/metadata/targetRelease", "value": "v2"}}, ""},
		{"remove", []map[string]interface{}{{"op": "remove", "path": "/metadata/targetRelease"}}, ""},
		{"copy", []map[string]interface{}{{"op": "copy", "from": "/title", "path": "/metadata/targetRelease"}}, ""},
		{"empty", nil, "no operations"},
		{"too many", []map[string]interface{}{
			{"op": "test", "path": "/title", "value": "a"},
			{"op": "test", "path": "/title", "value": "a"},
			{"op": "test", "path": "/title", "value": "a"},
			{"op": "test", "path": "/title", "value": "a"},
		}, "at most 3"},
		{"missing op", []map[string]interface{}{{"path": "/title"}}, "'op'"},
		{"missing value", []map[string]interface{}{{"op": "replace", "path": "/title"}}, "'value' required"},
		{"foreign field", []map[string]interface{}{{"op": "replace", "path": "/status", "value": "approved"}}, `"status" cannot be patched`},
		{"relative path", []map[string]interface{}{{"op": "replace", "path": "title", "value": "x"}}, "must start with '/'"},
		{"move from foreign field", []map[string]interface{}{{"op": "move", "from": "/votes", "path": "/title"}}, `"votes" cannot be patched`},
		{"unknown op", []map[string]interface{}{{"op": "merge", "path": "/title"}}, "unsupported operation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateOperations(tt.ops)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
