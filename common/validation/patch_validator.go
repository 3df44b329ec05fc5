package validation

import (
	"fmt"
	"strings"
)

// PatchValidator checks RFC 6902 operations before they are applied.
// Paths must stay inside the allowed top-level fields.
type PatchValidator struct {
	allowedRoots map[string]bool
	maxOps       int
}

// NewPatchValidator creates a validator limited to maxOps operations on the given roots
func NewPatchValidator(maxOps int, roots ...string) *PatchValidator {
	allowed := make(map[string]bool, len(roots))
	for _, r := range roots {
		allowed[r] = true
	}
	return &PatchValidator{
		allowedRoots: allowed,
		maxOps:       maxOps,
	}
}

// ValidateOperations validates all patch operations
func (v *PatchValidator) ValidateOperations(operations []map[string]interface{}) error {
	if len(operations) == 0 {
		return fmt.Errorf("patch validation failed: no operations")
	}
	if v.maxOps > 0 && len(operations) > v.maxOps {
		return fmt.Errorf("patch validation failed: at most %d operations per patch (got %d)", v.maxOps, len(operations))
	}

	for i, op := range operations {
		if err := v.validateOperation(op, i); err != nil {
			return err
		}
	}

	return nil
}

// validateOperation validates a single operation
func (v *PatchValidator) validateOperation(op map[string]interface{}, index int) error {
	// Check required fields
	opType, ok := op["op"].(string)
	if !ok {
		return fmt.Errorf("operation %d: missing or invalid 'op' field", index)
	}

	path, ok := op["path"].(string)
	if !ok {
		return fmt.Errorf("operation %d: missing or invalid 'path' field", index)
	}
	if err := v.validatePath(path, index); err != nil {
		return err
	}

	// Validate based on operation type
	switch opType {
	case "add", "replace", "test":
		if _, ok := op["value"]; !ok {
			return fmt.Errorf("operation %d: 'value' required for %s operation", index, opType)
		}

	case "remove":
		// Remove doesn't need value
		return nil

	case "move", "copy":
		from, ok := op["from"].(string)
		if !ok {
			return fmt.Errorf("operation %d: 'from' required for %s operation", index, opType)
		}
		return v.validatePath(from, index)

	default:
		return fmt.Errorf("operation %d: unsupported operation type: %s", index, opType)
	}

	return nil
}

func (v *PatchValidator) validatePath(path string, index int) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("operation %d: path %q must start with '/'", index, path)
	}
	if len(v.allowedRoots) == 0 {
		return nil
	}

	root := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)[0]
	if !v.allowedRoots[root] {
		return fmt.Errorf("operation %d: field %q cannot be patched", index, root)
	}
	return nil
}
