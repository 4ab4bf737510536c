// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

var (
	ErrActivityNotFound = errors.New("activity not found")
	ErrUnknownField     = errors.New("unknown activity field")
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// Save writes the registry as indented JSON, creating the directory.
func (r *ActivityRegistry) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

// Lookup finds the activity bound to a Zeebe task type.
func (r *ActivityRegistry) Lookup(taskType string) (Activity, bool) {
	for _, a := range r.Activities {
		if a.TaskType == taskType {
			return a, true
		}
	}
	return Activity{}, false
}

// Missing returns the task types, sorted, that have no activity.
func (r *ActivityRegistry) Missing(taskTypes []string) []string {
	var out []string
	for _, tt := range taskTypes {
		if _, ok := r.Lookup(tt); !ok {
			out = append(out, tt)
		}
	}
	sort.Strings(out)
	return out
}

// Validate checks required fields, unique ids and task types, statuses and
// timeouts.
func (r *ActivityRegistry) Validate() error {
	if len(r.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool)
	taskTypes := make(map[string]bool)
	for _, a := range r.Activities {
		if a.ID == "" {
			return fmt.Errorf("activity missing required field: ID")
		}
		if ids[a.ID] {
			return fmt.Errorf("duplicate activity ID: %s", a.ID)
		}
		ids[a.ID] = true

		if a.DisplayName == "" {
			return fmt.Errorf("activity %s missing required field: DisplayName", a.ID)
		}
		if a.TaskType == "" {
			return fmt.Errorf("activity %s missing required field: TaskType", a.ID)
		}
		if taskTypes[a.TaskType] {
			return fmt.Errorf("activity %s: task type %s registered twice", a.ID, a.TaskType)
		}
		taskTypes[a.TaskType] = true

		if a.Category == "" {
			return fmt.Errorf("activity %s missing required field: Category", a.ID)
		}
		if !validStatuses[a.ImplementationStatus] {
			return fmt.Errorf("activity %s: invalid implementation status %q", a.ID, a.ImplementationStatus)
		}
		if a.Retries < 0 {
			return fmt.Errorf("activity %s: retries must not be negative", a.ID)
		}
		if a.Timeout != "" {
			if _, err := a.TimeoutDuration(); err != nil {
				return fmt.Errorf("activity %s: %w", a.ID, err)
			}
		}
	}
	return nil
}

// TimeoutDuration parses the Timeout field. An empty timeout is zero.
func (a Activity) TimeoutDuration() (time.Duration, error) {
	if a.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(a.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", a.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid timeout %q: must be positive", a.Timeout)
	}
	return d, nil
}

// Update sets one field of the activity with the given id and stamps
// LastUpdated.
func (r *ActivityRegistry) Update(id, field, value string, now time.Time) error {
	idx := -1
	for i := range r.Activities {
		if r.Activities[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrActivityNotFound, id)
	}

	a := &r.Activities[idx]
	switch field {
	case "status":
		if !validStatuses[value] {
			return fmt.Errorf("invalid implementation status %q", value)
		}
		a.ImplementationStatus = value
	case "version":
		a.Version = value
	case "displayName":
		a.DisplayName = value
	case "description":
		a.Description = value
	case "category":
		a.Category = value
	case "timeout":
		prev := a.Timeout
		a.Timeout = value
		if _, err := a.TimeoutDuration(); err != nil {
			a.Timeout = prev
			return err
		}
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil || retries < 0 {
			return fmt.Errorf("invalid retries value %q", value)
		}
		a.Retries = retries
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}

	r.LastUpdated = now.UTC().Format(time.RFC3339)
	return nil
}
