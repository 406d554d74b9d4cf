// Package settings loads, validates and persists the user-editable metric
// configuration and export endpoint.
package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/models"
)

// Parse decodes user-supplied config JSON and validates it. Every failure
// wraps apperr.ErrInvalidConfig and names the offending category or field.
func Parse(raw string) ([]models.CategoryConfig, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		if isJSONArray(raw) {
			return nil, invalid("malformed JSON: %v", err)
		}
		return nil, invalid("config must be a JSON array")
	}
	if items == nil {
		// JSON null decodes without error.
		return nil, invalid("config must be a JSON array")
	}

	out := make([]models.CategoryConfig, 0, len(items))
	seen := make(map[string]string)
	for i, item := range items {
		cat, err := parseCategory(i, item)
		if err != nil {
			return nil, err
		}
		for _, m := range cat.Metrics {
			if prev, dup := seen[m.ID]; dup {
				return nil, invalid("category %q: metric id %q already used in category %q", cat.Category, m.ID, prev)
			}
			seen[m.ID] = cat.Category
		}
		out = append(out, cat)
	}
	return out, nil
}

// Format renders config as 2-space indented JSON suitable for the editor.
func Format(config []models.CategoryConfig) (string, error) {
	if config == nil {
		config = []models.CategoryConfig{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(config); err != nil {
		return "", fmt.Errorf("settings: format config: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// Reformat pretty-prints arbitrary JSON text without validating the schema.
func Reformat(raw string) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(strings.TrimSpace(raw)), "", "  "); err != nil {
		return "", invalid("invalid JSON, cannot format")
	}
	return buf.String(), nil
}

func parseCategory(i int, item json.RawMessage) (models.CategoryConfig, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		return models.CategoryConfig{}, invalid("item %d: must be an object", i)
	}

	var cat models.CategoryConfig
	if err := json.Unmarshal(fields["category"], &cat.Category); err != nil || !isJSONString(fields["category"]) {
		return models.CategoryConfig{}, invalid("item %d: needs a 'category' string", i)
	}

	var metrics []json.RawMessage
	if !isJSONArray(string(fields["metrics"])) {
		return models.CategoryConfig{}, invalid("category %q: needs a 'metrics' array", cat.Category)
	}
	if err := json.Unmarshal(fields["metrics"], &metrics); err != nil {
		return models.CategoryConfig{}, invalid("category %q: needs a 'metrics' array", cat.Category)
	}

	cat.Metrics = make([]models.MetricConfig, 0, len(metrics))
	for j, raw := range metrics {
		m, err := parseMetric(raw)
		if err != nil {
			return models.CategoryConfig{}, invalid("category %q: metric %d: %v", cat.Category, j, err)
		}
		cat.Metrics = append(cat.Metrics, m)
	}
	return cat, nil
}

func parseMetric(raw json.RawMessage) (models.MetricConfig, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return models.MetricConfig{}, fmt.Errorf("must be an object")
	}

	var m models.MetricConfig
	for _, f := range []struct {
		key string
		dst *string
	}{{"id", &m.ID}, {"label", &m.Label}} {
		v, ok := fields[f.key]
		if !ok || isJSONNull(v) {
			continue
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return models.MetricConfig{}, fmt.Errorf("%s: must be a string", f.key)
		}
	}
	for _, f := range []struct {
		key string
		dst **string
	}{{"linkPackage", &m.LinkPackage}, {"linkScheme", &m.LinkScheme}} {
		v, ok := fields[f.key]
		if !ok || isJSONNull(v) {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return models.MetricConfig{}, fmt.Errorf("%s: must be a string or null", f.key)
		}
		*f.dst = &s
	}

	if err := validateMetric(&m); err != nil {
		return models.MetricConfig{}, err
	}
	return m, nil
}

// validateMetric checks required fields. Field names in the error follow the
// json tags, e.g. "label: cannot be blank."
func validateMetric(m *models.MetricConfig) error {
	return validation.ValidateStruct(m,
		validation.Field(&m.ID, validation.Required),
		validation.Field(&m.Label, validation.Required),
	)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperr.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func isJSONArray(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), "[")
}

func isJSONString(raw json.RawMessage) bool {
	return strings.HasPrefix(strings.TrimSpace(string(raw)), `"`)
}

func isJSONNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}
