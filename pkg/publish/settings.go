package publish

import "fmt"

// SettingSpec declares one configurable setting a plugin expects to receive
// through the settings parameter of its lifecycle methods.
type SettingSpec struct {
	Type        string      `yaml:"type" json:"type"` // "string", "int", "bool"
	Default     interface{} `yaml:"default" json:"default"`
	Description string      `yaml:"description" json:"description"`
}

// Setting is a resolved setting value handed to a plugin at run time.
type Setting struct {
	Name  string
	Type  string
	value interface{}
}

// Value returns the raw setting value.
func (s *Setting) Value() interface{} {
	return s.value
}

// String returns the value as a string, or "" when it is not one.
func (s *Setting) String() string {
	if v, ok := s.value.(string); ok {
		return v
	}
	return ""
}

// Int returns the value as an int, or 0 when it is not numeric.
func (s *Setting) Int() int {
	switch v := s.value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Bool returns the value as a bool, or false when it is not one.
func (s *Setting) Bool() bool {
	if v, ok := s.value.(bool); ok {
		return v
	}
	return false
}

// Settings maps setting display names to resolved values.
type Settings map[string]*Setting

// Get returns a setting by name. A missing setting comes back as a zero
// Setting rather than nil so call sites can chain accessors safely.
func (s Settings) Get(name string) *Setting {
	if setting, ok := s[name]; ok {
		return setting
	}
	return &Setting{Name: name}
}

// ResolveSettings merges a plugin's declared schema with host-side overrides.
// Overrides for settings the schema does not declare are rejected; everything
// the schema declares falls back to its default.
func ResolveSettings(schema map[string]SettingSpec, overrides map[string]interface{}) (Settings, error) {
	resolved := make(Settings, len(schema))
	for name, spec := range schema {
		resolved[name] = &Setting{Name: name, Type: spec.Type, value: spec.Default}
	}
	for name, value := range overrides {
		setting, ok := resolved[name]
		if !ok {
			return nil, fmt.Errorf("unknown setting: %s", name)
		}
		setting.value = value
	}
	return resolved, nil
}
