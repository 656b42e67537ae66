// Persistent user settings for the tower rewriter
//
// Settings live in a JSON file next to the working directory so a user
// without the command line flags can edit them directly. Every setting has
// a declared type and a one-line description; the same table drives
// validation, the generated documentation file, and the CLI help.
//
// Copyright (C) 2026  TempTower Go Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package settings

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/viper"

	"temptower-go/pkg/errors"
	"temptower-go/pkg/tower"
)

// DefaultPath is where settings persist unless overridden.
const DefaultPath = "settings.json"

// DocumentationPath is where the generated settings reference is written.
const DocumentationPath = "settings descriptions.txt"

// Type names shown in help output before each description.
const (
	TypeString = "str"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeFloats = "list of float"
)

// Setting declares one tunable: its key in the JSON file, its type, its
// default, and the help line shown to the user.
type Setting struct {
	Name        string
	Type        string
	Default     interface{}
	Description string
}

// registry lists every valid setting, in display order.
var registry = []Setting{
	{"template_gcode_path", TypeString, "",
		"Look here for the source gcode of the temperature tower."},
	{"default_path", TypeString, "tower.gcode",
		"Look here if template_gcode_path is not specified."},
	{"level_count", TypeInt, tower.DefaultFloorCount,
		"This is how many levels are in the source gcode file."},
	{"level_height", TypeFloat, tower.DefaultFloorHeight,
		"The height of each level (special_heights can override this for" +
			" individual levels of the tower)."},
	{"special_heights", TypeFloats, []float64{tower.DefaultFirstFloorHeight},
		"Heights of the earliest levels that don't match level_height" +
			" (must be consecutive from the first level)."},
	{"temperature_step", TypeInt, 5,
		"Change this many degrees at each level."},
	{"max_z_build_movement", TypeFloat, tower.DefaultBuildMovementThreshold,
		"This Z distance or less is counted as a build movement, and is" +
			" eliminated after the tower is truncated (after there are no more" +
			" temperature steps in the range and the next level would start)."},
	{"min_temperature", TypeInt, 0,
		"The first level of the temperature tower should be printed at this" +
			" temperature (C)."},
	{"max_temperature", TypeInt, 0,
		"After incrementing each level of the tower by temperature_step," +
			" finish the level that is this temperature then stop printing."},
}

// Store wraps a viper instance bound to one JSON settings file.
type Store struct {
	v    *viper.Viper
	path string
}

// New prepares a store with all defaults applied. Nothing is read from disk
// until Load.
func New(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	for _, s := range registry {
		v.SetDefault(s.Name, s.Default)
	}
	return &Store{v: v, path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load reads the settings file if it exists and rejects unknown keys. A
// missing file is not an error; defaults stay in effect.
func (s *Store) Load() error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil
	}
	if err := s.v.ReadInConfig(); err != nil {
		return errors.ConfigValidationError(s.path, err.Error())
	}
	valid := make(map[string]bool, len(registry))
	for _, st := range registry {
		valid[st.Name] = true
	}
	for _, key := range s.v.AllKeys() {
		if !valid[key] {
			return errors.ConfigValidationError(key, "is not a valid setting name")
		}
	}
	return nil
}

// Save writes the current settings back to the JSON file.
func (s *Store) Save() error {
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return errors.WriteError(s.path, err)
	}
	return nil
}

// lookup returns the registry entry for a name.
func lookup(name string) (Setting, bool) {
	for _, st := range registry {
		if st.Name == name {
			return st, true
		}
	}
	return Setting{}, false
}

// Set parses a textual value according to the setting's declared type.
func (s *Store) Set(name, value string) error {
	st, ok := lookup(name)
	if !ok {
		return errors.ConfigValidationError(name, "is not a valid setting name")
	}
	switch st.Type {
	case TypeString:
		s.v.Set(name, value)
	case TypeInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.ConfigTypeError(name, value, TypeInt, err)
		}
		s.v.Set(name, n)
	case TypeFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.ConfigTypeError(name, value, TypeFloat, err)
		}
		s.v.Set(name, f)
	default:
		return errors.ConfigValidationError(name, "cannot be set from a single value")
	}
	return nil
}

// SetInt stores an integer setting directly.
func (s *Store) SetInt(name string, value int) { s.v.Set(name, value) }

// SetString stores a string setting directly.
func (s *Store) SetString(name, value string) { s.v.Set(name, value) }

func (s *Store) String(name string) string { return s.v.GetString(name) }
func (s *Store) Int(name string) int       { return s.v.GetInt(name) }
func (s *Store) Float(name string) float64 { return s.v.GetFloat64(name) }

// Floats reads a float-list setting, tolerating the loosely-typed values a
// hand-edited JSON file can contain.
func (s *Store) Floats(name string) []float64 {
	raw := s.v.Get(name)
	switch vals := raw.(type) {
	case []float64:
		return vals
	case []interface{}:
		out := make([]float64, 0, len(vals))
		for _, item := range vals {
			switch n := item.(type) {
			case float64:
				out = append(out, n)
			case int:
				out = append(out, float64(n))
			case string:
				if f, err := strconv.ParseFloat(n, 64); err == nil {
					out = append(out, f)
				}
			}
		}
		return out
	}
	return nil
}

// Names returns every setting name in display order.
func Names() []string {
	names := make([]string, len(registry))
	for i, st := range registry {
		names[i] = st.Name
	}
	return names
}

// Help returns the documentation for a setting, preceded by its type in
// parentheses.
func Help(name string) string {
	st, ok := lookup(name)
	if !ok {
		return ""
	}
	return "(" + st.Type + ") " + st.Description
}

// SourcePath resolves the tower gcode path: an explicit argument wins, then
// template_gcode_path, then default_path.
func (s *Store) SourcePath(arg string) string {
	if arg != "" {
		return arg
	}
	if p := s.String("template_gcode_path"); p != "" {
		return p
	}
	return s.String("default_path")
}

// TowerConfig materializes the rewriter configuration from the stored
// settings plus the resolved source path and temperature range.
func (s *Store) TowerConfig(source string, minTemp, maxTemp int) tower.Config {
	return tower.Config{
		TemplateSourcePath:     source,
		FloorCount:             s.Int("level_count"),
		FloorHeight:            s.Float("level_height"),
		FloorHeightOverrides:   s.Floats("special_heights"),
		MinTemperature:         minTemp,
		MaxTemperature:         maxTemp,
		TemperatureStep:        s.Int("temperature_step"),
		BuildMovementThreshold: s.Float("max_z_build_movement"),
		EndRetractionMarker:    tower.DefaultEndRetractionMarker,
	}
}

// WriteDocumentation emits the slicer-compatibility note and the per-setting
// reference to a stream.
func (s *Store) WriteDocumentation(w io.Writer) error {
	var err error
	write := func(line string) {
		if err == nil {
			_, err = fmt.Fprintln(w, line)
		}
	}
	write("  Slicer Compatibility:")
	write("  - You must put \"" + tower.DefaultEndRetractionMarker + "\" in" +
		" the comment on the same line as any retractions in your end gcode" +
		" that you don't want stripped off when the top of the tower is" +
		" truncated.")
	write("")
	write(fmt.Sprintf("You can edit %q to change settings", s.path))
	write("")
	write("Settings:")
	for _, st := range registry {
		write("- " + st.Name + ": " + Help(st.Name))
	}
	return err
}

// SaveDocumentationOnce writes the settings reference file unless it already
// exists. It reports whether the file was written now.
func (s *Store) SaveDocumentationOnce(path string) (bool, error) {
	if path == "" {
		path = DocumentationPath
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return false, errors.WriteError(path, err)
	}
	defer f.Close()
	if err := s.WriteDocumentation(f); err != nil {
		os.Remove(path)
		return false, errors.WriteError(path, err)
	}
	return true, nil
}
