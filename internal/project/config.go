package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	yaml "gopkg.in/yaml.v3"
)

// ConfigName is the optional tool configuration file searched for beside the
// manifest. It supplies defaults for values no flag set.
const ConfigName = "bookforge.yaml"

// Defaults applied when neither flags nor the config file supply a value.
const (
	DefaultEngine          = "xsltproc"
	DefaultPDFEngine       = "pdflatex"
	DefaultViewPort        = 8000
	DefaultViewAccess      = "private"
	DefaultExercisesServer = "https://webwork-ptx.aimath.org"
)

// Settings holds tool-level configuration resolved from flags, the optional
// config file, and built-in defaults. It is distinct from Build: Settings
// describe how tools are invoked, Build describes what to build.
type Settings struct {
	Engine          string
	PDFEngine       string
	ViewPort        int
	ViewAccess      string
	ExercisesServer string
	// ExercisesMaxAge sweeps render-cache entries older than this before an
	// exercise pass. Zero keeps the cache forever.
	ExercisesMaxAge time.Duration
	Params          map[string]string
}

// FileConfig is the on-disk schema of the optional config file. Nested
// sections map naturally to flags.
type FileConfig struct {
	Engine struct {
		Command string `yaml:"command" json:"command"`
		PDF     string `yaml:"pdf" json:"pdf"`
	} `yaml:"engine" json:"engine"`

	View struct {
		Port   int    `yaml:"port" json:"port"`
		Access string `yaml:"access" json:"access"`
	} `yaml:"view" json:"view"`

	Exercises struct {
		Server string `yaml:"server" json:"server"`
		// MaxAge is a Go duration string, e.g. "720h".
		MaxAge string `yaml:"max-age" json:"max-age"`
	} `yaml:"exercises" json:"exercises"`

	Params map[string]string `yaml:"params" json:"params"`
}

// LoadFileConfig reads YAML or JSON into FileConfig.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from FileConfig into s for any fields still
// unset. Flags should already have been applied; the file supplies defaults
// without overriding explicit choices.
func ApplyFileConfig(s *Settings, fc FileConfig) {
	if s == nil {
		return
	}
	if s.Engine == "" && fc.Engine.Command != "" {
		s.Engine = fc.Engine.Command
	}
	if s.PDFEngine == "" && fc.Engine.PDF != "" {
		s.PDFEngine = fc.Engine.PDF
	}
	if s.ViewPort == 0 && fc.View.Port > 0 {
		s.ViewPort = fc.View.Port
	}
	if s.ViewAccess == "" && fc.View.Access != "" {
		s.ViewAccess = fc.View.Access
	}
	if s.ExercisesServer == "" && fc.Exercises.Server != "" {
		s.ExercisesServer = fc.Exercises.Server
	}
	if s.ExercisesMaxAge == 0 && fc.Exercises.MaxAge != "" {
		d, err := time.ParseDuration(fc.Exercises.MaxAge)
		if err != nil || d <= 0 {
			log.Warn().Str("max-age", fc.Exercises.MaxAge).Msg("ignoring unparseable exercises max-age")
		} else {
			s.ExercisesMaxAge = d
		}
	}
	for k, v := range fc.Params {
		if s.Params == nil {
			s.Params = map[string]string{}
		}
		if _, ok := s.Params[k]; !ok {
			s.Params[k] = v
		}
	}
}

// FillDefaults completes any Settings fields left unset after flags and the
// config file have been applied.
func (s *Settings) FillDefaults() {
	if s.Engine == "" {
		s.Engine = DefaultEngine
	}
	if s.PDFEngine == "" {
		s.PDFEngine = DefaultPDFEngine
	}
	if s.ViewPort == 0 {
		s.ViewPort = DefaultViewPort
	}
	if s.ViewAccess == "" {
		s.ViewAccess = DefaultViewAccess
	}
	if s.ExercisesServer == "" {
		s.ExercisesServer = DefaultExercisesServer
	}
}
