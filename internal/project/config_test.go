package project

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigName)
	data := []byte("engine:\n  command: saxon\n  pdf: xelatex\nview:\n  port: 9100\nparams:\n  author.tools: \"yes\"\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fc.Engine.Command != "saxon" || fc.Engine.PDF != "xelatex" {
		t.Errorf("engine = %+v", fc.Engine)
	}
	if fc.View.Port != 9100 {
		t.Errorf("port = %d", fc.View.Port)
	}
	if fc.Params["author.tools"] != "yes" {
		t.Errorf("params = %v", fc.Params)
	}
}

func TestApplyFileConfig_FlagsWin(t *testing.T) {
	s := Settings{Engine: "xsltproc", ViewPort: 8888, Params: map[string]string{"a": "flag"}}
	var fc FileConfig
	fc.Engine.Command = "saxon"
	fc.View.Port = 9100
	fc.View.Access = "public"
	fc.Params = map[string]string{"a": "file", "b": "file"}

	ApplyFileConfig(&s, fc)
	if s.Engine != "xsltproc" {
		t.Errorf("flag engine should win, got %q", s.Engine)
	}
	if s.ViewPort != 8888 {
		t.Errorf("flag port should win, got %d", s.ViewPort)
	}
	if s.ViewAccess != "public" {
		t.Errorf("file access should fill unset, got %q", s.ViewAccess)
	}
	if s.Params["a"] != "flag" || s.Params["b"] != "file" {
		t.Errorf("params merge wrong: %v", s.Params)
	}
}

func TestApplyFileConfig_ExercisesMaxAge(t *testing.T) {
	var s Settings
	var fc FileConfig
	fc.Exercises.MaxAge = "720h"
	ApplyFileConfig(&s, fc)
	if s.ExercisesMaxAge != 720*time.Hour {
		t.Errorf("max-age = %v, want 720h", s.ExercisesMaxAge)
	}

	var bad Settings
	fc.Exercises.MaxAge = "soonish"
	ApplyFileConfig(&bad, fc)
	if bad.ExercisesMaxAge != 0 {
		t.Errorf("unparseable max-age should be ignored, got %v", bad.ExercisesMaxAge)
	}
}

func TestSettingsFillDefaults(t *testing.T) {
	var s Settings
	s.FillDefaults()
	if s.Engine != DefaultEngine || s.PDFEngine != DefaultPDFEngine {
		t.Errorf("engines = %q/%q", s.Engine, s.PDFEngine)
	}
	if s.ViewPort != DefaultViewPort || s.ViewAccess != DefaultViewAccess {
		t.Errorf("view = %d/%q", s.ViewPort, s.ViewAccess)
	}
	if s.ExercisesServer == "" {
		t.Error("exercises server default missing")
	}
}
