package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Kind selects the launcher that owns an application.
type Kind string

const (
	KindDesktop         Kind = "desktop"
	KindWeb             Kind = "web"
	KindFolder          Kind = "folder"
	KindEmbeddedBrowser Kind = "embedded-browser"
	KindTextEditor      Kind = "text-editor"
	KindAndroid         Kind = "android-package"
)

// Kinds lists every application kind.
var Kinds = []Kind{KindDesktop, KindWeb, KindFolder, KindEmbeddedBrowser, KindTextEditor, KindAndroid}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ErrInvalidDefinition is wrapped by Definition.Validate failures.
var ErrInvalidDefinition = errors.New("invalid application definition")

// Definition describes a launchable application. It is owned by the catalog
// and never modified by the lifecycle core.
type Definition struct {
	ID          string   `json:"id" yaml:"id" toml:"id"`
	Name        string   `json:"name" yaml:"name" toml:"name"`
	Kind        Kind     `json:"kind" yaml:"kind" toml:"kind"`
	Target      string   `json:"target" yaml:"target" toml:"target"`
	Args        []string `json:"args,omitempty" yaml:"args,omitempty" toml:"args,omitempty"`
	WorkingDir  string   `json:"working_dir,omitempty" yaml:"working_dir,omitempty" toml:"working_dir,omitempty"`
	Env         []string `json:"env,omitempty" yaml:"env,omitempty" toml:"env,omitempty"`
	MinimumRole Role     `json:"minimum_role" yaml:"minimum_role" toml:"minimum_role"`
	// WindowTitle is a glob matched against window titles by launchers that
	// track a window rather than a process.
	WindowTitle string `json:"window_title,omitempty" yaml:"window_title,omitempty" toml:"window_title,omitempty"`
	// Activity is the Android activity to start; empty uses the launcher intent.
	Activity    string `json:"activity,omitempty" yaml:"activity,omitempty" toml:"activity,omitempty"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty" toml:"category,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
}

// Validate checks the fields every launcher relies on.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidDefinition)
	}
	if !d.Kind.Valid() {
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidDefinition, d.ID, d.Kind)
	}
	if d.MinimumRole != "" && !d.MinimumRole.Valid() {
		return fmt.Errorf("%w: %s: unknown role %q", ErrInvalidDefinition, d.ID, d.MinimumRole)
	}
	if d.Kind == KindTextEditor {
		return nil
	}
	if strings.TrimSpace(d.Target) == "" {
		return fmt.Errorf("%w: %s: missing target", ErrInvalidDefinition, d.ID)
	}
	if d.Kind == KindWeb || d.Kind == KindEmbeddedBrowser {
		u, err := url.Parse(d.Target)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %s: target must be an http(s) url", ErrInvalidDefinition, d.ID)
		}
	}
	return nil
}

// DisplayName returns Name, falling back to ID.
func (d Definition) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}
