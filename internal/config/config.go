// Package config loads the optional TOML configuration file.
//
// Settings are layered: built-in defaults, then the file, then environment
// variables and flags (applied by the CLI). The merged result is validated
// before use.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/FocuswithJustin/worship-direct/core/errors"
)

// AppName names the configuration directory.
const AppName = "worship-direct"

// Config is the full set of tunable settings.
type Config struct {
	Log     LogConfig     `toml:"log"`
	Convert ConvertConfig `toml:"convert"`
	Lookup  LookupConfig  `toml:"lookup"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=text json"`
}

// ConvertConfig controls conversions.
type ConvertConfig struct {
	// DataDir is where default input and output files live.
	DataDir string `toml:"data_dir" validate:"required"`

	// Marker is stripped from the start of flat verse text. Empty disables it.
	Marker string `toml:"marker" validate:"max=16"`

	// ProgressEvery logs progress after this many records; 0 disables.
	ProgressEvery int `toml:"progress_every" validate:"gte=0"`

	// UnregisteredBooks keeps flat records naming books outside the registry.
	UnregisteredBooks bool `toml:"unregistered_books"`

	// Strict fails a conversion that skipped any record.
	Strict bool `toml:"strict"`
}

// LookupConfig controls lookups.
type LookupConfig struct {
	SuggestionLimit int `toml:"suggestion_limit" validate:"gte=1,lte=5"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Convert: ConvertConfig{
			DataDir:       "bible",
			Marker:        "# ",
			ProgressEvery: 5000,
		},
		Lookup: LookupConfig{
			SuggestionLimit: 5,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/worship-direct/config.toml, or the
// platform equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, AppName, "config.toml")
}

// Load reads path over the defaults. An empty path means DefaultPath, and a
// missing default file is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path == "" {
		return cfg, cfg.Validate()
	}

	if _, err := os.Stat(path); err != nil {
		if !explicit && os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return nil, errors.NewIO("read config", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.NewMalformed("config "+path, err.Error(), err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.NewMalformed("config "+path,
			"unknown keys: "+strings.Join(keys, ", "), nil)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fieldRule(fe), fe.Value())
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func fieldRule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// Encode writes c as TOML, for `config` style dumps.
func (c *Config) Encode() (string, error) {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(c); err != nil {
		return "", err
	}
	return sb.String(), nil
}
