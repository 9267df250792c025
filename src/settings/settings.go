package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ssashelper/src/helpers"
	"ssashelper/src/projerrors"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// DefaultCleanPatterns is the file set the cleaner inspects when no patterns are given.
const DefaultCleanPatterns = "*.cube,*.partitions,*.dsv,*.dim,*.ds,*.dmm,*.role"

type Arguments struct {
	// Path of an optional YAML file holding any of the options below
	ConfigFile string `yaml:"-"`

	// The project manifest (.dwproj) to assemble
	ProjectFile string `yaml:"project"`

	// The consolidated database file to write, or to read back for disassembly
	TargetFile string `yaml:"target"`
	InputFile  string `yaml:"input"`

	// Target server edition used for validation
	Edition string `yaml:"edition" default:"Developer"`

	// Where disassembled project files go
	OutputDir      string `yaml:"outputDir"`
	AllowOverwrite bool   `yaml:"allowOverwrite"`
	WriteManifest  bool   `yaml:"writeManifest" default:"true"`

	Clean CleanArguments `yaml:"clean"`

	LogDir        string `yaml:"logDir"`
	PrintToScreen bool   `yaml:"printToScreen" default:"true"`

	// Operation journal; empty disables it
	JournalDir           string `yaml:"journalDir"`
	JournalRetentionDays int    `yaml:"journalRetentionDays" default:"30"`

	// Strongly verbose logging
	Verbose bool `yaml:"verbose"`
	Debug   bool `yaml:"debug"`

	Version string `yaml:"-" default:"0.1.0"`
}

// CleanArguments controls the directory cleaner.
type CleanArguments struct {
	Directory                  string `yaml:"directory"`
	Patterns                   string `yaml:"patterns"`
	Recursive                  bool   `yaml:"recursive"`
	RemoveDesignTimeNames      bool   `yaml:"removeDesignTimeNames"`
	RemoveDimensionAnnotations bool   `yaml:"removeDimensionAnnotations"`
	Backup                     bool   `yaml:"backup" default:"true"`
}

// SetDefaults fills the pattern list; called by defaults.Set.
func (c *CleanArguments) SetDefaults() {
	if defaults.CanUpdate(c.Patterns) {
		c.Patterns = DefaultCleanPatterns
	}
}

// ParsePatterns turns a comma separated list of glob patterns into an ordered
// list. An empty list yields the default patterns.
func ParsePatterns(csv string) ([]string, error) {
	patterns := helpers.SplitList(csv)
	if len(patterns) == 0 {
		patterns = helpers.SplitList(DefaultCleanPatterns)
	}
	for _, p := range patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, projerrors.ErrInvalidArgument.New(fmt.Sprintf("bad file pattern %q: %s", p, err))
		}
	}
	return patterns, nil
}

var (
	instance *Arguments
	once     sync.Once
	mu       sync.RWMutex
)

// NewArguments returns Arguments populated with their default values.
func NewArguments() *Arguments {
	args := &Arguments{}
	defaults.MustSet(args)
	return args
}

// GetSettings returns the process wide settings instance.
func GetSettings() *Arguments {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if instance == nil {
			instance = NewArguments()
		}
	})

	mu.RLock()
	defer mu.RUnlock()
	return instance
}

// SetSettings replaces the process wide settings instance.
func SetSettings(args *Arguments) {
	once.Do(func() {})

	mu.Lock()
	defer mu.Unlock()
	instance = args
}

// LoadConfigFile overlays the values found in a YAML file onto args.
func LoadConfigFile(path string, args *Arguments) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, args); err != nil {
		return fmt.Errorf("could not parse config file %s: %w", path, err)
	}
	args.ConfigFile = path
	return nil
}

// Validate checks the options that do not depend on the command being run.
func (a *Arguments) Validate() error {
	// If config file is specified, check if it exists and is readable
	if a.ConfigFile != "" {
		if _, err := os.Stat(a.ConfigFile); err != nil {
			return fmt.Errorf("could not access config file: %w", err)
		}
	}

	if a.JournalRetentionDays < 0 {
		return fmt.Errorf("invalid journal retention: %d (must not be negative)", a.JournalRetentionDays)
	}

	if _, err := ParsePatterns(a.Clean.Patterns); err != nil {
		return err
	}

	// Check if log directory can be created
	if a.LogDir != "" {
		if err := os.MkdirAll(a.LogDir, 0755); err != nil {
			return fmt.Errorf("could not create log directory: %w", err)
		}
	}

	return nil
}

// Require returns an error naming the first empty value among the given
// name/value pairs.
func Require(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return fmt.Errorf("missing required option --%s", pairs[i])
		}
	}
	return nil
}
