package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// DefaultBamPattern matches tumor alignment files. The source pipelines were
// inconsistent between `*-t*.bam` and `*-t.bam`; the pattern is configurable
// and this wider form is the default.
const DefaultBamPattern = "*-t*.bam"

// DefaultChromosomes is the per-chromosome heatmap list.
var DefaultChromosomes = []string{
	"chr1", "chr2", "chr3", "chr4", "chr5", "chr6", "chr7", "chr8",
	"chr9", "chr10", "chr11", "chr12", "chr13", "chr14", "chr15", "chr16",
	"chr17", "chr18", "chr19", "chr20", "chr21", "chr22", "chrX",
}

// Duration wraps time.Duration so YAML/JSON configs can use "30m" syntax.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the full pipeline configuration, validated once at startup.
type Config struct {
	// BamDir is the root directory scanned for alignment files.
	BamDir string `json:"bam_dir" yaml:"bam_dir"`
	// BamPattern is the filename glob for tumor BAMs (default DefaultBamPattern).
	BamPattern string `json:"bam_pattern,omitempty" yaml:"bam_pattern,omitempty"`
	// WorkDir holds one sub-directory per sample with all stage artifacts.
	WorkDir string `json:"work_dir" yaml:"work_dir"`
	// Reference is the copy-number reference (.cnn) consumed by the fix stage.
	Reference string `json:"reference" yaml:"reference"`
	// PlotsDir receives cohort-level heatmaps (default: <work_dir>/plots).
	PlotsDir string `json:"plots_dir,omitempty" yaml:"plots_dir,omitempty"`

	// VCFDir, if set, enables the filesystem-search resolver for per-sample
	// variant files. Mutually exclusive with VCFList.
	VCFDir string `json:"vcf_dir,omitempty" yaml:"vcf_dir,omitempty"`
	// VCFList, if set, enables the lookup-list resolver: a newline-delimited
	// file of candidate VCF paths matched by sample-id substring.
	VCFList string `json:"vcf_list,omitempty" yaml:"vcf_list,omitempty"`

	// Chromosomes to render individual heatmaps for (default DefaultChromosomes).
	Chromosomes []string `json:"chromosomes,omitempty" yaml:"chromosomes,omitempty"`

	// Processes is the worker-count hint passed to cnvkit (-p). Zero means
	// the host's available processor count.
	Processes int `json:"processes,omitempty" yaml:"processes,omitempty"`

	// StageTimeout bounds each external invocation. Zero means wait forever,
	// matching the source pipelines.
	StageTimeout Duration `json:"stage_timeout,omitempty" yaml:"stage_timeout,omitempty"`

	// CNVKit is the external executable name or path (default "cnvkit.py").
	CNVKit string `json:"cnvkit,omitempty" yaml:"cnvkit,omitempty"`

	// ErrorLog is the dedicated error log file (default: <work_dir>/errors.log).
	ErrorLog string `json:"error_log,omitempty" yaml:"error_log,omitempty"`

	LogLevel  string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty" yaml:"log_format,omitempty"`
}

// Error is a fatal configuration problem detected before any sample runs.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// LoadFromPath reads a config file (YAML or JSON) and returns the parsed Config
// with defaults applied. Format is detected by extension or by content.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses a config from bytes. ext is the file extension for format hint;
// empty = detect from content.
func Load(data []byte, ext string) (*Config, error) {
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}

	var cfg Config
	switch {
	case ext == ".yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	case ext == ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config json: %w", err)
		}
	case strings.HasPrefix(strings.TrimSpace(string(data)), "{"):
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	if c.BamPattern == "" {
		c.BamPattern = DefaultBamPattern
	}
	if c.PlotsDir == "" && c.WorkDir != "" {
		c.PlotsDir = filepath.Join(c.WorkDir, "plots")
	}
	if c.ErrorLog == "" && c.WorkDir != "" {
		c.ErrorLog = filepath.Join(c.WorkDir, "errors.log")
	}
	if len(c.Chromosomes) == 0 {
		c.Chromosomes = append([]string(nil), DefaultChromosomes...)
	}
	if c.Processes <= 0 {
		c.Processes = runtime.NumCPU()
	}
	if c.CNVKit == "" {
		c.CNVKit = "cnvkit.py"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

// Validate performs the fatal preflight checks: every required input artifact
// must exist before the first sample runs.
func (c *Config) Validate() error {
	if c.BamDir == "" {
		return &Error{Field: "bam_dir", Reason: "required"}
	}
	if info, err := os.Stat(c.BamDir); err != nil || !info.IsDir() {
		return &Error{Field: "bam_dir", Reason: fmt.Sprintf("not a directory: %s", c.BamDir)}
	}
	if c.WorkDir == "" {
		return &Error{Field: "work_dir", Reason: "required"}
	}
	if c.Reference == "" {
		return &Error{Field: "reference", Reason: "required"}
	}
	if _, err := os.Stat(c.Reference); err != nil {
		return &Error{Field: "reference", Reason: fmt.Sprintf("file not found: %s", c.Reference)}
	}
	if c.VCFDir != "" && c.VCFList != "" {
		return &Error{Field: "vcf_dir", Reason: "vcf_dir and vcf_list are mutually exclusive"}
	}
	if c.VCFList != "" {
		if _, err := os.Stat(c.VCFList); err != nil {
			return &Error{Field: "vcf_list", Reason: fmt.Sprintf("file not found: %s", c.VCFList)}
		}
	}
	if c.VCFDir != "" {
		if info, err := os.Stat(c.VCFDir); err != nil || !info.IsDir() {
			return &Error{Field: "vcf_dir", Reason: fmt.Sprintf("not a directory: %s", c.VCFDir)}
		}
	}
	return nil
}

// Level maps the configured log level name to a slog level.
func (c *Config) Level() (slog.Level, bool) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
