package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"seisattrib/geom"
)

// Config represents the complete batch calculator configuration
type Config struct {
	Survey  SurveyConfig  `yaml:"survey"`
	Store   StoreConfig   `yaml:"store"`
	Engine  EngineConfig  `yaml:"engine"`
	Job     JobConfig     `yaml:"job"`
	Logging LoggingConfig `yaml:"logging"`

	// LoadedFrom is the file or directory the configuration came from.
	LoadedFrom string `yaml:"-"`
}

// LineRange is an inclusive inline or crossline range with its step.
type LineRange struct {
	Start int `yaml:"start"`
	Stop  int `yaml:"stop"`
	Step  int `yaml:"step"`
}

// SurveyConfig describes the survey grid and its Z sampling
type SurveyConfig struct {
	Name       string    `yaml:"name"`
	Inlines    LineRange `yaml:"inlines"`
	Crosslines LineRange `yaml:"crosslines"`
	ZStart     float64   `yaml:"z_start"`
	ZStop      float64   `yaml:"z_stop"`
	ZStep      float64   `yaml:"z_step"`
	// ZFactor converts survey Z into the units gates are typed in.
	ZFactor float64 `yaml:"z_factor"`
	TwoD    bool    `yaml:"two_d"`
}

// StoreConfig contains Pebble cube store settings
type StoreConfig struct {
	Path            string `yaml:"path"`
	CacheSizeMB     int    `yaml:"cache_size_mb"`
	BloomFilterBits int    `yaml:"bloom_filter_bits"`
	MemTableSizeMB  int    `yaml:"memtable_size_mb"`
	WriteQueueDepth int    `yaml:"write_queue_depth"`
}

// EngineConfig contains compute settings
type EngineConfig struct {
	// Threads bounds the worker pool; 0 uses every CPU, 1 computes inline.
	Threads           int `yaml:"threads"`
	MinSamplesPerTask int `yaml:"min_samples_per_task"`
}

// VolumeConfig restricts the output to part of the survey.
type VolumeConfig struct {
	Inlines    *LineRange `yaml:"inlines"`
	Crosslines *LineRange `yaml:"crosslines"`
	ZStart     *float64   `yaml:"z_start"`
	ZStop      *float64   `yaml:"z_stop"`
}

// JobConfig names what to compute and where results go
type JobConfig struct {
	Attributes string        `yaml:"attributes"`
	Targets    []string      `yaml:"targets"`
	Volume     *VolumeConfig `yaml:"volume"`
	// OutputCube stores results as new cubes named <output_cube>-<target>.
	OutputCube string `yaml:"output_cube"`
	// JSONLines writes one JSON object per trace; "-" is stdout.
	JSONLines   string `yaml:"json_lines"`
	WriterBatch int    `yaml:"writer_batch"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// Load reads configuration from a YAML file, or from every *.yaml file of a
// directory merged in name order.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	files := []string{path}
	if info.IsDir() {
		files, err = yamlFiles(path)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("config: no yaml files in %s", path)
		}
	}

	var cfg Config
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Decoding into the same struct keeps fields earlier files set.
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", file, err)
		}
	}
	cfg.LoadedFrom = path
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func yamlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func (c *Config) normalize() {
	if c.Survey.Inlines.Step <= 0 {
		c.Survey.Inlines.Step = 1
	}
	if c.Survey.Crosslines.Step <= 0 {
		c.Survey.Crosslines.Step = 1
	}
	if c.Survey.ZFactor <= 0 {
		c.Survey.ZFactor = 1000
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		c.Store.Path = "data/cubes"
	}
	if c.Engine.Threads <= 0 {
		c.Engine.Threads = runtime.NumCPU()
	}
	if c.Engine.MinSamplesPerTask <= 0 {
		c.Engine.MinSamplesPerTask = 64
	}
	if c.Job.WriterBatch <= 0 {
		c.Job.WriterBatch = 256
	}
	c.Job.OutputCube = strings.TrimSpace(c.Job.OutputCube)
	c.Job.JSONLines = strings.TrimSpace(c.Job.JSONLines)
	if c.Job.OutputCube == "" && c.Job.JSONLines == "" {
		c.Job.JSONLines = "-"
	}
	targets := c.Job.Targets[:0]
	for _, t := range c.Job.Targets {
		if t = strings.TrimSpace(t); t != "" {
			targets = append(targets, t)
		}
	}
	c.Job.Targets = targets
	// Descriptor sets sit next to the configuration unless given absolutely.
	if attrs := strings.TrimSpace(c.Job.Attributes); attrs != "" && !filepath.IsAbs(attrs) && c.LoadedFrom != "" {
		base := c.LoadedFrom
		if info, err := os.Stat(base); err == nil && !info.IsDir() {
			base = filepath.Dir(base)
		}
		c.Job.Attributes = filepath.Join(base, attrs)
	}
	if c.Logging.Enabled && strings.TrimSpace(c.Logging.Dir) == "" {
		c.Logging.Dir = "data/logs"
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = 7
	}
}

// Validate checks the settings a run cannot do without.
func (c *Config) Validate() error {
	if err := c.SurveyGeometry().Validate(); err != nil {
		return fmt.Errorf("config: survey: %w", err)
	}
	if c.Survey.ZFactor <= 0 {
		return errors.New("config: survey.z_factor must be positive")
	}
	if strings.TrimSpace(c.Job.Attributes) == "" {
		return errors.New("config: job.attributes is required")
	}
	if len(c.Job.Targets) == 0 {
		return errors.New("config: job.targets must name at least one attribute")
	}
	if v := c.Job.Volume; v != nil && v.ZStart != nil && v.ZStop != nil && *v.ZStop < *v.ZStart {
		return errors.New("config: job.volume z range is reversed")
	}
	return nil
}

// SurveyGeometry returns the survey as a geometry service.
func (c *Config) SurveyGeometry() *geom.Survey {
	s := c.Survey
	return &geom.Survey{
		Name:    s.Name,
		Inl:     [3]int{s.Inlines.Start, s.Inlines.Stop, s.Inlines.Step},
		Crl:     [3]int{s.Crosslines.Start, s.Crosslines.Stop, s.Crosslines.Step},
		Z:       geom.ZRange{Start: s.ZStart, Stop: s.ZStop, Step: s.ZStep},
		ZFactor: s.ZFactor,
		TwoD:    s.TwoD,
	}
}

// OutputVolume returns the part of the survey the job computes.
func (c *Config) OutputVolume() geom.Volume {
	vol := c.SurveyGeometry().FullVolume()
	v := c.Job.Volume
	if v == nil {
		return vol
	}
	sub := vol
	if v.Inlines != nil {
		sub.Hor.Start.Inl, sub.Hor.Stop.Inl = v.Inlines.Start, v.Inlines.Stop
	}
	if v.Crosslines != nil {
		sub.Hor.Start.Crl, sub.Hor.Stop.Crl = v.Crosslines.Start, v.Crosslines.Stop
	}
	if v.ZStart != nil {
		sub.Z.Start = *v.ZStart
	}
	if v.ZStop != nil {
		sub.Z.Stop = *v.ZStop
	}
	return vol.Limit(sub)
}

// Print displays the configuration
func (c *Config) Print() {
	s := c.Survey
	fmt.Printf("Survey: %s inl %d-%d crl %d-%d z %g-%g step %g (factor %g)\n",
		s.Name, s.Inlines.Start, s.Inlines.Stop, s.Crosslines.Start, s.Crosslines.Stop,
		s.ZStart, s.ZStop, s.ZStep, s.ZFactor)
	cacheDesc := "default"
	if c.Store.CacheSizeMB > 0 {
		cacheDesc = humanize.IBytes(uint64(c.Store.CacheSizeMB) << 20)
	}
	fmt.Printf("Store: %s (cache=%s)\n", c.Store.Path, cacheDesc)
	fmt.Printf("Engine: %d threads, min %d samples per task\n", c.Engine.Threads, c.Engine.MinSamplesPerTask)
	vol := c.OutputVolume()
	fmt.Printf("Job: %s from %s over %s (%s traces)\n", strings.Join(c.Job.Targets, ", "), c.Job.Attributes,
		vol, humanize.Comma(int64(vol.TotalNrPos(s.TwoD))))
	if c.Job.OutputCube != "" {
		fmt.Printf("Output cube: %s-<target>\n", c.Job.OutputCube)
	}
	if c.Job.JSONLines != "" {
		fmt.Printf("JSON lines: %s\n", c.Job.JSONLines)
	}
	if c.Logging.Enabled {
		fmt.Printf("Logging: %s (retention %d days)\n", c.Logging.Dir, c.Logging.RetentionDays)
	}
}
