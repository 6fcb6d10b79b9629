package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"stockmerge/internal/faults"
	"stockmerge/internal/media"
	"stockmerge/internal/render"
	"stockmerge/internal/timeline"
	"stockmerge/internal/transition"
	"stockmerge/pkg/overlayplan"
)

// Transition backends.
const (
	BackendScript = "script"
	BackendXfade  = "xfade"
)

// Config describes one merge job.
type Config struct {
	Version      int                `yaml:"version" toml:"version"`
	MainVideo    string             `yaml:"main_video" toml:"main_video"`
	StockVideos  []string           `yaml:"stock_videos" toml:"stock_videos"`
	Output       string             `yaml:"output" toml:"output"`
	Overlays     []timeline.Request `yaml:"overlays" toml:"overlays"`
	OverlaysFile string             `yaml:"overlays_file,omitempty" toml:"overlays_file,omitempty"`
	Transitions  TransitionsConfig  `yaml:"transitions" toml:"transitions"`
	Timing       TimingConfig       `yaml:"timing" toml:"timing"`
	Stock        StockConfig        `yaml:"stock" toml:"stock"`
	Encoding     EncodingConfig     `yaml:"encoding" toml:"encoding"`
	Captions     CaptionsConfig     `yaml:"captions" toml:"captions"`
	Tools        ToolsConfig        `yaml:"tools" toml:"tools"`
	WorkDir      string             `yaml:"work_dir,omitempty" toml:"work_dir,omitempty"`
	LogsDir      string             `yaml:"logs_dir,omitempty" toml:"logs_dir,omitempty"`
	Concurrency  int                `yaml:"concurrency" toml:"concurrency"`
	GraceSec     *float64           `yaml:"grace_period_s,omitempty" toml:"grace_period_s,omitempty"`
	LogLevel     string             `yaml:"log_level" toml:"log_level"`

	// baseDir is the directory relative paths were resolved against.
	baseDir string
}

// TransitionsConfig selects the transition backend and its parameters.
type TransitionsConfig struct {
	Backend       string   `yaml:"backend" toml:"backend"`
	Effects       []string `yaml:"effects" toml:"effects"`
	Seed          int64    `yaml:"seed" toml:"seed"`
	NumFrames     int      `yaml:"num_frames" toml:"num_frames"`
	MaxBrightness float64  `yaml:"max_brightness" toml:"max_brightness"`
	Interpreter   string   `yaml:"interpreter,omitempty" toml:"interpreter,omitempty"`
	Script        string   `yaml:"script,omitempty" toml:"script,omitempty"`
	TimeoutSec    float64  `yaml:"timeout_s" toml:"timeout_s"`
}

// TimingConfig holds the window offsets around each overlay.
type TimingConfig struct {
	PreRollSec float64 `yaml:"pre_roll_s" toml:"pre_roll_s"`
	BridgeSec  float64 `yaml:"bridge_s" toml:"bridge_s"`
}

// StockConfig controls stock clip handling.
type StockConfig struct {
	ShortPolicy string `yaml:"short_policy" toml:"short_policy"`
}

// EncodingConfig describes the codecs for intermediates and the final render.
type EncodingConfig struct {
	VideoCodec       string `yaml:"video_codec" toml:"video_codec"`
	CRF              int    `yaml:"crf" toml:"crf"`
	Preset           string `yaml:"preset" toml:"preset"`
	PixelFormat      string `yaml:"pixel_format" toml:"pixel_format"`
	AudioCodec       string `yaml:"audio_codec" toml:"audio_codec"`
	AudioBitrateKbps int    `yaml:"audio_bitrate_kbps" toml:"audio_bitrate_kbps"`
}

// CaptionsConfig configures transcription and caption burning.
type CaptionsConfig struct {
	Model     string  `yaml:"model" toml:"model"`
	Language  string  `yaml:"language,omitempty" toml:"language,omitempty"`
	APIKeyEnv string  `yaml:"api_key_env" toml:"api_key_env"`
	BaseURL   string  `yaml:"base_url,omitempty" toml:"base_url,omitempty"`
	FontFile  string  `yaml:"font_file,omitempty" toml:"font_file,omitempty"`
	FontSize  int     `yaml:"font_size" toml:"font_size"`
	Color     string  `yaml:"color" toml:"color"`
	Shadow    string  `yaml:"shadow_color" toml:"shadow_color"`
	YRatio    float64 `yaml:"y_ratio" toml:"y_ratio"`
	Transform string  `yaml:"transform,omitempty" toml:"transform,omitempty"`
}

// ToolsConfig overrides executable locations.
type ToolsConfig struct {
	FFmpeg  string `yaml:"ffmpeg,omitempty" toml:"ffmpeg,omitempty"`
	FFprobe string `yaml:"ffprobe,omitempty" toml:"ffprobe,omitempty"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Version: 1,
		Transitions: TransitionsConfig{
			Backend:       BackendScript,
			Effects:       append([]string(nil), transition.DefaultEffects...),
			NumFrames:     transition.DefaultNumFrames,
			MaxBrightness: transition.DefaultMaxBrightness,
			Interpreter:   "python3",
			TimeoutSec:    transition.DefaultTimeout.Seconds(),
		},
		Timing: TimingConfig{
			PreRollSec: timeline.DefaultPreRoll,
			BridgeSec:  timeline.DefaultBridge,
		},
		Stock: StockConfig{
			ShortPolicy: string(render.StockReject),
		},
		Encoding: EncodingConfig{
			VideoCodec:       "libx264",
			CRF:              18,
			Preset:           "medium",
			PixelFormat:      "yuv420p",
			AudioCodec:       "aac",
			AudioBitrateKbps: 192,
		},
		Captions: CaptionsConfig{
			Model:     "whisper-1",
			APIKeyEnv: "OPENAI_API_KEY",
			FontSize:  42,
			Color:     "yellow",
			Shadow:    "black",
			YRatio:    0.55,
		},
		Concurrency: 1,
		LogLevel:    "info",
	}
}

// Load reads a job file. The format follows the extension: .toml is TOML,
// anything else YAML. A missing file yields the defaults. Relative paths are
// resolved against the file's directory and any overlays_file is merged in.
func Load(path string) (Config, error) {
	cfg := Default()
	baseDir := filepath.Dir(path)
	if abs, err := filepath.Abs(baseDir); err == nil {
		baseDir = abs
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.ApplyDefaults()
			cfg.ResolvePaths(baseDir)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := unmarshal(path, contents, &cfg); err != nil {
		return Config{}, err
	}
	cfg.ApplyDefaults()
	cfg.ResolvePaths(baseDir)

	if cfg.OverlaysFile != "" {
		rows, err := overlayplan.Load(cfg.OverlaysFile)
		var verrs overlayplan.ValidationErrors
		if errors.As(err, &verrs) {
			cerr := &faults.ConfigurationError{}
			for _, verr := range verrs {
				cerr.Add(verr.ConfigField("overlays_file"), "%s: %s", verr.Location(), verr.Message)
			}
			return Config{}, cerr
		}
		if err != nil {
			return Config{}, fmt.Errorf("load overlays file: %w", err)
		}
		cfg.Overlays = append(cfg.Overlays, rows.Requests()...)
	}
	return cfg, nil
}

func unmarshal(path string, contents []byte, cfg *Config) error {
	if IsTOML(path) {
		if err := toml.Unmarshal(contents, cfg); err != nil {
			return fmt.Errorf("unmarshal config: %w", err)
		}
		return nil
	}
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// IsTOML reports whether path names a TOML file.
func IsTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// ApplyDefaults fills fields the file omitted.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	if c.Version == 0 {
		c.Version = defaults.Version
	}
	if c.Transitions.Backend == "" {
		c.Transitions.Backend = defaults.Transitions.Backend
	}
	if len(c.Transitions.Effects) == 0 {
		c.Transitions.Effects = defaults.Transitions.Effects
	}
	if c.Transitions.NumFrames == 0 {
		c.Transitions.NumFrames = defaults.Transitions.NumFrames
	}
	if c.Transitions.MaxBrightness == 0 {
		c.Transitions.MaxBrightness = defaults.Transitions.MaxBrightness
	}
	if c.Transitions.Interpreter == "" {
		c.Transitions.Interpreter = defaults.Transitions.Interpreter
	}
	if c.Transitions.TimeoutSec == 0 {
		c.Transitions.TimeoutSec = defaults.Transitions.TimeoutSec
	}
	if c.Timing.PreRollSec == 0 {
		c.Timing.PreRollSec = defaults.Timing.PreRollSec
	}
	if c.Timing.BridgeSec == 0 {
		c.Timing.BridgeSec = defaults.Timing.BridgeSec
	}
	if c.Stock.ShortPolicy == "" {
		c.Stock.ShortPolicy = defaults.Stock.ShortPolicy
	}
	if c.Encoding.VideoCodec == "" {
		c.Encoding.VideoCodec = defaults.Encoding.VideoCodec
	}
	if c.Encoding.CRF == 0 {
		c.Encoding.CRF = defaults.Encoding.CRF
	}
	if c.Encoding.Preset == "" {
		c.Encoding.Preset = defaults.Encoding.Preset
	}
	if c.Encoding.PixelFormat == "" {
		c.Encoding.PixelFormat = defaults.Encoding.PixelFormat
	}
	if c.Encoding.AudioCodec == "" {
		c.Encoding.AudioCodec = defaults.Encoding.AudioCodec
	}
	if c.Encoding.AudioBitrateKbps == 0 {
		c.Encoding.AudioBitrateKbps = defaults.Encoding.AudioBitrateKbps
	}
	if c.Captions.Model == "" {
		c.Captions.Model = defaults.Captions.Model
	}
	if c.Captions.APIKeyEnv == "" {
		c.Captions.APIKeyEnv = defaults.Captions.APIKeyEnv
	}
	if c.Captions.FontSize == 0 {
		c.Captions.FontSize = defaults.Captions.FontSize
	}
	if c.Captions.Color == "" {
		c.Captions.Color = defaults.Captions.Color
	}
	if c.Captions.Shadow == "" {
		c.Captions.Shadow = defaults.Captions.Shadow
	}
	if c.Captions.YRatio == 0 {
		c.Captions.YRatio = defaults.Captions.YRatio
	}
	if c.Concurrency == 0 {
		c.Concurrency = defaults.Concurrency
	}
	if c.GraceSec == nil {
		c.GraceSec = floatPtr(1)
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
}

// ResolvePaths makes every relative path absolute against baseDir.
func (c *Config) ResolvePaths(baseDir string) {
	c.baseDir = baseDir
	resolve := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}
	c.MainVideo = resolve(c.MainVideo)
	for i, s := range c.StockVideos {
		c.StockVideos[i] = resolve(s)
	}
	c.Output = resolve(c.Output)
	c.OverlaysFile = resolve(c.OverlaysFile)
	c.WorkDir = resolve(c.WorkDir)
	c.LogsDir = resolve(c.LogsDir)
	c.Transitions.Script = resolve(c.Transitions.Script)
	c.Captions.FontFile = resolve(c.Captions.FontFile)
}

// BaseDir returns the directory paths were resolved against.
func (c Config) BaseDir() string {
	return c.baseDir
}

// Grace returns the cleanup grace period.
func (c Config) Grace() time.Duration {
	if c.GraceSec == nil {
		return time.Second
	}
	return time.Duration(*c.GraceSec * float64(time.Second))
}

// Timeout returns the per-call transition timeout.
func (t TransitionsConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSec * float64(time.Second))
}

// Resolve converts the encoding section into encoder settings.
func (e EncodingConfig) Resolve() media.Encoding {
	enc := media.Encoding{
		VideoCodec:  e.VideoCodec,
		CRF:         e.CRF,
		Preset:      e.Preset,
		PixelFormat: e.PixelFormat,
		AudioCodec:  e.AudioCodec,
	}
	if e.AudioBitrateKbps > 0 {
		enc.AudioBitrate = fmt.Sprintf("%dk", e.AudioBitrateKbps)
	}
	return enc
}

// Job converts the configuration into a merge job.
func (c Config) Job() (render.Job, error) {
	policy, err := render.ParseStockPolicy(c.Stock.ShortPolicy)
	if err != nil {
		return render.Job{}, err
	}
	return render.Job{
		Primary:     c.MainVideo,
		Stocks:      append([]string(nil), c.StockVideos...),
		Output:      c.Output,
		Requests:    append([]timeline.Request(nil), c.Overlays...),
		Timing:      timeline.Timing{PreRoll: c.Timing.PreRollSec, Bridge: c.Timing.BridgeSec},
		Backend:     c.Transitions.Backend,
		Effects:     append([]string(nil), c.Transitions.Effects...),
		Seed:        c.Transitions.Seed,
		Concurrency: c.Concurrency,
		Policy:      policy,
		WorkDir:     c.WorkDir,
		LogsDir:     c.LogsDir,
		Grace:       c.Grace(),
	}, nil
}

// Marshal returns the YAML encoding of the configuration.
func (c Config) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf, nil
}

// MarshalTOML returns the TOML encoding of the configuration.
func (c Config) MarshalTOML() ([]byte, error) {
	buf, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf, nil
}

func floatPtr(v float64) *float64 {
	return &v
}
