package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"git.lost.host/meutraa/vbeat/internal/game"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the engine. Times are milliseconds, lengths
// are canvas pixels.
type Config struct {
	LogLevel    slog.Level        `yaml:"log_level"`
	Lanes       LanesConfig       `yaml:"lanes"`
	Canvas      CanvasConfig      `yaml:"canvas"`
	Perspective PerspectiveConfig `yaml:"perspective"`
	Speed       float64           `yaml:"speed"` // pixels per millisecond
	Judgement   JudgementConfig   `yaml:"judgement"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	Editor      EditorConfig      `yaml:"editor"`
	Effects     EffectsConfig     `yaml:"effects"`
	Runtime     RuntimeConfig     `yaml:"runtime"`
}

type LanesConfig struct {
	Keys   string    `yaml:"keys"`
	Widths []float64 `yaml:"widths"`
}

func (c *LanesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Widths, validation.Required, validation.Each(validation.Min(1.0))),
		validation.Field(&c.Keys, validation.By(func(any) error {
			if c.Keys != "" && len([]rune(c.Keys)) != len(c.Widths) {
				return fmt.Errorf("want %d keys, have %d", len(c.Widths), len([]rune(c.Keys)))
			}
			return nil
		})),
	)
}

// Count is the number of lanes.
func (c *LanesConfig) Count() int {
	return len(c.Widths)
}

// LaneForKey maps a key to its lane, or -1.
func (c *LanesConfig) LaneForKey(r rune) int {
	for i, k := range []rune(c.Keys) {
		if r == k {
			return i
		}
	}
	return -1
}

type CanvasConfig struct {
	Width      float64 `yaml:"width"`
	Height     float64 `yaml:"height"`
	HitLineY   float64 `yaml:"hit_line_y"`
	NoteHeight float64 `yaml:"note_height"`
}

func (c *CanvasConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Width, validation.Required, validation.Min(1.0)),
		validation.Field(&c.Height, validation.Required, validation.Min(1.0)),
		validation.Field(&c.HitLineY, validation.Min(0.0), validation.Max(c.Height)),
		validation.Field(&c.NoteHeight, validation.Min(0.0)),
	)
}

// PerspectiveConfig is the horizontal scale at the top (ScaleMin) and
// bottom (ScaleMax) of the canvas.
type PerspectiveConfig struct {
	ScaleMin float64 `yaml:"scale_min"`
	ScaleMax float64 `yaml:"scale_max"`
}

func (c *PerspectiveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ScaleMin, validation.Required, validation.Min(0.01)),
		validation.Field(&c.ScaleMax, validation.Required, validation.Min(c.ScaleMin)),
	)
}

type JudgementConfig struct {
	Tiers        []game.Judgement `yaml:"tiers"`
	MissWindowMs int64            `yaml:"miss_window_ms"`
}

func (c *JudgementConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Tiers, validation.Required, validation.By(func(any) error {
			var last int64 = -1
			for _, t := range c.Tiers {
				if t.Name == "" {
					return errors.New("tier without a name")
				}
				if t.Ms <= last {
					return fmt.Errorf("tier %s: windows must grow from best to worst", t.Name)
				}
				if t.Value < 0 {
					return fmt.Errorf("tier %s: negative value", t.Name)
				}
				last = t.Ms
			}
			return nil
		})),
		validation.Field(&c.MissWindowMs, validation.By(func(any) error {
			if n := len(c.Tiers); n > 0 && c.MissWindowMs < c.Tiers[n-1].Ms {
				return errors.New("must cover the worst tier")
			}
			return nil
		})),
	)
}

// Worst is the index of the last tier.
func (c *JudgementConfig) Worst() int {
	return len(c.Tiers) - 1
}

// ComboStep applies Multiplier once the combo reaches Combo.
type ComboStep struct {
	Combo      int   `yaml:"combo"`
	Multiplier int64 `yaml:"multiplier"`
}

type ScoringConfig struct {
	MissPenalty     int64       `yaml:"miss_penalty"`
	HoldBonus       int64       `yaml:"hold_bonus"`
	BonusIntervalMs int64       `yaml:"bonus_interval_ms"`
	SweepIntervalMs int64       `yaml:"sweep_interval_ms"`
	ComboSteps      []ComboStep `yaml:"combo_steps"`
	SafeScore       int64       `yaml:"safe_score"` // zero disables game over
	GameOverAfterMs int64       `yaml:"game_over_after_ms"`
}

func (c *ScoringConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MissPenalty, validation.Min(int64(0))),
		validation.Field(&c.HoldBonus, validation.Min(int64(0))),
		validation.Field(&c.BonusIntervalMs, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.SweepIntervalMs, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.SafeScore, validation.Min(int64(0))),
		validation.Field(&c.GameOverAfterMs, validation.Min(int64(0))),
		validation.Field(&c.ComboSteps, validation.By(func(any) error {
			last := -1
			for _, s := range c.ComboSteps {
				if s.Combo <= last {
					return errors.New("combo steps must be increasing")
				}
				if s.Multiplier < 1 {
					return fmt.Errorf("combo step %d: multiplier below 1", s.Combo)
				}
				last = s.Combo
			}
			return nil
		})),
	)
}

type EditorConfig struct {
	DedupeMs       int64   `yaml:"dedupe_ms"`
	MinHoldMs      int64   `yaml:"min_hold_ms"`
	DefaultHoldMs  int64   `yaml:"default_hold_ms"`
	MinPreviewMs   int64   `yaml:"min_preview_ms"`
	HitToleranceMs int64   `yaml:"hit_tolerance_ms"`
	ResizeGrabMs   int64   `yaml:"resize_grab_ms"`
	ClickSlopPx    float64 `yaml:"click_slop_px"`
	UndoDepth      int     `yaml:"undo_depth"`
}

func (c *EditorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DedupeMs, validation.Min(int64(0))),
		validation.Field(&c.MinHoldMs, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.DefaultHoldMs, validation.Min(c.MinHoldMs+1)),
		validation.Field(&c.MinPreviewMs, validation.Min(int64(0))),
		validation.Field(&c.HitToleranceMs, validation.Min(int64(0))),
		validation.Field(&c.ResizeGrabMs, validation.Min(int64(0))),
		validation.Field(&c.ClickSlopPx, validation.Min(0.0)),
		validation.Field(&c.UndoDepth, validation.Required, validation.Min(1)),
	)
}

type EffectsConfig struct {
	TapLifetimeMs   int64 `yaml:"tap_lifetime_ms"`
	JudgeLifetimeMs int64 `yaml:"judge_lifetime_ms"`
	GraceMs         int64 `yaml:"grace_ms"`
	FadeMs          int64 `yaml:"fade_ms"`
	PulseMs         int64 `yaml:"pulse_ms"`
	PoolSize        int   `yaml:"pool_size"`
}

func (c *EffectsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TapLifetimeMs, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.JudgeLifetimeMs, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.GraceMs, validation.Min(int64(0))),
		validation.Field(&c.FadeMs, validation.Min(int64(0))),
		validation.Field(&c.PulseMs, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.PoolSize, validation.Min(0)),
	)
}

type RuntimeConfig struct {
	FramePeriodMs    int64 `yaml:"frame_period_ms"`
	BroadcastEveryMs int64 `yaml:"broadcast_every_ms"`
	OffsetMs         int64 `yaml:"offset_ms"` // added to every clock reading
}

func (c *RuntimeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.FramePeriodMs, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.BroadcastEveryMs, validation.Required, validation.Min(int64(1))),
	)
}

// Validate validates the whole configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.Lanes, &c.Canvas, &c.Perspective, &c.Judgement,
		&c.Scoring, &c.Editor, &c.Effects, &c.Runtime,
	} {
		if err := v.Validate(); nil != err {
			return err
		}
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Speed, validation.Required, validation.Min(0.001)),
	)
}

// Multiplier returns the combo multiplier in effect at combo.
func (c *ScoringConfig) Multiplier(combo int) int64 {
	m := int64(1)
	for _, s := range c.ComboSteps {
		if combo < s.Combo {
			break
		}
		m = s.Multiplier
	}
	return m
}

// Default returns the stock seven lane layout.
func Default() *Config {
	return &Config{
		LogLevel: slog.LevelInfo,
		Lanes: LanesConfig{
			Keys:   "asd jkl",
			Widths: []float64{90, 90, 90, 140, 90, 90, 90},
		},
		Canvas: CanvasConfig{
			Width:      680,
			Height:     650,
			HitLineY:   550,
			NoteHeight: 40,
		},
		Perspective: PerspectiveConfig{ScaleMin: 0.5, ScaleMax: 1},
		Speed:       0.5,
		Judgement: JudgementConfig{
			Tiers: []game.Judgement{
				{Name: "PERFECT", Ms: 50, Value: 300},
				{Name: "GOOD", Ms: 100, Value: 100},
			},
			MissWindowMs: 150,
		},
		Scoring: ScoringConfig{
			MissPenalty:     50,
			HoldBonus:       10,
			BonusIntervalMs: 100,
			SweepIntervalMs: 50,
			ComboSteps: []ComboStep{
				{Combo: 20, Multiplier: 2},
				{Combo: 50, Multiplier: 3},
			},
			GameOverAfterMs: 2000,
		},
		Editor: EditorConfig{
			DedupeMs:       80,
			MinHoldMs:      100,
			DefaultHoldMs:  1000,
			MinPreviewMs:   0,
			HitToleranceMs: 60,
			ResizeGrabMs:   60,
			ClickSlopPx:    4,
			UndoDepth:      100,
		},
		Effects: EffectsConfig{
			TapLifetimeMs:   300,
			JudgeLifetimeMs: 500,
			GraceMs:         60,
			FadeMs:          200,
			PulseMs:         140,
			PoolSize:        64,
		},
		Runtime: RuntimeConfig{
			FramePeriodMs:    16,
			BroadcastEveryMs: 250,
		},
	}
}

// Load reads a YAML file over the defaults, expanding environment variables
// first.
func Load(filename string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filename)
	if nil != err {
		return nil, fmt.Errorf("unable to read config file %s: %w", filename, err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); nil != err {
		return nil, fmt.Errorf("unable to parse config file %s: %w", filename, err)
	}
	if err := cfg.Validate(); nil != err {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to Default when filename is
// empty or missing.
func LoadOrDefault(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(filename)
}
