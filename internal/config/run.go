// Package config loads and validates run configuration files. A run
// config is YAML; fields omitted from the file fall back to the process
// defaults through the Get* methods, so partial configs are safe.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/atelier-fab/claymore/internal/fab"
	"github.com/atelier-fab/claymore/internal/geom"
	"github.com/atelier-fab/claymore/internal/motion"
)

// FrameConfig is the on-disk form of a placement frame: an origin plus
// two in-plane axis direction vectors, in meters.
type FrameConfig struct {
	Origin [3]float64 `yaml:"origin"`
	XAxis  [3]float64 `yaml:"xaxis"`
	YAxis  [3]float64 `yaml:"yaxis"`
}

// Frame converts to the geometry type. Axes default to the world axes
// when left zero.
func (f FrameConfig) Frame() geom.Frame {
	x := r3.Vec{X: f.XAxis[0], Y: f.XAxis[1], Z: f.XAxis[2]}
	y := r3.Vec{X: f.YAxis[0], Y: f.YAxis[1], Z: f.YAxis[2]}
	if x == (r3.Vec{}) {
		x = r3.Vec{X: 1}
	}
	if y == (r3.Vec{}) {
		y = r3.Vec{Y: 1}
	}
	return geom.NewFrame(r3.Vec{X: f.Origin[0], Y: f.Origin[1], Z: f.Origin[2]}, x, y)
}

// RobotConfig selects the controller to drive.
type RobotConfig struct {
	ID         *int  `yaml:"id,omitempty"`
	Simulation *bool `yaml:"simulation,omitempty"`
}

// FabricationConfig holds the motion parameters of one run.
type FabricationConfig struct {
	// EntryExitOffset is the approach/retreat distance in meters, signed:
	// the offset is applied along the entry axis (world down for vertical
	// moves, the frame normal otherwise), so approaching from the opposite
	// side of that axis takes a negative value.
	EntryExitOffset *float64 `yaml:"entry_exit_offset,omitempty"`
	PickingRotation *float64 `yaml:"picking_rotation,omitempty"`  // degrees
	VerticalMoves   *bool    `yaml:"vertical_moves,omitempty"`
	Dwell           *string  `yaml:"dwell,omitempty"` // duration string like "500ms"
	ChunkSize       *int     `yaml:"chunk_size,omitempty"`
	PartialChunk    *string  `yaml:"partial_chunk,omitempty"` // "process" or "defer"
}

// ToolConfig describes the mounted tool.
type ToolConfig struct {
	Height   *float64 `yaml:"height,omitempty"`   // meters, TCP offset along tool Z
	Rotation *float64 `yaml:"rotation,omitempty"` // degrees about tool Z
}

// PickStationConfig describes where units are picked. Either an explicit
// frame list or a grid layout; an explicit list wins when both are set.
type PickStationConfig struct {
	Frames         []FrameConfig `yaml:"frames,omitempty"`
	CompressAtPick *float64      `yaml:"compress_at_pick,omitempty"`

	GridOrigin  *FrameConfig `yaml:"grid_origin,omitempty"`
	GridColumns *int         `yaml:"grid_columns,omitempty"`
	GridSpacing *float64     `yaml:"grid_spacing,omitempty"` // meters
	GridCount   *int         `yaml:"grid_count,omitempty"`
}

// RunConfig is the root of a run configuration file.
type RunConfig struct {
	RunName     string            `yaml:"run_name,omitempty"`
	Robot       RobotConfig       `yaml:"robot"`
	Fabrication FabricationConfig `yaml:"fabrication"`
	Tool        ToolConfig        `yaml:"tool"`
	SafeJoints  *[6]float64       `yaml:"safe_joints,omitempty"` // degrees
	SafeTravel  []FrameConfig     `yaml:"safe_travel,omitempty"`
	PickStation PickStationConfig `yaml:"pick_station"`
	Push        []motion.PushSpec `yaml:"push,omitempty"`
}

// LoadRunConfig loads and validates a run configuration from a YAML file.
func LoadRunConfig(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .yaml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *RunConfig) Validate() error {
	if c.Robot.ID != nil && *c.Robot.ID < 1 {
		return fmt.Errorf("robot id must be positive, got %d", *c.Robot.ID)
	}

	if c.Fabrication.ChunkSize != nil && *c.Fabrication.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be at least 1, got %d", *c.Fabrication.ChunkSize)
	}
	if c.Fabrication.Dwell != nil && *c.Fabrication.Dwell != "" {
		if _, err := time.ParseDuration(*c.Fabrication.Dwell); err != nil {
			return fmt.Errorf("invalid dwell '%s': %w", *c.Fabrication.Dwell, err)
		}
	}
	if c.Fabrication.PartialChunk != nil {
		switch *c.Fabrication.PartialChunk {
		case "", "process", "defer":
		default:
			return fmt.Errorf("partial_chunk must be \"process\" or \"defer\", got %q", *c.Fabrication.PartialChunk)
		}
	}

	if len(c.PickStation.Frames) == 0 && c.PickStation.GridOrigin == nil {
		return fmt.Errorf("pick_station needs frames or a grid layout")
	}
	if c.PickStation.CompressAtPick != nil {
		if v := *c.PickStation.CompressAtPick; v < 0 || v >= 1 {
			return fmt.Errorf("compress_at_pick must be in [0, 1), got %f", v)
		}
	}
	if c.PickStation.GridOrigin != nil {
		if c.PickStation.GridCount == nil || *c.PickStation.GridCount < 1 {
			return fmt.Errorf("grid layout needs a positive grid_count")
		}
		if c.PickStation.GridSpacing == nil || *c.PickStation.GridSpacing <= 0 {
			return fmt.Errorf("grid layout needs a positive grid_spacing")
		}
	}

	for i, p := range c.Push {
		if p.Enabled && p.Count < 1 {
			return fmt.Errorf("push %d enabled with count %d", i, p.Count)
		}
	}
	return nil
}

// GetRobotID returns the robot id or the default.
func (c *RunConfig) GetRobotID() int {
	if c.Robot.ID == nil {
		return 1
	}
	return *c.Robot.ID
}

// GetSimulation reports whether the run targets a local simulator.
func (c *RunConfig) GetSimulation() bool {
	if c.Robot.Simulation == nil {
		return false
	}
	return *c.Robot.Simulation
}

// GetEntryExitOffset returns the entry/exit offset or the default.
func (c *RunConfig) GetEntryExitOffset() float64 {
	if c.Fabrication.EntryExitOffset == nil {
		return -0.04 // default: 40mm approach from above the frame
	}
	return *c.Fabrication.EntryExitOffset
}

// GetPickingRotation returns the pick rotation in degrees or the default.
func (c *RunConfig) GetPickingRotation() float64 {
	if c.Fabrication.PickingRotation == nil {
		return 0
	}
	return *c.Fabrication.PickingRotation
}

// GetVerticalMoves reports whether entry moves come straight down.
func (c *RunConfig) GetVerticalMoves() bool {
	if c.Fabrication.VerticalMoves == nil {
		return true // default: clay cells are approached from above
	}
	return *c.Fabrication.VerticalMoves
}

// GetDwell parses and returns the dwell as a time.Duration.
func (c *RunConfig) GetDwell() time.Duration {
	if c.Fabrication.Dwell == nil || *c.Fabrication.Dwell == "" {
		return motion.DefaultDwell
	}
	d, err := time.ParseDuration(*c.Fabrication.Dwell)
	if err != nil {
		return motion.DefaultDwell
	}
	return d
}

// GetChunkSize returns the chunk size or the default.
func (c *RunConfig) GetChunkSize() int {
	if c.Fabrication.ChunkSize == nil {
		return 1
	}
	return *c.Fabrication.ChunkSize
}

// GetPartialChunk returns the partial chunk policy or the default.
func (c *RunConfig) GetPartialChunk() fab.PartialChunkPolicy {
	if c.Fabrication.PartialChunk != nil && *c.Fabrication.PartialChunk == "defer" {
		return fab.PartialDefer
	}
	return fab.PartialProcess
}

// GetToolHeight returns the TCP height offset or the default.
func (c *RunConfig) GetToolHeight() float64 {
	if c.Tool.Height == nil {
		return 0
	}
	return *c.Tool.Height
}

// GetToolRotation returns the TCP rotation in degrees or the default.
func (c *RunConfig) GetToolRotation() float64 {
	if c.Tool.Rotation == nil {
		return 0
	}
	return *c.Tool.Rotation
}

// GetSafeJoints returns the safe joint position in degrees or the
// default overhead posture.
func (c *RunConfig) GetSafeJoints() [6]float64 {
	if c.SafeJoints == nil {
		return [6]float64{0, -90, 90, 0, 90, 0}
	}
	return *c.SafeJoints
}

// GetCompressAtPick returns the pick compression fraction or the default.
func (c *RunConfig) GetCompressAtPick() float64 {
	if c.PickStation.CompressAtPick == nil {
		return 0
	}
	return *c.PickStation.CompressAtPick
}

// SafeTravelFrames converts the configured safe travel waypoints.
func (c *RunConfig) SafeTravelFrames() []geom.Frame {
	frames := make([]geom.Frame, 0, len(c.SafeTravel))
	for _, f := range c.SafeTravel {
		frames = append(frames, f.Frame())
	}
	return frames
}

// StationFrames resolves the pick station layout: an explicit frame list,
// or a generated grid.
func (c *RunConfig) StationFrames() []geom.Frame {
	if len(c.PickStation.Frames) > 0 {
		frames := make([]geom.Frame, 0, len(c.PickStation.Frames))
		for _, f := range c.PickStation.Frames {
			frames = append(frames, f.Frame())
		}
		return frames
	}
	return fab.GridFrames(
		c.PickStation.GridOrigin.Frame(),
		c.deref(c.PickStation.GridColumns, 1),
		*c.PickStation.GridSpacing,
		*c.PickStation.GridCount,
	)
}

func (c *RunConfig) deref(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// Params assembles the orchestrator parameters from the config.
func (c *RunConfig) Params() fab.Params {
	return fab.Params{
		EntryExitOffset: c.GetEntryExitOffset(),
		PickingRotation: c.GetPickingRotation(),
		Vertical:        c.GetVerticalMoves(),
		Dwell:           c.GetDwell(),
		ToolHeight:      c.GetToolHeight(),
		ToolRotation:    c.GetToolRotation(),
		SafeJoints:      c.GetSafeJoints(),
		SafeTravel:      c.SafeTravelFrames(),
		ChunkSize:       c.GetChunkSize(),
		PartialChunk:    c.GetPartialChunk(),
		Push:            c.Push,
	}
}
