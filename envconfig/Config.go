// Package envconfig provides YAML-serializable configuration for the
// batched manipulation environment and a factory assembling every
// component from one Config.
package envconfig

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gopkg.in/yaml.v3"

	"github.com/samuelfneumann/gomanip/control"
	"github.com/samuelfneumann/gomanip/privinfo"
	"github.com/samuelfneumann/gomanip/reset"
	"github.com/samuelfneumann/gomanip/reward"
	"github.com/samuelfneumann/gomanip/sim"
	"github.com/samuelfneumann/gomanip/state"
	"github.com/samuelfneumann/gomanip/timestep"
	"github.com/samuelfneumann/gomanip/vecenv"
)

// Task geometry. The object rests on the table surface and the push
// plane sits a fixed height above it.
const (
	TableSurfaceZ float64 = 1.025
	WorkHeight    float64 = 1.145

	DefaultObjectSize       float64 = 0.05
	DefaultSuccessThreshold float64 = 0.05
	DefaultContactThreshold float64 = 0.2
)

// DefaultGoalShift is the nominal goal offset from the object spawn
// centre
var DefaultGoalShift = [2]float64{0.0, 0.25}

// Home joint configurations per control law. Planar control laws use a
// pre-bent elbow-up pose that keeps the end effector near the push
// plane; joint-velocity control starts from a raised pose suited to
// dynamic arm motion.
var (
	planarDefaultPose = []float64{
		-7.5521e-02, 7.5651e-01, -4.7575e-02, -2.3285, 5.1002e-01,
		3.0750, 1.6528e-01, 1.0002e-03, 9.9984e-04,
	}

	uprightDefaultPose = []float64{
		0.0, 0.1963, 0.0, -2.6180, 0.0, 2.9416, 0.7854, 0.001, 0.001,
	}

	raisedDefaultPose = []float64{
		0.0, 1.0472, 0.0, -1.5708, 0.0, 2.61799, 0.7854, 0.020, 0.020,
	}
)

// defaultControlledJoints are the arm joints the joint-velocity law
// drives when the configuration does not name any
var defaultControlledJoints = []int{1, 3, 5}

// Config is one complete parameterization of the environment. Zero
// values fall back to the defaults set by DefaultConfig, so a partial
// YAML file overrides only what it names.
type Config struct {
	NumEnvs       int `yaml:"num_envs"`
	EpisodeLength int `yaml:"episode_length"`

	// Control law
	ControlType       string  `yaml:"control_type"`  // osc, jvel, primitive
	ControlInput      string  `yaml:"control_input"` // pose2d, pose3d, pose6d
	ActionScale       float64 `yaml:"action_scale"`
	VariableImpedance bool    `yaml:"variable_impedance"`
	ImpedanceMin      float64 `yaml:"impedance_min"`
	ImpedanceMax      float64 `yaml:"impedance_max"`
	Gripper           bool    `yaml:"gripper"`
	ControlledJoints  []int   `yaml:"controlled_joints"`
	ActionBias        float64 `yaml:"action_bias"`
	ActionVar         float64 `yaml:"action_var"`

	// Reward
	PosScale         float64 `yaml:"pos_scale"`
	OriScale         float64 `yaml:"ori_scale"`
	ContactScale     float64 `yaml:"contact_scale"`
	VelScale         float64 `yaml:"vel_scale"`
	SpeedScale       float64 `yaml:"speed_scale"`
	SuccessScale     float64 `yaml:"success_scale"`
	SuccessRule      string  `yaml:"success_rule"` // threshold, hold, settled
	NHoldSteps       int     `yaml:"n_hold_steps"`
	SuccessThreshold float64 `yaml:"success_threshold"`
	SettleVelocity   float64 `yaml:"settle_velocity"`

	// Reset randomization
	ObjectNoise float64 `yaml:"object_noise"`
	GoalNoise   float64 `yaml:"goal_noise"`
	DOFNoise    float64 `yaml:"dof_noise"`
	ObjectSize  float64 `yaml:"object_size"`

	// Privileged information
	IncludePrivInfo bool `yaml:"include_priv_info"`
	PrivInfoDim     int  `yaml:"priv_info_dim"`

	Seed uint64 `yaml:"seed"`
}

// DefaultConfig returns the canonical push-task configuration
func DefaultConfig() Config {
	return Config{
		NumEnvs:       1,
		EpisodeLength: 250,

		ControlType:  "osc",
		ControlInput: "pose2d",
		ActionScale:  1.0,
		ImpedanceMin: 0.0,
		ImpedanceMax: 300.0,

		PosScale:         1.0,
		SuccessScale:     1.0,
		SuccessRule:      "threshold",
		NHoldSteps:       10,
		SuccessThreshold: DefaultSuccessThreshold,
		SettleVelocity:   0.001,

		ObjectNoise: 0.1,
		GoalNoise:   0.0,
		DOFNoise:    0.0,
		ObjectSize:  DefaultObjectSize,

		PrivInfoDim: 5,
	}
}

// Load reads a YAML configuration file on top of the defaults
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load: could not read config: %v", err)
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("load: could not parse config: %v", err)
	}
	return c, nil
}

// Validate checks the configuration for inconsistencies that the
// component constructors cannot see in isolation
func (c Config) Validate() error {
	if c.NumEnvs < 1 {
		return fmt.Errorf("validate: need at least one environment, got %v",
			c.NumEnvs)
	}
	if c.EpisodeLength < 1 {
		return fmt.Errorf("validate: episode length must be positive, got %v",
			c.EpisodeLength)
	}
	if _, err := control.ParseMode(c.ControlType); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if _, err := control.ParseInput(c.ControlInput); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if _, err := reward.ParseSuccessRule(c.SuccessRule); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if c.VariableImpedance && c.ImpedanceMax <= c.ImpedanceMin {
		return fmt.Errorf("validate: impedance range [%v, %v] is empty",
			c.ImpedanceMin, c.ImpedanceMax)
	}
	if c.IncludePrivInfo && c.PrivInfoDim < 1 {
		return fmt.Errorf("validate: privileged info width must be "+
			"positive, got %v", c.PrivInfoDim)
	}
	return nil
}

// defaultPose selects the home joint configuration for the configured
// control law
func (c Config) defaultPose(mode control.Mode,
	input control.Input) *mat.VecDense {
	switch {
	case mode == control.JointVelocity:
		return mat.NewVecDense(state.NumDOF, append([]float64(nil),
			raisedDefaultPose...))

	case mode == control.ScriptedPrimitive,
		mode == control.OSC && input == control.Pose2D:
		return mat.NewVecDense(state.NumDOF, append([]float64(nil),
			planarDefaultPose...))

	default:
		return mat.NewVecDense(state.NumDOF, append([]float64(nil),
			uprightDefaultPose...))
	}
}

// Create assembles the environment on top of the given simulator and
// returns it together with the initial timestep
func (c Config) Create(sm sim.Simulator) (*vecenv.VecEnv, timestep.TimeStep,
	error) {
	if err := c.Validate(); err != nil {
		return nil, timestep.TimeStep{}, fmt.Errorf("create: %v", err)
	}
	if sm.NumEnvs() != c.NumEnvs {
		return nil, timestep.TimeStep{}, fmt.Errorf("create: simulator has "+
			"%v environments but the config names %v", sm.NumEnvs(), c.NumEnvs)
	}

	mode, _ := control.ParseMode(c.ControlType)
	input, _ := control.ParseInput(c.ControlInput)
	rule, _ := reward.ParseSuccessRule(c.SuccessRule)

	proj := state.NewProjector(c.NumEnvs, c.SuccessThreshold,
		DefaultContactThreshold)

	controlled := c.ControlledJoints
	if mode == control.JointVelocity && len(controlled) == 0 {
		controlled = defaultControlledJoints
	}

	defaultPose := c.defaultPose(mode, input)

	ctrl, err := control.New(control.Config{
		Mode:              mode,
		Input:             input,
		ActionScale:       c.ActionScale,
		VariableImpedance: c.VariableImpedance,
		ImpedanceRange:    r1.Interval{Min: c.ImpedanceMin, Max: c.ImpedanceMax},
		Gripper:           c.Gripper,
		ControlledJoints:  controlled,
		DefaultPose:       defaultPose,
		WorkHeight:        WorkHeight,
		ActionBias:        c.ActionBias,
		ActionVar:         c.ActionVar,
	}, c.NumEnvs, proj, c.Seed)
	if err != nil {
		return nil, timestep.TimeStep{}, fmt.Errorf("create: %v", err)
	}

	sampler, err := reset.NewSampler(reset.Config{
		GoalShift:   DefaultGoalShift,
		ObjectNoise: c.ObjectNoise,
		GoalNoise:   c.GoalNoise,
		TableHeight: TableSurfaceZ,
		ObjectSize:  c.ObjectSize,
		DefaultPose: defaultPose,
		DOFNoise:    c.DOFNoise,
	}, c.Seed)
	if err != nil {
		return nil, timestep.TimeStep{}, fmt.Errorf("create: %v", err)
	}

	engine, err := reward.NewEngine(reward.Settings{
		PosScale:         c.PosScale,
		OriScale:         c.OriScale,
		ContactScale:     c.ContactScale,
		VelScale:         c.VelScale,
		SpeedScale:       c.SpeedScale,
		SuccessScale:     c.SuccessScale,
		SuccessThreshold: c.SuccessThreshold,
		HoldSteps:        c.NHoldSteps,
		SettleVelocity:   c.SettleVelocity,
		Rule:             rule,
	}, c.EpisodeLength)
	if err != nil {
		return nil, timestep.TimeStep{}, fmt.Errorf("create: %v", err)
	}

	var priv *privinfo.Collector
	if c.IncludePrivInfo {
		priv, err = privinfo.NewCollector(c.NumEnvs, c.PrivInfoDim)
		if err != nil {
			return nil, timestep.TimeStep{}, fmt.Errorf("create: %v", err)
		}
	}

	env, err := vecenv.New(sm, proj, ctrl, sampler, engine, priv)
	if err != nil {
		return nil, timestep.TimeStep{}, fmt.Errorf("create: %v", err)
	}

	first, err := env.Reset()
	if err != nil {
		return nil, timestep.TimeStep{}, fmt.Errorf("create: %v", err)
	}
	return env, first, nil
}
