package onboard

import (
	"fmt"
	"io/ioutil"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	deverrors "github.com/team217/motionmagic/onboard/errors"
	"github.com/team217/motionmagic/onboard/hardware"
	"gopkg.in/yaml.v2"
)

const CONFIG_VERSION = 1

// Configuration failure policies, see DriveController.Configure.
const (
	PolicyStrict  = "strict"
	PolicyLenient = "lenient"
	PolicyIgnore  = "ignore"
)

type DriveConfig struct {
	Version      int
	Bus          string
	TimeoutMs    int     `yaml:"timeout_ms"`
	LoopPeriodMs int     `yaml:"loop_period_ms"`
	TargetScale  float64 `yaml:"target_scale"`
	PrintEvery   int     `yaml:"print_every"`
	Firmware     string
	ConfigPolicy string `yaml:"config_policy"`

	Input      InputConfig
	Channels   ChannelsConfig
	ClosedLoop ClosedLoopConfig `yaml:"closed_loop"`
}

type InputConfig struct {
	Device string
	Axis   int
	Button int
}

type ChannelConfig struct {
	ID       uint8
	Inverted bool
}

type ChannelsConfig struct {
	FrontLeft  ChannelConfig `yaml:"front_left"`
	FrontRight ChannelConfig `yaml:"front_right"`
	BackLeft   ChannelConfig `yaml:"back_left"`
	BackRight  ChannelConfig `yaml:"back_right"`
}

func (c ChannelsConfig) byName() map[string]ChannelConfig {
	return map[string]ChannelConfig{
		"front_left":  c.FrontLeft,
		"front_right": c.FrontRight,
		"back_left":   c.BackLeft,
		"back_right":  c.BackRight,
	}
}

// Channel looks a channel up by its yaml name, e.g. "front_left".
func (c ChannelsConfig) Channel(name string) (ChannelConfig, error) {
	ch, ok := c.byName()[strings.ToLower(name)]
	if !ok {
		return ChannelConfig{}, deverrors.ChannelNameError{Name: name}
	}
	return ch, nil
}

// ClosedLoopConfig is applied to both lead channels. Velocities are in sensor units per
// 100ms and acceleration in sensor units per 100ms per second.
type ClosedLoopConfig struct {
	Sensor         string
	SensorPhase    bool `yaml:"sensor_phase"`
	PIDIdx         int  `yaml:"pid_idx"`
	Slot           int
	KF             float64 `yaml:"kf"`
	KP             float64 `yaml:"kp"`
	KI             float64 `yaml:"ki"`
	KD             float64 `yaml:"kd"`
	CruiseVelocity int     `yaml:"cruise_velocity"`
	Acceleration   int
}

func DefaultConfig() DriveConfig {
	return DriveConfig{
		Version:      CONFIG_VERSION,
		Bus:          "can0",
		TimeoutMs:    10,
		LoopPeriodMs: 10,
		TargetScale:  DefaultTargetScale,
		PrintEvery:   10,
		Firmware:     ">= 3.0",
		ConfigPolicy: PolicyStrict,
		Input: InputConfig{
			Device: "/dev/input/js0",
			Axis:   1,
			Button: 0,
		},
		Channels: ChannelsConfig{
			FrontLeft:  ChannelConfig{ID: 13, Inverted: true},
			FrontRight: ChannelConfig{ID: 11},
			BackLeft:   ChannelConfig{ID: 14, Inverted: true},
			BackRight:  ChannelConfig{ID: 12},
		},
		ClosedLoop: ClosedLoopConfig{
			Sensor:         "quad_encoder",
			SensorPhase:    false,
			PIDIdx:         0,
			Slot:           0,
			KF:             0.1030543579,
			KP:             0.02095 * 2 * 2 * 2 * 2 * 2,
			CruiseVelocity: 7445,
			Acceleration:   7445,
		},
	}
}

// LoadConfig overlays the yaml file at path on DefaultConfig. A missing file is not an error.
func LoadConfig(path string) (config DriveConfig, err error) {
	config = DefaultConfig()

	raw, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		log.WithField("path", path).Info("no config file, using defaults")
		return config, nil
	}
	if err != nil {
		return config, errors.Wrapf(err, "unable to read config %s", path)
	}

	if err = yaml.Unmarshal(raw, &config); err != nil {
		return config, errors.Wrapf(err, "unable to unmarshal config %s", path)
	}

	config.ConfigPolicy = config.Policy()
	return config, config.Validate()
}

// Policy is the config failure policy in its canonical lower case form.
func (c DriveConfig) Policy() string {
	return strings.ToLower(strings.TrimSpace(c.ConfigPolicy))
}

func (c DriveConfig) Validate() error {
	if c.Version != CONFIG_VERSION {
		return fmt.Errorf("unable to work with version %d", c.Version)
	}

	seen := make(map[uint8]string)
	for name, ch := range c.Channels.byName() {
		if ch.ID > 0x3f {
			return fmt.Errorf("channel %s: device id %d out of range", name, ch.ID)
		}
		if other, ok := seen[ch.ID]; ok {
			return fmt.Errorf("channels %s and %s share device id %d", name, other, ch.ID)
		}
		seen[ch.ID] = name
	}

	switch c.Policy() {
	case PolicyStrict, PolicyLenient, PolicyIgnore:
	default:
		return fmt.Errorf("unknown config_policy %q", c.ConfigPolicy)
	}

	if _, err := hardware.FeedbackDeviceByName(c.ClosedLoop.Sensor); err != nil {
		return err
	}
	if c.TimeoutMs < 0 || c.LoopPeriodMs <= 0 {
		return fmt.Errorf("timeout_ms must be >= 0 and loop_period_ms > 0")
	}
	if c.TargetScale <= 0 {
		return fmt.Errorf("target_scale must be positive")
	}

	return nil
}

func (c DriveConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c DriveConfig) LoopPeriod() time.Duration {
	return time.Duration(c.LoopPeriodMs) * time.Millisecond
}
