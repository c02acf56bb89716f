package onboard

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	deverrors "github.com/team217/motionmagic/onboard/errors"
	"gopkg.in/yaml.v2"
)

const testYaml = `
version: 1
bus: vcan0
timeout_ms: 25
config_policy: lenient
channels:
  front_left:
    id: 3
    inverted: true
  back_left:
    id: 4
closed_loop:
  sensor: analog
  kp: 1.5
  cruise_velocity: 1000
`

func TestDriveConfigParsing(t *testing.T) {
	Convey("yaml overlays the defaults", t, func() {
		config := DefaultConfig()
		err := yaml.Unmarshal([]byte(testYaml), &config)
		So(err, ShouldBeNil)
		So(config.Validate(), ShouldBeNil)

		So(config.Bus, ShouldEqual, "vcan0")
		So(config.Timeout(), ShouldEqual, 25*time.Millisecond)
		So(config.LoopPeriod(), ShouldEqual, 10*time.Millisecond)
		So(config.ConfigPolicy, ShouldEqual, PolicyLenient)

		So(config.Channels.FrontLeft, ShouldResemble, ChannelConfig{ID: 3, Inverted: true})
		So(config.Channels.BackLeft, ShouldResemble, ChannelConfig{ID: 4, Inverted: true})
		So(config.Channels.FrontRight.ID, ShouldEqual, 11)

		So(config.ClosedLoop.Sensor, ShouldEqual, "analog")
		So(config.ClosedLoop.KP, ShouldEqual, 1.5)
		So(config.ClosedLoop.KF, ShouldEqual, 0.1030543579)
		So(config.ClosedLoop.CruiseVelocity, ShouldEqual, 1000)
		So(config.ClosedLoop.Acceleration, ShouldEqual, 7445)
	})
}

func TestDriveConfigDefaults(t *testing.T) {
	Convey("defaults match the drivetrain", t, func() {
		config := DefaultConfig()
		So(config.Validate(), ShouldBeNil)
		So(config.Channels.FrontLeft, ShouldResemble, ChannelConfig{ID: 13, Inverted: true})
		So(config.Channels.BackLeft, ShouldResemble, ChannelConfig{ID: 14, Inverted: true})
		So(config.Channels.FrontRight, ShouldResemble, ChannelConfig{ID: 11})
		So(config.Channels.BackRight, ShouldResemble, ChannelConfig{ID: 12})
		So(config.ClosedLoop.KP, ShouldAlmostEqual, 0.6704, 1e-9)
		So(config.TargetScale, ShouldEqual, 24576)
		So(config.PrintEvery, ShouldEqual, 10)
	})
}

func TestDriveConfigValidation(t *testing.T) {
	Convey("Given the default config", t, func() {
		config := DefaultConfig()

		Convey("unknown versions are refused", func() {
			config.Version = 2
			So(config.Validate(), ShouldNotBeNil)
		})

		Convey("duplicate device ids are refused", func() {
			config.Channels.BackRight.ID = 13
			So(config.Validate().Error(), ShouldContainSubstring, "share device id 13")
		})

		Convey("ids must fit the arbitration field", func() {
			config.Channels.FrontRight.ID = 64
			So(config.Validate(), ShouldNotBeNil)
		})

		Convey("policies are checked", func() {
			config.ConfigPolicy = "sometimes"
			So(config.Validate(), ShouldNotBeNil)
			config.ConfigPolicy = "IGNORE"
			So(config.Validate(), ShouldBeNil)
			So(config.Policy(), ShouldEqual, PolicyIgnore)
		})

		Convey("channels are found by name", func() {
			ch, err := config.Channels.Channel("Back_Left")
			So(err, ShouldBeNil)
			So(ch, ShouldResemble, ChannelConfig{ID: 14, Inverted: true})

			_, err = config.Channels.Channel("middle")
			So(err, ShouldResemble, deverrors.ChannelNameError{Name: "middle"})
		})

		Convey("sensors are checked", func() {
			config.ClosedLoop.Sensor = "lidar"
			So(config.Validate(), ShouldNotBeNil)
		})

		Convey("the loop needs a period", func() {
			config.LoopPeriodMs = 0
			So(config.Validate(), ShouldNotBeNil)
		})
	})
}

func TestLoadConfig(t *testing.T) {
	Convey("Given a config directory", t, func() {
		dir, err := ioutil.TempDir("", "drive")
		So(err, ShouldBeNil)
		defer os.RemoveAll(dir)

		Convey("a missing file yields the defaults", func() {
			config, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
			So(err, ShouldBeNil)
			So(config, ShouldResemble, DefaultConfig())
		})

		Convey("a file is loaded and validated", func() {
			path := filepath.Join(dir, "drive.yaml")
			So(ioutil.WriteFile(path, []byte(testYaml), 0644), ShouldBeNil)

			config, err := LoadConfig(path)
			So(err, ShouldBeNil)
			So(config.Bus, ShouldEqual, "vcan0")
		})

		Convey("the policy is stored lower case", func() {
			path := filepath.Join(dir, "strict.yaml")
			So(ioutil.WriteFile(path, []byte("version: 1\nconfig_policy: STRICT\n"), 0644), ShouldBeNil)

			config, err := LoadConfig(path)
			So(err, ShouldBeNil)
			So(config.ConfigPolicy, ShouldEqual, PolicyStrict)
		})

		Convey("broken yaml is an error", func() {
			path := filepath.Join(dir, "broken.yaml")
			So(ioutil.WriteFile(path, []byte("version: [1"), 0644), ShouldBeNil)

			_, err := LoadConfig(path)
			So(err, ShouldNotBeNil)
		})
	})
}
