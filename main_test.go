package main

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/team217/motionmagic/onboard"
	"github.com/team217/motionmagic/onboard/canbus"
	"github.com/team217/motionmagic/onboard/hardware"
)

func TestCheckFirmware(t *testing.T) {
	Convey("Given one motor controller with old firmware", t, func() {
		bus := canbus.NewLoopback()
		sim := onboard.NewSimulatedDrivetrain(bus, 13, 11, 14, 12)
		sim.Talons[13].SetFirmware("2.0.0")

		ENV.Talons = nil
		for _, id := range []uint8{13, 11, 14, 12} {
			ENV.Talons = append(ENV.Talons, hardware.NewTalonSRX(bus.Host(), id))
		}
		defer func() {
			bus.Close()
			for _, talon := range ENV.Talons {
				talon.Close()
			}
			sim.Close()
		}()

		config := onboard.DefaultConfig()
		config.TimeoutMs = 50

		Convey("strict refuses to start", func() {
			config.ConfigPolicy = onboard.PolicyStrict
			So(checkFirmware(config), ShouldNotBeNil)
		})

		Convey("strict is matched regardless of case", func() {
			config.ConfigPolicy = "STRICT"
			So(checkFirmware(config), ShouldNotBeNil)
		})

		Convey("lenient only warns", func() {
			config.ConfigPolicy = onboard.PolicyLenient
			So(checkFirmware(config), ShouldBeNil)
		})

		Convey("ignore only warns", func() {
			config.ConfigPolicy = onboard.PolicyIgnore
			So(checkFirmware(config), ShouldBeNil)
		})
	})
}
