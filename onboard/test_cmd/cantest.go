//go:build linux
// +build linux

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/team217/motionmagic/onboard/canbus"
	"github.com/team217/motionmagic/onboard/hardware"
)

func main() {
	ifname := flag.String("if", "can0", "CAN interface")
	constraint := flag.String("firmware", ">= 3.0", "required firmware version")
	flag.Parse()

	bus, err := canbus.NewCANBus(*ifname)
	if err != nil {
		panic(err)
	}
	defer bus.Close()

	ids := []uint8{13, 11, 14, 12}
	failed := false
	for _, id := range ids {
		// keep draining status frames until the bus is closed
		talon := hardware.NewTalonSRX(bus, id)
		defer talon.Close()

		version, err := talon.CheckFirmware(*constraint, 100*time.Millisecond)
		if err != nil {
			fmt.Printf("device %d: %v\n", id, err)
			failed = true
			continue
		}
		fmt.Printf("Success! Working with device %d firmware %s\n", id, version)
	}

	if failed {
		os.Exit(1)
	}
}
