package main

import (
	"context"
	"errors"
	"strconv"

	"github.com/abiosoft/ishell"
)

func runShell(cancel context.CancelFunc) {
	shell := ishell.New()
	shell.Println("Motion magic development shell")
	shell.ShowPrompt(true)

	shell.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "Print the latest telemetry line",
		Func: func(c *ishell.Context) {
			sample, ok := ENV.Telemetry.Latest()
			if !ok {
				c.Println("no telemetry yet")
				return
			}
			c.Printf("tick %d %s%s\n", sample.Tick, sample.Mode, sample)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "stick",
		Help: "stick <axis -1..1> <button true|false>",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Err(errors.New("Incorrect number of arguments. Usage: stick <axis> <button>"))
				return
			}
			axis, err := strconv.ParseFloat(c.Args[0], 64)
			if err != nil {
				c.Err(err)
				return
			}
			button, err := strconv.ParseBool(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			ENV.Virtual.Set(axis, button)
			c.Printf("Virtual stick at %v, button %v\n", axis, button)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "configure",
		Help: "Re-apply the drivetrain configuration",
		Func: func(c *ishell.Context) {
			c.ProgressBar().Indeterminate(true)
			c.ProgressBar().Start()
			err := ENV.Drive.Configure(ENV.Config)
			c.ProgressBar().Stop()
			if err != nil {
				c.Err(err)
				return
			}
			c.Println("Drivetrain configured")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "firmware",
		Help: "Read the firmware version of every motor controller",
		Func: func(c *ishell.Context) {
			for _, t := range ENV.Talons {
				version, err := t.CheckFirmware(ENV.Config.Firmware, ENV.Config.Timeout())
				if err != nil {
					c.Printf("device %d: %v\n", t.DeviceID(), err)
					continue
				}
				c.Printf("device %d: %s\n", t.DeviceID(), version)
			}
		},
	})

	shell.Run()
	// the shell exiting stops the robot
	cancel()
}
