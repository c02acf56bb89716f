package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v6"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	. "github.com/team217/motionmagic/onboard"
	"github.com/team217/motionmagic/onboard/broadcast"
	"github.com/team217/motionmagic/onboard/canbus"
	"github.com/team217/motionmagic/onboard/hardware"
	"github.com/team217/motionmagic/onboard/joystick"
)

type EnvConfig struct {
	CONFIG     string `env:"MM_CONFIG" envDefault:"./drive.yaml"`
	DEBUG      bool   `env:"DEBUG" envDefault:"0"`
	SIM        bool   `env:"SIM" envDefault:"0"`
	LISTEN     string `env:"DIAG_LISTEN"`
	JOYSTICK   string `env:"JOYSTICK_DEVICE"`
	Config     DriveConfig
	Drive      *DriveController
	Talons     []*hardware.TalonSRX
	Virtual    *VirtualInput
	Telemetry  *broadcast.Hub
	Simulation *SimulatedDrivetrain
}

var (
	ENV *EnvConfig
	log = logrus.WithField("component", "main")
)

func init() {
	ENV = new(EnvConfig)
	if err := env.Parse(ENV); err != nil {
		panic(err)
	}
}

func main() {
	simulated := flag.Bool("sim", ENV.SIM, "Run against simulated motor controllers")
	configFile := flag.String("config", ENV.CONFIG, "Drive configuration file")
	listen := flag.String("listen", ENV.LISTEN, "Serve diagnostics on ip:port, disabled when empty")
	withShell := flag.Bool("shell", false, "Start the development shell")
	flag.Parse()

	if ENV.DEBUG {
		logrus.SetLevel(logrus.DebugLevel)
	}

	config, err := LoadConfig(*configFile)
	if err != nil {
		log.WithError(err).Fatal("unable to load configuration")
	}
	ENV.Config = config
	ENV.SIM = *simulated

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	registerSignalHandlers(cancel)

	bus, closeBus, err := openBus(ctx, config)
	if err != nil {
		log.WithError(err).Fatal("unable to open CAN bus")
	}

	channels := config.Channels
	for _, id := range []uint8{channels.FrontLeft.ID, channels.FrontRight.ID, channels.BackLeft.ID, channels.BackRight.ID} {
		ENV.Talons = append(ENV.Talons, hardware.NewTalonSRX(bus, id))
	}
	// the bus goes first so no reader is left blocked delivering to a closed talon
	defer func() {
		closeBus()
		for _, t := range ENV.Talons {
			t.Close()
		}
	}()

	if err = checkFirmware(config); err != nil {
		log.WithError(err).Fatal("firmware check failed")
	}

	ENV.Drive = NewDriveController(ENV.Talons[0], ENV.Talons[1], ENV.Talons[2], ENV.Talons[3])
	ENV.Drive.TargetScale = config.TargetScale
	if err = ENV.Drive.Configure(config); err != nil {
		log.WithError(err).Fatal("unable to configure drivetrain")
	}
	log.Info("drivetrain configured")

	input := openInput(config)

	ENV.Telemetry = broadcast.NewHub()
	runner := NewRunner(ENV.Drive, input, config.LoopPeriod(), NewInstrument(config.PrintEvery), ENV.Telemetry)

	if *listen != "" {
		srv := &http.Server{Addr: *listen, Handler: diagRouter()}
		go func() {
			log.WithField("addr", *listen).Info("serving diagnostics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("diagnostics server failed")
			}
		}()
		defer srv.Close()
	}

	if *withShell {
		go runShell(cancel)
	}

	if err = runner.Run(ctx); err != nil {
		log.WithError(err).Error("control loop stopped")
	}

	if err = ENV.Drive.Neutral(); err != nil {
		log.WithError(err).Warn("unable to zero outputs on exit")
	}
	log.Info("stopped")
}

// openBus returns the SocketCAN bus for the configured interface, or the host end of a
// loopback bus driven by a simulated drivetrain.
func openBus(ctx context.Context, config DriveConfig) (canbus.CANBusInterface, func(), error) {
	if !ENV.SIM {
		bus, err := canbus.NewCANBus(config.Bus)
		if err != nil {
			return nil, nil, err
		}
		return bus, func() { bus.Close() }, nil
	}

	log.Info("running with simulated motor controllers")
	loop := canbus.NewLoopback()
	c := config.Channels
	ENV.Simulation = NewSimulatedDrivetrain(loop, c.FrontLeft.ID, c.FrontRight.ID, c.BackLeft.ID, c.BackRight.ID)
	go ENV.Simulation.Run(ctx)

	return loop.Host(), func() {
		loop.Close()
		ENV.Simulation.Close()
	}, nil
}

func checkFirmware(config DriveConfig) error {
	for _, t := range ENV.Talons {
		version, err := t.CheckFirmware(config.Firmware, config.Timeout())
		if err != nil {
			if config.Policy() == PolicyStrict {
				return err
			}
			log.WithField("device", t.DeviceID()).WithError(err).Warn("firmware check failed")
			continue
		}
		log.WithFields(logrus.Fields{"device": t.DeviceID(), "firmware": version}).Info("found motor controller")
	}
	return nil
}

// openInput binds the configured joystick. Without one, or in the simulator, input comes from
// the shell and diagnostics surface.
func openInput(config DriveConfig) InputSource {
	ENV.Virtual = new(VirtualInput)

	device := config.Input.Device
	if ENV.JOYSTICK != "" {
		device = ENV.JOYSTICK
	}
	if ENV.SIM && ENV.JOYSTICK == "" {
		return ENV.Virtual
	}

	j, err := joystick.NewJoystick(device)
	if err != nil {
		log.WithError(errors.Cause(err)).Warn("no joystick, using virtual input")
		return ENV.Virtual
	}
	j.Track()

	return joystick.Binding{Joystick: j, Axis: uint8(config.Input.Axis), Button: uint8(config.Input.Button)}
}

func registerSignalHandlers(cancel context.CancelFunc) {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		log.WithField("signal", s).Info("shutting down")
		cancel()
	}()
}
