package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/team217/motionmagic/onboard/canbus"
)

func main() {
	ifname := flag.String("if", "can0", "CAN interface to listen on")
	flag.Parse()

	fmt.Println("Opening listener on", *ifname)
	bus, err := canbus.NewCANBus(*ifname)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer bus.Close()

	rxc := make(chan canbus.CANMsg, 64)
	bus.AddMonitor(rxc)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)

	for {
		select {
		case <-signals:
			return
		case msg := <-rxc:
			fmt.Printf("0x%08x %s \t[%d] \t", msg.ID, msg.Arbitration(), len(msg.Data))
			for i := 0; i < len(msg.Data); i++ {
				fmt.Printf("%02x ", msg.Data[i])
			}
			fmt.Printf("\n")
		}
	}
}
