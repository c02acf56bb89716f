package canbus

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoopback(t *testing.T) {
	Convey("Frames cross between the two ends", t, func() {
		bus := NewLoopback()
		deviceRx := make(chan CANMsg, 4)
		hostRx := make(chan CANMsg, 4)
		bus.Device().AddListener(13, deviceRx)
		bus.Host().AddListener(13, hostRx)

		arb := Arbitration{DeviceType: DeviceTypeMotorController, Manufacturer: ManufacturerCTRE, Device: 13}
		data := []byte{1, 2, 3}
		So(bus.Host().SendMsg(NewMsg(arb, data)), ShouldBeNil)

		var got CANMsg
		select {
		case got = <-deviceRx:
		case <-time.After(time.Second):
		}
		So(got.ID, ShouldEqual, arb.ID())
		So(got.Data, ShouldResemble, data)
		So(len(hostRx), ShouldEqual, 0)

		Convey("the sender's buffer is copied", func() {
			data[0] = 9
			So(got.Data[0], ShouldEqual, 1)
		})

		Convey("frames for other devices are not routed", func() {
			arb.Device = 14
			So(bus.Host().SendMsg(NewMsg(arb, nil)), ShouldBeNil)
			So(len(deviceRx), ShouldEqual, 0)
		})

		Convey("device frames arrive at the host", func() {
			So(bus.Device().SendMsg(NewMsg(arb, []byte{7})), ShouldBeNil)
			So(len(hostRx), ShouldEqual, 1)
		})

		Convey("monitors see everything without blocking", func() {
			mon := make(chan CANMsg, 1)
			bus.device.AddMonitor(mon)
			arb.Device = 40
			So(bus.Host().SendMsg(NewMsg(arb, nil)), ShouldBeNil)
			So(bus.Host().SendMsg(NewMsg(arb, nil)), ShouldBeNil)
			So(len(mon), ShouldEqual, 1)
		})

		Convey("oversized data is rejected", func() {
			So(bus.Host().SendMsg(NewMsg(arb, make([]byte, 9))), ShouldEqual, ERR_DATA_TOO_LONG)
		})

		Convey("closed bus refuses to send", func() {
			bus.Close()
			So(bus.Host().SendMsg(NewMsg(arb, nil)), ShouldEqual, ERR_BUS_CLOSED)
		})
	})
}
