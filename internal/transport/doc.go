// Package transport opens byte channels to an EV3 brick.
//
// Ownership boundary:
// - radio (bluetooth rfcomm socket or bound serial port)
// - usb (hid report device)
// - network (udp discovery, tcp unlock handshake)
//
// Callers above this package only see Link and LinkError; link specific
// failures are wrapped before they leave the package.
package transport
