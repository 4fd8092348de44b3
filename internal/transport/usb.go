package transport

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	VendorLEGO uint16 = 0x0694
	ProductEV3 uint16 = 0x0005

	// ReportSize is the payload size of one EV3 hid report.
	ReportSize = 1024
)

// DeviceInfo is one enumerated hid device.
type DeviceInfo struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	SerialNumber string
}

// HIDDevice is an open hid device handle.
type HIDDevice interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetNonblock(nonblocking bool) error
	Close() error
}

// HIDBackend enumerates and opens hid devices.
type HIDBackend interface {
	Enumerate(vendorID, productID uint16) ([]DeviceInfo, error)
	Open(info DeviceInfo) (HIDDevice, error)
}

type USBParams struct {
	VendorID  uint16
	ProductID uint16
	// Backend defaults to the hidapi binding.
	Backend HIDBackend
}

func DefaultUSBParams() USBParams {
	return USBParams{
		VendorID:  VendorLEGO,
		ProductID: ProductEV3,
	}
}

func openUSB(host string, p USBParams) (Link, error) {
	backend := p.Backend
	if backend == nil {
		backend = hidapiBackend{}
	}
	if p.VendorID == 0 {
		p.VendorID = VendorLEGO
	}
	devices, err := backend.Enumerate(p.VendorID, p.ProductID)
	if err != nil {
		return nil, linkErr(KindUSB, "connect", err)
	}
	info, err := selectDevice(devices, p.VendorID, host)
	if err != nil {
		return nil, linkErr(KindUSB, "connect", err)
	}
	dev, err := backend.Open(info)
	if err != nil {
		return nil, linkErr(KindUSB, "connect", err)
	}
	if err := dev.SetNonblock(true); err != nil {
		dev.Close()
		return nil, linkErr(KindUSB, "connect", err)
	}
	// Drop whatever report the brick still has queued from an earlier session.
	if _, err := dev.Read(make([]byte, ReportSize)); err != nil {
		dev.Close()
		return nil, linkErr(KindUSB, "connect", err)
	}
	log.Info().Msgf("transport.openUSB connected serial=%s path=%s", info.SerialNumber, info.Path)
	return &usbLink{dev: dev}, nil
}

// selectDevice narrows devices to exactly one brick of vendorID, filtered by
// host when given.
func selectDevice(devices []DeviceInfo, vendorID uint16, host string) (DeviceInfo, error) {
	want := NormalizeSerial(host)
	var found []DeviceInfo
	for _, d := range devices {
		if d.VendorID != vendorID {
			continue
		}
		if want != "" && NormalizeSerial(d.SerialNumber) != want {
			continue
		}
		found = append(found, d)
	}
	switch len(found) {
	case 0:
		if want != "" {
			return DeviceInfo{}, fmt.Errorf("%w: host=%s", ErrDeviceNotFound, host)
		}
		return DeviceInfo{}, ErrDeviceNotFound
	case 1:
		return found[0], nil
	default:
		return DeviceInfo{}, fmt.Errorf("%w: candidates=%d", ErrAmbiguousDevice, len(found))
	}
}

type usbLink struct {
	wmu sync.Mutex
	dev HIDDevice

	closeOnce sync.Once
	closeErr  error
}

func (l *usbLink) Kind() Kind {
	return KindUSB
}

// Send writes frame as one output report: report id 0 then the frame,
// zero padded to the report size.
func (l *usbLink) Send(p []byte) error {
	if len(p) > ReportSize {
		return linkErr(KindUSB, "send", fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(p), ReportSize))
	}
	report := make([]byte, ReportSize+1)
	copy(report[1:], p)
	l.wmu.Lock()
	defer l.wmu.Unlock()
	if _, err := l.dev.Write(report); err != nil {
		return linkErr(KindUSB, "send", err)
	}
	return nil
}

func (l *usbLink) Receive(max int) ([]byte, error) {
	if max <= 0 {
		max = ReportSize
	}
	buf := make([]byte, max)
	n, err := l.dev.Read(buf)
	if err != nil {
		return nil, linkErr(KindUSB, "receive", err)
	}
	return buf[:n], nil
}

func (l *usbLink) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = linkErr(KindUSB, "close", l.dev.Close())
	})
	return l.closeErr
}
