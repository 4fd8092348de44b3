package transport

import (
	"sync"

	"github.com/sstallion/go-hid"
)

var hidInit struct {
	once sync.Once
	err  error
}

// hidapiBackend is the HIDBackend over the system hidapi library.
type hidapiBackend struct{}

func (hidapiBackend) init() error {
	hidInit.once.Do(func() {
		hidInit.err = hid.Init()
	})
	return hidInit.err
}

func (b hidapiBackend) Enumerate(vendorID, productID uint16) ([]DeviceInfo, error) {
	if err := b.init(); err != nil {
		return nil, err
	}
	var out []DeviceInfo
	err := hid.Enumerate(vendorID, productID, func(info *hid.DeviceInfo) error {
		out = append(out, DeviceInfo{
			Path:         info.Path,
			VendorID:     info.VendorID,
			ProductID:    info.ProductID,
			SerialNumber: info.SerialNbr,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b hidapiBackend) Open(info DeviceInfo) (HIDDevice, error) {
	if err := b.init(); err != nil {
		return nil, err
	}
	dev, err := hid.OpenPath(info.Path)
	if err != nil {
		return nil, err
	}
	return dev, nil
}
