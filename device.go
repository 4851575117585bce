package colortracker

import (
	"errors"
	"fmt"
	"gocv.io/x/gocv"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrSourceUnavailable is returned when the capture device or file could
	// not be opened
	ErrSourceUnavailable = errors.New("video source unavailable")
	// ErrNotOwner is returned when a Source is created for, or handed, a
	// Device that another Source already owns
	ErrNotOwner = errors.New("device is owned by another source")
	// ErrReleased is returned when using a Device that has been closed
	ErrReleased = errors.New("device has been released")
	// ErrForcedTermination is returned when an acquisition loop did not stop
	// within its grace period and the Device was abandoned to it
	ErrForcedTermination = errors.New("acquisition loop did not stop in time")
)

// videoCaptureReadTimeoutMsec is the OpenCV CAP_PROP_READ_TIMEOUT_MSEC
// property which bounds how long a blocking read may wait on the stream
const videoCaptureReadTimeoutMsec gocv.VideoCaptureProperties = 54

// Capture is the subset of gocv.VideoCapture used by a Device
type Capture interface {
	Read(m *gocv.Mat) bool
	Get(prop gocv.VideoCaptureProperties) float64
	Set(prop gocv.VideoCaptureProperties, param float64)
	Close() error
}

// lease identifies the current owner of a Device.  released is guarded by
// the Device mutex and set once the holder has given the device up.
type lease struct {
	id       uint64
	released bool
}

// leaseIDs hands out unique lease identities
var leaseIDs atomic.Uint64

func newLease() *lease {
	return &lease{id: leaseIDs.Add(1)}
}

// Device is a move-only handle to an opened capture device.  Exactly one
// Source owns it at a time and only the owner may close it.
type Device struct {
	capture  Capture
	selector string
	width    int
	height   int

	mu        sync.Mutex
	owner     *lease
	closed    bool
	abandoned bool
}

// ParseSelector converts a device selector into the value accepted by GoCV.
// Selectors consisting only of digits are device indexes, anything else is
// passed through as a file path, URL or pipeline description.
func ParseSelector(selector string) (index int, path string, isIndex bool) {

	trimmed := strings.TrimSpace(selector)

	if trimmed != "" && strings.Trim(trimmed, "0123456789") == "" {
		if id, err := strconv.Atoi(trimmed); err == nil {
			return id, "", true
		}
	}

	return 0, selector, false
}

// Open opens the capture device described by selector, either a device index
// such as "0" or a backend specific path or URI.  readTimeout bounds how long
// a single frame read may block, a value of zero leaves the backend default.
func Open(selector string, readTimeout time.Duration) (*Device, error) {

	var (
		vc  *gocv.VideoCapture
		err error
	)

	index, path, isIndex := ParseSelector(selector)

	if isIndex {
		vc, err = gocv.VideoCaptureDevice(index)
	} else {
		vc, err = gocv.VideoCaptureFile(path)
	}

	if err != nil {
		// gocv returns the handle even when opening failed
		if vc != nil {
			vc.Close()
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, selector, err)
	}

	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, selector)
	}

	if isIndex {
		// keep latency low on live devices
		vc.Set(gocv.VideoCaptureBufferSize, 1)
	}

	if readTimeout > 0 {
		vc.Set(videoCaptureReadTimeoutMsec, float64(readTimeout.Milliseconds()))
	}

	return NewDevice(vc, selector), nil
}

// NewDevice wraps an already opened Capture.  Frame dimensions are read from
// the capture properties.
func NewDevice(capture Capture, selector string) *Device {
	return &Device{
		capture:  capture,
		selector: selector,
		width:    int(capture.Get(gocv.VideoCaptureFrameWidth)),
		height:   int(capture.Get(gocv.VideoCaptureFrameHeight)),
	}
}

// Width returns the frame width reported by the device
func (d *Device) Width() int {
	return d.width
}

// Height returns the frame height reported by the device
func (d *Device) Height() int {
	return d.height
}

// Selector returns the selector the device was opened with
func (d *Device) Selector() string {
	return d.selector
}

// Close releases a Device that no Source owns.  Devices owned by a Source are
// released through that Source.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.owner != nil {
		return ErrNotOwner
	}

	return d.closeLocked()
}

// acquire takes ownership of an unowned device
func (d *Device) acquire() (*lease, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrReleased
	}

	if d.owner != nil {
		return nil, ErrNotOwner
	}

	d.owner = newLease()
	return d.owner, nil
}

// transfer moves ownership from the given lease to a new one
func (d *Device) transfer(from *lease) (*lease, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.closed:
		return nil, ErrReleased
	case d.abandoned:
		return nil, ErrForcedTermination
	case d.owner != from:
		return nil, ErrNotOwner
	}

	d.owner = newLease()
	return d.owner, nil
}

// revert hands ownership back to a previous lease, used when a handoff could
// not stop the loop still reading from the device.  If that loop exited in
// the meantime its release found the device transferred, so the device is
// closed here on its behalf.
func (d *Device) revert(from, to *lease) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.owner != from {
		return nil
	}

	d.owner = to

	if !to.released {
		return nil
	}

	d.owner = nil
	return d.closeLocked()
}

// abandon marks the device as unusable for further handoffs
func (d *Device) abandon() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.abandoned = true
}

// owns reports if the lease is the current owner
func (d *Device) owns(l *lease) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return !d.closed && d.owner == l
}

// release closes the device if the lease still owns it.  Releasing through a
// stale lease is a no-op so a handed off device is never closed twice.
func (d *Device) release(l *lease) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	l.released = true

	if d.closed || d.owner != l {
		return nil
	}

	d.owner = nil
	return d.closeLocked()
}

func (d *Device) closeLocked() error {

	if d.closed {
		return nil
	}

	d.closed = true

	if err := d.capture.Close(); err != nil {
		return fmt.Errorf("error closing capture %s: %w", d.selector, err)
	}

	return nil
}
