//go:build linux

// Package prober reads current capture-device resolution and signal
// presence via direct V4L2 ioctls: open the device, issue VIDIOC_*
// ioctls through unix.Syscall, and never cache results — every call
// re-queries the device so callers always see its current state.
package prober

import (
	"context"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	// VIDIOC_G_FMT = _IOWR('V', 4, struct v4l2_format)
	// struct v4l2_format is 208 bytes on 64-bit (type + union padded to 200).
	vidiocGFmt = 0xc0d05604

	// VIDIOC_QUERYCAP = _IOR('V', 0, struct v4l2_capability)
	vidiocQueryCap = 0x80685600

	v4l2BufTypeVideoCapture = 1
)

// v4l2PixFormat mirrors struct v4l2_pix_format.
type v4l2PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
	Colorspace   uint32
	Priv         uint32
	Flags        uint32
	YcbcrEnc     uint32
	Quantization uint32
	XferFunc     uint32
}

// v4l2Format mirrors struct v4l2_format (the union is sized to its
// largest variant, 200 bytes; v4l2PixFormat is smaller, so it's padded).
type v4l2Format struct {
	Type uint32
	_    uint32 // alignment padding before the union on amd64/arm64
	Fmt  [200]byte
}

// v4l2Capability mirrors struct v4l2_capability.
type v4l2Capability struct {
	Driver       [16]byte
	Card         [32]byte
	BusInfo      [32]byte
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
	Reserved     [3]uint32
}

// Result is the outcome of probing one device.
type Result struct {
	Width, Height int
	HasSignal     bool
}

// Probe queries device for its current negotiated resolution and
// whether a signal is present, bounded by the given timeout. Failure
// modes (device missing, probe timeout, unreadable) all return a zero
// Result with no error — callers treat a zero Result as "no_signal",
// not a fatal condition.
func Probe(ctx context.Context, device string, timeout time.Duration) Result {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res Result
	}
	ch := make(chan outcome, 1)

	go func() {
		ch <- outcome{res: probeNow(device)}
	}()

	select {
	case o := <-ch:
		return o.res
	case <-ctx.Done():
		return Result{}
	}
}

func probeNow(device string) Result {
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return Result{}
	}
	defer f.Close()

	var cap v4l2Capability
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), vidiocQueryCap, uintptr(unsafe.Pointer(&cap))); errno != 0 {
		return Result{}
	}

	var format v4l2Format
	format.Type = v4l2BufTypeVideoCapture
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), vidiocGFmt, uintptr(unsafe.Pointer(&format))); errno != 0 {
		return Result{}
	}

	pix := (*v4l2PixFormat)(unsafe.Pointer(&format.Fmt[0]))
	if pix.Width == 0 || pix.Height == 0 {
		return Result{}
	}

	return Result{Width: int(pix.Width), Height: int(pix.Height), HasSignal: true}
}
