// Package camera supplies frames to the capture controller, from a video
// device or from image files on disk.
package camera

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"card-scanner/internal/card"
	"card-scanner/internal/cvimage"

	"gocv.io/x/gocv"
)

// Device reads frames from a camera or video file.
type Device struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	mat     gocv.Mat
	name    string
}

// OpenDevice opens a video source. name is a camera index ("0"), a file
// path, or a stream URL.
func OpenDevice(name string) (*Device, error) {
	var capture *gocv.VideoCapture
	var err error
	if id, convErr := strconv.Atoi(name); convErr == nil {
		capture, err = gocv.VideoCaptureDevice(id)
	} else if _, statErr := os.Stat(name); statErr == nil {
		capture, err = gocv.VideoCaptureFile(name)
	} else {
		capture, err = gocv.OpenVideoCapture(name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open video capture %q: %w", name, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video capture %q is not opened", name)
	}

	log.Printf("Camera: opened %s", name)
	return &Device{capture: capture, mat: gocv.NewMat(), name: name}, nil
}

// Frame grabs the latest frame.
func (d *Device) Frame() (*card.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.capture == nil {
		return nil, fmt.Errorf("camera %s is closed", d.name)
	}

	if ok := d.capture.Read(&d.mat); !ok || d.mat.Empty() {
		return nil, fmt.Errorf("failed to read frame from %s", d.name)
	}
	img, err := cvimage.ToImage(d.mat)
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	return card.NewFrame(img, time.Now()), nil
}

// Close releases the device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.capture == nil {
		return nil
	}
	d.mat.Close()
	err := d.capture.Close()
	d.capture = nil
	return err
}
