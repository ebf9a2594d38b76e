package camera

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/kartenwerk/schallpappenspieler/internal/monitoring"
)

// GstConfig configures the GStreamer capture pipeline.
type GstConfig struct {
	Device string  // V4L2 device path, e.g. /dev/video0
	Width  int     // Desired frame width
	Height int     // Desired frame height
	FPS    float64 // Target frame rate
}

// GstSource captures frames from a V4L2 webcam through GStreamer.
//
// Pipeline structure:
//
//	v4l2src → videoconvert → videorate → capsfilter(RGB,w,h,fps) → appsink
//
// The appsink keeps only the latest buffer (max-buffers=1, drop=true): the
// device never stalls because a consumer is slow, which is the same
// latest-wins policy the rest of the pipeline uses.
type GstSource struct {
	pipeline *gst.Pipeline
	sink     *app.Sink
	width    int
	height   int
}

// ErrSourceClosed is returned by Read after Close or end-of-stream.
var ErrSourceClosed = errors.New("camera: source closed")

// NewGstSource builds and starts the capture pipeline.
func NewGstSource(cfg GstConfig) (*GstSource, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("camera: create pipeline: %w", err)
	}

	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return nil, fmt.Errorf("camera: create v4l2src: %w", err)
	}
	src.SetProperty("device", cfg.Device)

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("camera: create videoconvert: %w", err)
	}

	rate, err := gst.NewElement("videorate")
	if err != nil {
		return nil, fmt.Errorf("camera: create videorate: %w", err)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("camera: create capsfilter: %w", err)
	}
	capsStr := fmt.Sprintf("video/x-raw,format=RGB,width=%d,height=%d,framerate=%d/1",
		cfg.Width, cfg.Height, int(cfg.FPS))
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	sink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("camera: create appsink: %w", err)
	}
	sink.SetProperty("sync", false)    // real-time, no clock sync
	sink.SetProperty("max-buffers", 1) // keep only the latest frame
	sink.SetProperty("drop", true)

	pipeline.AddMany(src, convert, rate, capsfilter, sink.Element)
	if err := gst.ElementLinkMany(src, convert, rate, capsfilter, sink.Element); err != nil {
		return nil, fmt.Errorf("camera: link pipeline: %w", err)
	}

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, fmt.Errorf("camera: start pipeline: %w", err)
	}

	monitoring.Logf("camera: capture started on %s (%dx%d @ %.0f fps)",
		cfg.Device, cfg.Width, cfg.Height, cfg.FPS)

	return &GstSource{
		pipeline: pipeline,
		sink:     sink,
		width:    cfg.Width,
		height:   cfg.Height,
	}, nil
}

// Read blocks until the next frame arrives on the appsink and returns it as
// an RGBA image. It returns ErrSourceClosed once the stream has ended.
func (s *GstSource) Read() (Frame, error) {
	sample := s.sink.PullSample()
	if sample == nil {
		if s.sink.IsEOS() {
			return Frame{}, ErrSourceClosed
		}
		return Frame{}, errors.New("camera: pull sample failed")
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return Frame{}, errors.New("camera: sample has no buffer")
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) < s.width*s.height*3 {
		buffer.Unmap()
		return Frame{}, fmt.Errorf("camera: short buffer: %d bytes for %dx%d RGB", len(data), s.width, s.height)
	}

	img := rgbToRGBA(data, s.width, s.height)
	buffer.Unmap()

	return Frame{Image: img, Stamp: time.Now()}, nil
}

// Close stops the pipeline and releases the device.
func (s *GstSource) Close() error {
	if err := s.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("camera: stop pipeline: %w", err)
	}
	return nil
}

// rgbToRGBA copies packed RGB24 pixel data into an image.RGBA. GStreamer
// reuses its buffers, so the copy is mandatory.
func rgbToRGBA(data []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		srcRow := data[y*width*3:]
		dstRow := img.Pix[y*img.Stride:]
		for x := 0; x < width; x++ {
			dstRow[x*4+0] = srcRow[x*3+0]
			dstRow[x*4+1] = srcRow[x*3+1]
			dstRow[x*4+2] = srcRow[x*3+2]
			dstRow[x*4+3] = 0xff
		}
	}
	return img
}
