package device

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/tldr-it-stepankutaj/lunapad/internal/xinput"
)

// FrameKind tells what happened to a recorded controller.
type FrameKind uint8

const (
	FramePlug FrameKind = iota + 1
	FrameUpdate
	FrameUnplug
)

func (k FrameKind) String() string {
	switch k {
	case FramePlug:
		return "plug"
	case FrameUpdate:
		return "update"
	case FrameUnplug:
		return "unplug"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Frame is one entry of a recording.
type Frame struct {
	Seq       uint64              `cbor:"1,keyasint"`
	Timestamp time.Time           `cbor:"2,keyasint"`
	Owner     string              `cbor:"3,keyasint"`
	Kind      FrameKind           `cbor:"4,keyasint"`
	State     xinput.Capabilities `cbor:"5,keyasint"`
}

var (
	frameEncMode cbor.EncMode
	frameDecMode cbor.DecMode
)

func init() {
	var err error
	frameEncMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create frame CBOR encoder mode: %v", err))
	}
	frameDecMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create frame CBOR decoder mode: %v", err))
	}
}

// Recorder is a driver that appends every plug, update and unplug to a
// CBOR stream. It is safe for concurrent use.
type Recorder struct {
	closer  io.Closer
	encoder *cbor.Encoder
	now     func() time.Time

	mu     sync.Mutex
	seq    uint64
	closed bool
}

// NewRecorder creates (or appends to) the recording file at path.
func NewRecorder(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open recording %s: %w", path, err)
	}
	r := NewStreamRecorder(f)
	r.closer = f
	return r, nil
}

// NewStreamRecorder records into w. Close does not close w.
func NewStreamRecorder(w io.Writer) *Recorder {
	return &Recorder{
		encoder: frameEncMode.NewEncoder(w),
		now:     time.Now,
	}
}

func (r *Recorder) Plug(owner string) (Controller, error) {
	if err := r.write(owner, FramePlug, xinput.Default()); err != nil {
		return nil, err
	}
	return &recordedController{owner: owner, rec: r}, nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func (r *Recorder) write(owner string, kind FrameKind, state xinput.Capabilities) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("recorder closed")
	}
	r.seq++
	frame := Frame{
		Seq:       r.seq,
		Timestamp: r.now().UTC(),
		Owner:     owner,
		Kind:      kind,
		State:     state,
	}
	if err := r.encoder.Encode(frame); err != nil {
		return fmt.Errorf("encode frame %d: %w", r.seq, err)
	}
	return nil
}

type recordedController struct {
	owner     string
	rec       *Recorder
	unplugged bool
}

func (c *recordedController) Update(state xinput.Capabilities) error {
	if c.unplugged {
		return ErrUnplugged
	}
	return c.rec.write(c.owner, FrameUpdate, state)
}

// Feedback is always zero: recordings have no host to request rumble.
func (c *recordedController) Feedback() (float32, float32) { return 0, 0 }

func (c *recordedController) Unplug() error {
	if c.unplugged {
		return nil
	}
	c.unplugged = true
	return c.rec.write(c.owner, FrameUnplug, xinput.Capabilities{})
}

// RecordingReader streams frames back from a recording.
type RecordingReader struct {
	file    *os.File
	decoder *cbor.Decoder
	owner   string
}

// OpenRecording opens a recording. A non-empty owner keeps only that
// module's frames.
func OpenRecording(path, owner string) (*RecordingReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &RecordingReader{
		file:    f,
		decoder: frameDecMode.NewDecoder(f),
		owner:   owner,
	}, nil
}

// Next returns the next frame, or io.EOF at the end of the recording.
func (r *RecordingReader) Next() (Frame, error) {
	for {
		var frame Frame
		if err := r.decoder.Decode(&frame); err != nil {
			return Frame{}, err
		}
		if r.owner == "" || frame.Owner == r.owner {
			return frame, nil
		}
	}
}

func (r *RecordingReader) Close() error {
	return r.file.Close()
}

// ReadRecording loads every frame of a recording into memory.
func ReadRecording(path, owner string) ([]Frame, error) {
	r, err := OpenRecording(path, owner)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var frames []Frame
	for {
		frame, err := r.Next()
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return frames, fmt.Errorf("read frame after seq %d: %w", len(frames), err)
		}
		frames = append(frames, frame)
	}
}
