// Package recorder wraps microphone capture and encoding in a three
// state machine (idle, arming, recording). A finished recording becomes a
// plain BinarySource and enters the attachment pipeline exactly like a
// dropped file.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/openteam-dev/openteam-go/shared/domain"
)

// State of the capture machine.
type State string

const (
	StateIdle State = "idle"
	// StateArming covers asynchronous device permission acquisition and
	// encoder initialization. It may fall back to idle on failure.
	StateArming    State = "arming"
	StateRecording State = "recording"
)

var (
	// ErrPermissionDenied is returned by devices when microphone access
	// was refused.
	ErrPermissionDenied = errors.New("microphone access denied")
	// ErrNoSupportedEncoding is returned by devices when none of the
	// preferred encodings is available.
	ErrNoSupportedEncoding = errors.New("no supported audio encoding")
	// ErrNotIdle rejects a start request while a session is active.
	ErrNotIdle = errors.New("recorder is not idle")
)

// Device abstracts microphone plus encoder acquisition. Open blocks until
// the device confirmed capture start (or permission was denied) and must
// honor ctx cancellation.
type Device interface {
	Open(ctx context.Context, preferredTypes []string) (Stream, error)
}

// Stream is one live capture session. Chunks delivers encoded data until
// Close; Close releases the underlying device and is idempotent.
type Stream interface {
	Chunks() <-chan []byte
	MimeType() string
	Close() error
}

// Recorder owns the device handle for the duration of one session and
// releases it on every exit path.
type Recorder struct {
	device    Device
	preferred []string
	sink      func(domain.BinarySource)
	notify    domain.Notifier
	logger    *slog.Logger

	mu        sync.Mutex
	state     State
	// gen stamps each Start; an arming goroutine belongs to exactly one
	// generation and must not touch the machine once a newer one exists.
	gen       uint64
	cancelArm context.CancelFunc
	session   *session
}

type session struct {
	stream    Stream
	closeOnce sync.Once
	discard   bool
	done      chan struct{}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		_ = s.stream.Close()
	})
}

// New creates a recorder. sink receives the finalized recording; it runs
// on the recorder's consume goroutine.
func New(device Device, preferredTypes []string, sink func(domain.BinarySource), notify domain.Notifier, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{
		device:    device,
		preferred: preferredTypes,
		sink:      sink,
		notify:    notify,
		logger:    log.With(slog.String("component", "recorder")),
		state:     StateIdle,
	}
}

// State returns the current machine state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start moves idle -> arming and acquires the device asynchronously.
// Recording begins once the device confirms; failures surface a
// notification and fall back to idle.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return ErrNotIdle
	}
	armCtx, cancel := context.WithCancel(ctx)
	r.gen++
	gen := r.gen
	r.state = StateArming
	r.cancelArm = cancel
	r.mu.Unlock()

	go r.arm(armCtx, gen)
	return nil
}

func (r *Recorder) arm(ctx context.Context, gen uint64) {
	stream, err := r.device.Open(ctx, r.preferred)

	r.mu.Lock()
	if r.gen != gen || r.state != StateArming {
		// Stopped while arming, possibly with a newer session already
		// underway: no output, release whatever was acquired and leave
		// the machine alone.
		r.mu.Unlock()
		if stream != nil {
			_ = stream.Close()
		}
		return
	}

	if err != nil {
		r.state = StateIdle
		r.cancelArm = nil
		r.mu.Unlock()
		r.logger.Warn("failed to start recording", slog.Any("error", err))
		if r.notify != nil {
			r.notify.Error("Failed to access microphone")
		}
		return
	}

	sess := &session{stream: stream, done: make(chan struct{})}
	r.state = StateRecording
	r.session = sess
	r.cancelArm = nil
	r.mu.Unlock()

	go r.consume(sess)
}

// consume buffers encoded chunks until the stream closes, then finalizes
// the recording. An empty buffer is discarded.
func (r *Recorder) consume(sess *session) {
	defer close(sess.done)

	var chunks [][]byte
	for chunk := range sess.stream.Chunks() {
		if len(chunk) > 0 {
			chunks = append(chunks, chunk)
		}
	}
	// Stream ended (stop or device failure); the machine goes idle either way.
	sess.close()

	r.mu.Lock()
	if r.session == sess {
		r.session = nil
		r.state = StateIdle
	}
	r.mu.Unlock()

	if sess.discard {
		return
	}

	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total == 0 {
		return
	}

	buf := make([]byte, 0, total)
	for _, c := range chunks {
		buf = append(buf, c...)
	}

	mimeType := sess.stream.MimeType()
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	if r.sink != nil {
		r.sink(domain.BinarySource{
			Bytes:         buf,
			ContentType:   mimeType,
			SuggestedName: recordingName(mimeType),
		})
	}
}

// Stop requests the end of the current session. During arming it cancels
// acquisition without producing output; during recording it finalizes the
// buffer and, if non-empty, hands it to the sink. No-op when idle.
func (r *Recorder) Stop() {
	r.mu.Lock()
	switch r.state {
	case StateArming:
		r.state = StateIdle
		if r.cancelArm != nil {
			r.cancelArm()
			r.cancelArm = nil
		}
		r.mu.Unlock()
	case StateRecording:
		sess := r.session
		r.mu.Unlock()
		sess.close()
	default:
		r.mu.Unlock()
	}
}

// Close is the teardown path: any active session is stopped and its
// output discarded, and the device handle is released. Blocks briefly
// until an active consume loop finishes.
func (r *Recorder) Close() {
	r.mu.Lock()
	sess := r.session
	if sess != nil {
		sess.discard = true
	}
	r.mu.Unlock()

	r.Stop()

	if sess != nil {
		select {
		case <-sess.done:
		case <-time.After(time.Second):
			r.logger.Warn("recorder session did not settle on close")
		}
	}
}

func recordingName(mimeType string) string {
	ext := "webm"
	if strings.Contains(mimeType, "mp4") {
		ext = "m4a"
	}
	return fmt.Sprintf("recording-%d.%s", time.Now().UnixMilli(), ext)
}
