package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
)

var ErrUnsupportedAudio = errors.New("unsupported audio format")

// Audio follows the position of a track playing on the speaker. The
// speaker only reports progress once per buffer, so readings between
// buffers are interpolated from the wall clock.
type Audio struct {
	mu       sync.Mutex
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	rate     float64
	buffer   time.Duration
	ended    chan struct{}
	once     sync.Once
	logger   *slog.Logger

	lastPos int
	lastAt  time.Time
}

func decode(file string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(file)
	if nil != err {
		return nil, beep.Format{}, fmt.Errorf("unable to open audio %s: %w", file, err)
	}
	var streamer beep.StreamSeekCloser
	var format beep.Format
	switch strings.ToLower(filepath.Ext(file)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	default:
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("%w: %s", ErrUnsupportedAudio, file)
	}
	if nil != err {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("unable to decode audio %s: %w", file, err)
	}
	return streamer, format, nil
}

// OpenAudio decodes file and prepares it paused on the speaker. Playing the
// speaker at rate times the track's sample rate changes the playback speed,
// positions stay in track time.
func OpenAudio(file string, rate float64, logger *slog.Logger) (*Audio, error) {
	if nil == logger {
		logger = slog.Default()
	}
	if rate <= 0 {
		rate = 1
	}
	streamer, format, err := decode(file)
	if nil != err {
		return nil, err
	}

	buffer := time.Second / 60
	if err := speaker.Init(beep.SampleRate(math.Round(float64(format.SampleRate)*rate)), format.SampleRate.N(buffer)); nil != err {
		streamer.Close()
		return nil, fmt.Errorf("unable to initialise speaker: %w", err)
	}

	a := &Audio{
		streamer: streamer,
		format:   format,
		ctrl:     &beep.Ctrl{Streamer: streamer, Paused: true},
		rate:     rate,
		buffer:   buffer,
		ended:    make(chan struct{}),
		logger:   logger.With(slog.String("audio", filepath.Base(file))),
	}
	speaker.Play(beep.Seq(a.ctrl, beep.Callback(func() {
		a.once.Do(func() { close(a.ended) })
	})))
	a.logger.Info("audio opened",
		slog.Int("sample_rate", int(format.SampleRate)),
		slog.Duration("length", format.SampleRate.D(streamer.Len())),
	)
	return a, nil
}

// LengthMs is the track length.
func (a *Audio) LengthMs() int64 {
	return a.format.SampleRate.D(a.streamer.Len()).Milliseconds()
}

func (a *Audio) NowMs() int64 {
	speaker.Lock()
	pos := a.streamer.Position()
	paused := a.ctrl.Paused
	speaker.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now()
	ms := a.format.SampleRate.D(pos).Milliseconds()
	if pos != a.lastPos || paused {
		a.lastPos, a.lastAt = pos, now
		return ms
	}
	ahead := time.Duration(float64(now.Sub(a.lastAt)) * a.rate)
	if ahead > a.buffer {
		ahead = a.buffer
	}
	return ms + ahead.Milliseconds()
}

func (a *Audio) Seek(ms int64) error {
	n := a.format.SampleRate.N(time.Duration(ms) * time.Millisecond)
	speaker.Lock()
	defer speaker.Unlock()
	n = max(0, min(n, a.streamer.Len()-1))
	if err := a.streamer.Seek(n); nil != err {
		return fmt.Errorf("unable to seek audio: %w", err)
	}
	return nil
}

func (a *Audio) Play() {
	speaker.Lock()
	a.ctrl.Paused = false
	speaker.Unlock()
}

func (a *Audio) Pause() {
	speaker.Lock()
	a.ctrl.Paused = true
	speaker.Unlock()
}

func (a *Audio) Playing() bool {
	speaker.Lock()
	defer speaker.Unlock()
	return !a.ctrl.Paused
}

func (a *Audio) Ended() <-chan struct{} {
	return a.ended
}

// Close stops playback and releases the decoder.
func (a *Audio) Close() error {
	speaker.Clear()
	if err := a.streamer.Close(); nil != err {
		return fmt.Errorf("unable to close audio: %w", err)
	}
	return nil
}
