package waveform

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"

	"github.com/quakeflow/quakeflow/internal/errors"
)

// Window is an optional half-open [Start, End) load interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// Info describes a waveform file without reading its samples. Used to
// discover the available time range cheaply before a windowed load.
type Info struct {
	Start        time.Time
	End          time.Time
	SamplingRate float64
	Channels     int
	TotalSamples int // per channel
}

// Reader loads waveform files into streams. Implementations exist per file
// format; the rest of the pipeline only sees Stream.
type Reader interface {
	// Probe performs a header-only read.
	Probe(path string) (Info, error)
	// Read loads the file, optionally restricted to a time window.
	Read(path string, window *Window) (Stream, error)
}

// WAVReader reads PCM WAV recordings, the export format of low-cost sensor
// nodes. WAV carries no absolute timestamp, so the file's modification time
// is taken as the recording end and the start is derived from the duration.
type WAVReader struct{}

// NewWAVReader creates a WAV-backed waveform reader.
func NewWAVReader() *WAVReader {
	return &WAVReader{}
}

// channelCodes maps channel index to a SEED-style component code.
var channelCodes = []string{"HHZ", "HHN", "HHE"}

func channelCode(i int) string {
	if i < len(channelCodes) {
		return channelCodes[i]
	}
	return "HH" + string(rune('0'+i))
}

// stationFromPath derives a station code from the file name stem.
func stationFromPath(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var b strings.Builder
	for _, r := range strings.ToUpper(stem) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() == 5 {
			break
		}
	}
	if b.Len() == 0 {
		return "XXXXX"
	}
	return b.String()
}

func (r *WAVReader) open(path string) (*os.File, *wav.Decoder, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.New(err).
			Component("waveform").
			Category(errors.CategoryWaveformIO).
			Context("path", path).
			Build()
	}

	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		_ = file.Close()
		return nil, nil, errors.Newf("%s is not a valid WAV file", filepath.Base(path)).
			Component("waveform").
			Category(errors.CategoryWaveformIO).
			Build()
	}
	return file, decoder, nil
}

// Probe implements the header-only read of the Reader interface.
func (r *WAVReader) Probe(path string) (Info, error) {
	file, decoder, err := r.open(path)
	if err != nil {
		return Info{}, err
	}
	defer file.Close()

	duration, err := decoder.Duration()
	if err != nil {
		return Info{}, errors.New(err).
			Component("waveform").
			Category(errors.CategoryWaveformIO).
			Context("path", path).
			Build()
	}

	stat, err := file.Stat()
	if err != nil {
		return Info{}, errors.New(err).
			Component("waveform").
			Category(errors.CategoryWaveformIO).
			Build()
	}

	end := stat.ModTime().UTC().Truncate(time.Millisecond)
	start := end.Add(-duration)
	samplingRate := float64(decoder.SampleRate)

	return Info{
		Start:        start,
		End:          end,
		SamplingRate: samplingRate,
		Channels:     int(decoder.NumChans),
		TotalSamples: int(duration.Seconds() * samplingRate),
	}, nil
}

// Read implements the Reader interface. The full file is decoded and then
// sliced to the window; WAV offers no cheap partial decode.
func (r *WAVReader) Read(path string, window *Window) (Stream, error) {
	info, err := r.Probe(path)
	if err != nil {
		return nil, err
	}

	file, decoder, err := r.open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, errors.New(err).
			Component("waveform").
			Category(errors.CategoryWaveformIO).
			Context("path", path).
			Build()
	}

	var divisor float64
	switch decoder.BitDepth {
	case 8:
		divisor = 128.0
	case 16:
		divisor = 32768.0
	case 24:
		divisor = 8388608.0
	case 32:
		divisor = 2147483648.0
	default:
		return nil, errors.Newf("unsupported WAV bit depth %d", decoder.BitDepth).
			Component("waveform").
			Category(errors.CategoryWaveformIO).
			Build()
	}

	channels := int(decoder.NumChans)
	if channels < 1 {
		return nil, errors.Newf("WAV file reports no channels").
			Component("waveform").
			Category(errors.CategoryWaveformIO).
			Build()
	}

	station := stationFromPath(path)
	frames := len(buf.Data) / channels

	stream := make(Stream, 0, channels)
	for ch := 0; ch < channels; ch++ {
		samples := make([]float64, frames)
		for i := 0; i < frames; i++ {
			samples[i] = float64(buf.Data[i*channels+ch]) / divisor
		}
		stream = append(stream, &Trace{
			ID:           "QF." + station + ".." + channelCode(ch),
			StartTime:    info.Start,
			SamplingRate: info.SamplingRate,
			Samples:      samples,
		})
	}

	if window != nil {
		sliced := stream.Slice(window.Start, window.End)
		if len(sliced) == 0 {
			return nil, errors.Newf("time window [%s, %s) contains no data",
				window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339)).
				Component("waveform").
				Category(errors.CategoryValidation).
				Build()
		}
		// Copy out of the full decode so the windowed stream owns its data.
		for i, tr := range sliced {
			copied := make([]float64, len(tr.Samples))
			copy(copied, tr.Samples)
			sliced[i] = &Trace{
				ID:           tr.ID,
				StartTime:    tr.StartTime,
				SamplingRate: tr.SamplingRate,
				Samples:      copied,
			}
		}
		return sliced, nil
	}
	return stream, nil
}
