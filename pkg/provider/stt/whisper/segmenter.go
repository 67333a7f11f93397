package whisper

import "github.com/MrWong99/vigil/pkg/audio"

// segEvent tells the session what to do after a chunk was pushed.
type segEvent int

const (
	segNone segEvent = iota
	// segPartial asks for an interim transcription of the buffered speech.
	segPartial
	// segFinal marks the end of an utterance; the buffer must be taken.
	segFinal
)

// segmenter splits a PCM stream into utterances with an energy-based silence
// detector. whisper.cpp is a batch engine, so utterance boundaries have to be
// found on the client side.
type segmenter struct {
	rmsThreshold float64
	silenceMs    int
	maxMs        int
	partialMs    int
	bytesPerMs   int

	buf          []byte
	hadSpeech    bool
	silenceRun   int
	sincePartial int
}

func newSegmenter(sampleRate, silenceMs, maxMs, partialMs int, rmsThreshold float64) *segmenter {
	bpm := sampleRate * 2 / 1000
	if bpm <= 0 {
		bpm = 32
	}
	return &segmenter{
		rmsThreshold: rmsThreshold,
		silenceMs:    silenceMs,
		maxMs:        maxMs,
		partialMs:    partialMs,
		bytesPerMs:   bpm,
	}
}

// push appends one chunk and reports the resulting event. Leading silence is
// discarded so an utterance always starts with speech.
func (s *segmenter) push(chunk []byte) segEvent {
	ms := len(chunk) / s.bytesPerMs
	if audio.RMS(chunk) < s.rmsThreshold {
		if !s.hadSpeech {
			return segNone
		}
		s.buf = append(s.buf, chunk...)
		s.silenceRun += ms
		if s.silenceRun >= s.silenceMs {
			return segFinal
		}
		return segNone
	}

	s.hadSpeech = true
	s.silenceRun = 0
	s.buf = append(s.buf, chunk...)
	if s.maxMs > 0 && len(s.buf) >= s.maxMs*s.bytesPerMs {
		return segFinal
	}
	s.sincePartial += ms
	if s.partialMs > 0 && s.sincePartial >= s.partialMs {
		s.sincePartial = 0
		return segPartial
	}
	return segNone
}

// pending reports whether buffered speech is waiting to be transcribed.
func (s *segmenter) pending() bool { return s.hadSpeech && len(s.buf) > 0 }

// snapshot returns the buffered utterance without resetting it.
func (s *segmenter) snapshot() []byte { return s.buf }

// take returns the buffered utterance and resets the segmenter.
func (s *segmenter) take() []byte {
	pcm := s.buf
	s.buf = nil
	s.hadSpeech = false
	s.silenceRun = 0
	s.sincePartial = 0
	return pcm
}
