package ebitenaudio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/sinshu/go-meltysynth/meltysynth"
)

// ErrNoSoundFont はSoundFont無しでMIDIを再生しようとしたときのエラー
var ErrNoSoundFont = errors.New("SoundFont is required for MIDI playback")

// MIDIStream はEbitengine/audio用のio.Reader実装
// MIDIシーケンサーから16bitステレオのサンプルを生成する
type MIDIStream struct {
	sequencer   *meltysynth.MidiFileSequencer
	sampleCount int64
	stopped     bool
	mu          sync.Mutex
}

// NewMIDIStream はMIDIデータを解析し、指定したSoundFontの
// 新しいシンセサイザーでシーケンサーを開始する
func NewMIDIStream(sf *meltysynth.SoundFont, data []byte) (*MIDIStream, *meltysynth.MidiFile, error) {
	if sf == nil {
		return nil, nil, ErrNoSoundFont
	}

	midi, err := meltysynth.NewMidiFile(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	synth, err := meltysynth.NewSynthesizer(sf, meltysynth.NewSynthesizerSettings(SampleRate))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}

	seq := meltysynth.NewMidiFileSequencer(synth)
	seq.Play(midi, false)

	return &MIDIStream{sequencer: seq}, midi, nil
}

// Read はpに音声を書き込む。停止後は無音になる
func (s *MIDIStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.sequencer == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	// 16bitステレオ = 1サンプル4バイト
	samples := len(p) / 4
	if samples == 0 {
		return 0, nil
	}

	left := make([]float32, samples)
	right := make([]float32, samples)
	s.sequencer.Render(left, right)
	s.sampleCount += int64(samples)

	for i := range samples {
		l := int16(clamp(left[i], -1, 1) * 32767)
		r := int16(clamp(right[i], -1, 1) * 32767)
		binary.LittleEndian.PutUint16(p[i*4:], uint16(l))
		binary.LittleEndian.PutUint16(p[i*4+2:], uint16(r))
	}

	return samples * 4, nil
}

// Stop はストリームを停止状態にし、以降のReadは無音を返す
func (s *MIDIStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

// SampleCount は生成したサンプルの総数を返す
func (s *MIDIStream) SampleCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleCount
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// LoadSoundFont はSoundFont(.sf2)データを解析する
func LoadSoundFont(data []byte) (*meltysynth.SoundFont, error) {
	if len(data) == 0 {
		return nil, ErrNoSoundFont
	}
	sf, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SoundFont: %w", err)
	}
	return sf, nil
}
