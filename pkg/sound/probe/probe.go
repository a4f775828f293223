// Package probe は自分で長さを取得できないバックエンドのために
// エンコード済みサウンドファイルの長さを調べる
package probe

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/zurustar/flashstage/pkg/sound"
)

// ErrUnknownFormat は拡張子から形式を判定できない場合のエラー
var ErrUnknownFormat = errors.New("unknown sound format")

// Info は解析結果
type Info struct {
	Format     string
	Duration   time.Duration
	SampleRate int
	Channels   int
}

// Duration はファイル名の拡張子で形式を判定して長さを返す
func Duration(name string, data []byte) (time.Duration, error) {
	info, err := Probe(name, data)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

// Probe はファイル名の拡張子で形式を判定して解析する
func Probe(name string, data []byte) (Info, error) {
	switch ext := sound.Ext(name); ext {
	case "mp3":
		return probeMP3(data)
	case "ogg", "oga":
		return probeOgg(data)
	case "wav", "wave":
		return probeWAV(data)
	case "mid", "midi":
		return probeMIDI(data)
	default:
		return Info{}, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
}

func probeMP3(data []byte) (Info, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("failed to decode mp3: %w", err)
	}
	// go-mp3 は16bitステレオで出力する（1サンプル4バイト）
	samples := dec.Length() / 4
	return Info{
		Format:     "mp3",
		Duration:   samplesToDuration(samples, dec.SampleRate()),
		SampleRate: dec.SampleRate(),
		Channels:   2,
	}, nil
}

func probeOgg(data []byte) (Info, error) {
	length, format, err := oggvorbis.GetLength(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("failed to read ogg: %w", err)
	}
	return Info{
		Format:     "ogg",
		Duration:   samplesToDuration(length, format.SampleRate),
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
	}, nil
}

func probeWAV(data []byte) (Info, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if err := dec.FwdToPCM(); err != nil {
		return Info{}, fmt.Errorf("failed to read wav: %w", err)
	}
	bytesPerSec := int64(dec.SampleRate) * int64(dec.NumChans) * int64(dec.BitDepth) / 8
	if bytesPerSec <= 0 {
		return Info{}, fmt.Errorf("failed to read wav: invalid format header")
	}
	return Info{
		Format:     "wav",
		Duration:   time.Duration(int64(dec.PCMSize)) * time.Second / time.Duration(bytesPerSec),
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}, nil
}

func probeMIDI(data []byte) (Info, error) {
	midi, err := meltysynth.NewMidiFile(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("failed to parse midi: %w", err)
	}
	return Info{
		Format:   "midi",
		Duration: midi.GetLength(),
	}, nil
}

func samplesToDuration(samples int64, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// DurationFunc はデータ取得関数から sound.DurationFunc を作る
// 取得や解析に失敗した場合は0（不明）を返す
func DurationFunc(read func(src string) ([]byte, error)) sound.DurationFunc {
	return func(src string) time.Duration {
		data, err := read(src)
		if err != nil {
			return 0
		}
		d, err := Duration(src, data)
		if err != nil {
			return 0
		}
		return d
	}
}
