// Pulsewatch
// Copyright (c) 2026 The Pulsewatch Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Pulsewatch.
//
// Pulsewatch is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Pulsewatch is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Pulsewatch.  If not, see <http://www.gnu.org/licenses/>.

// Package audio plays alert sounds: generated tones or a user supplied file.
package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/generators"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/pulsewatch/pulsewatch/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

// OutputRate is the sample rate everything is resampled to before playback.
const OutputRate = beep.SampleRate(48000)

// Tone is a repeated sine beep.
type Tone struct {
	Frequency float64
	Duration  time.Duration
	Gap       time.Duration
	Count     int
}

var (
	// SpO2AlertTone is played when blood oxygen stays low.
	SpO2AlertTone = Tone{Frequency: 880, Duration: 200 * time.Millisecond, Gap: 100 * time.Millisecond, Count: 3}
	// HRAlertTone is played when the heart rate stays out of range.
	HRAlertTone = Tone{Frequency: 660, Duration: 300 * time.Millisecond, Gap: 150 * time.Millisecond, Count: 2}
)

// Streamer renders the tone at sample rate sr.
func (t Tone) Streamer(sr beep.SampleRate) (beep.Streamer, error) {
	if t.Count <= 0 || t.Duration <= 0 {
		return nil, fmt.Errorf("invalid tone: %d beeps of %s", t.Count, t.Duration)
	}
	if t.Frequency <= 0 {
		return nil, fmt.Errorf("invalid tone frequency: %.0f Hz", t.Frequency)
	}

	parts := make([]beep.Streamer, 0, 2*t.Count-1)
	for i := range t.Count {
		sine, err := generators.SineTone(sr, t.Frequency)
		if err != nil {
			return nil, fmt.Errorf("failed to generate %.0f Hz tone: %w", t.Frequency, err)
		}
		parts = append(parts, beep.Take(sr.N(t.Duration), sine))
		if i < t.Count-1 && t.Gap > 0 {
			parts = append(parts, beep.Silence(sr.N(t.Gap)))
		}
	}

	// full scale sine is unpleasantly loud
	return &effects.Volume{Streamer: beep.Seq(parts...), Base: 2, Volume: -1}, nil
}

// Player plays alert sounds without blocking the caller.
type Player interface {
	PlayTone(tone Tone) error
	PlayFile(path string) error
	ClearFileCache()
}

type outputFunc func(ctx context.Context, streamer beep.Streamer) error

// MalgoPlayer implements Player with malgo as the output device. Starting a
// sound cancels whatever is still playing.
type MalgoPlayer struct {
	output        outputFunc
	currentCancel context.CancelFunc
	fileCache     map[string][]byte
	playbackGen   uint64
	fileCacheMu   syncutil.RWMutex
	playbackMu    syncutil.Mutex
}

// NewMalgoPlayer creates a new MalgoPlayer instance.
func NewMalgoPlayer() *MalgoPlayer {
	return &MalgoPlayer{
		output:    playWithMalgo,
		fileCache: make(map[string][]byte),
	}
}

// PlayTone plays a generated tone asynchronously.
func (p *MalgoPlayer) PlayTone(tone Tone) error {
	streamer, err := tone.Streamer(OutputRate)
	if err != nil {
		return err
	}
	p.start(streamer, nil, fmt.Sprintf("%.0fHz tone", tone.Frequency))
	return nil
}

// PlayFile plays an audio file asynchronously, picking the decoder by
// extension. File bytes are cached so repeated alerts don't hit the disk.
func (p *MalgoPlayer) PlayFile(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".wav", ".mp3", ".ogg", ".flac":
	default:
		return fmt.Errorf("unsupported audio format: %q (supported: .wav, .mp3, .ogg, .flac)", ext)
	}

	data, err := p.readFileWithCache(path)
	if err != nil {
		return fmt.Errorf("failed to read audio file: %w", err)
	}

	streamer, format, err := decode(ext, data)
	if err != nil {
		return fmt.Errorf("failed to decode audio file: %w", err)
	}

	resampled := beep.Resample(4, format.SampleRate, OutputRate, streamer)
	p.start(resampled, func() {
		if err := streamer.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close audio streamer")
		}
	}, path)
	return nil
}

func decode(ext string, data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)
	switch ext {
	case ".wav":
		streamer, format, err = wav.Decode(bytes.NewReader(data))
	case ".mp3":
		streamer, format, err = mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	case ".ogg":
		streamer, format, err = vorbis.Decode(io.NopCloser(bytes.NewReader(data)))
	case ".flac":
		streamer, format, err = flac.Decode(bytes.NewReader(data))
	default:
		err = fmt.Errorf("unsupported audio format: %q", ext)
	}
	if err != nil {
		return nil, beep.Format{}, err //nolint:wrapcheck // wrapped by PlayFile
	}
	return streamer, format, nil
}

func (p *MalgoPlayer) start(streamer beep.Streamer, cleanup func(), label string) {
	p.playbackMu.Lock()
	if p.currentCancel != nil {
		p.currentCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.currentCancel = cancel
	p.playbackGen++
	thisGen := p.playbackGen
	p.playbackMu.Unlock()

	go func() {
		defer func() {
			if cleanup != nil {
				cleanup()
			}
			p.playbackMu.Lock()
			if p.playbackGen == thisGen {
				p.currentCancel = nil
			}
			p.playbackMu.Unlock()
			cancel()
		}()

		if err := p.output(ctx, streamer); err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Str("sound", label).Msg("failed to play audio")
			}
			return
		}

		log.Debug().Str("sound", label).Msg("completed audio playback")
	}()
}

func (p *MalgoPlayer) readFileWithCache(path string) ([]byte, error) {
	p.fileCacheMu.RLock()
	if cached, ok := p.fileCache[path]; ok {
		p.fileCacheMu.RUnlock()
		return cached, nil
	}
	p.fileCacheMu.RUnlock()

	//nolint:gosec // G304: the path comes from the user's own config
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	p.fileCacheMu.Lock()
	p.fileCache[path] = data
	p.fileCacheMu.Unlock()

	return data, nil
}

// ClearFileCache drops cached file bytes so a changed sound file is picked
// up. Called after a config reload.
func (p *MalgoPlayer) ClearFileCache() {
	p.fileCacheMu.Lock()
	defer p.fileCacheMu.Unlock()
	p.fileCache = make(map[string][]byte)
}

// playWithMalgo plays samples through the default output device, blocking
// until the streamer drains or ctx is cancelled.
func playWithMalgo(ctx context.Context, streamer beep.Streamer) error {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	if malgoCtx == nil {
		return errors.New("malgo context is nil after initialization")
	}
	defer func() {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
	}()

	// F32 avoids miniaudio's S16 to S32 conversion on PulseAudio
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = 2
	deviceConfig.SampleRate = uint32(OutputRate)
	deviceConfig.Alsa.NoMMap = 1

	done := make(chan struct{})

	var (
		mu       syncutil.Mutex
		finished bool
		samples  [][2]float64
	)

	onSamples := func(pOutputSample, _ []byte, frameCount uint32) {
		mu.Lock()
		defer mu.Unlock()

		if finished {
			return
		}

		select {
		case <-ctx.Done():
			finished = true
			close(done)
			return
		default:
		}

		if len(samples) < int(frameCount) {
			samples = make([][2]float64, frameCount)
		}

		n, ok := streamer.Stream(samples[:frameCount])
		if !ok || n == 0 {
			finished = true
			close(done)
			return
		}

		offset := encodeF32(pOutputSample, samples[:n])
		for i := offset; i < len(pOutputSample); i++ {
			pOutputSample[i] = 0
		}
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize audio device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("failed to start audio device: %w", err)
	}

	select {
	case <-done:
	case <-ctx.Done():
		mu.Lock()
		finished = true
		mu.Unlock()
	}

	if err := device.Stop(); err != nil {
		log.Warn().Err(err).Msg("failed to stop audio device")
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return context.Canceled
	}
	return nil
}

// encodeF32 writes stereo samples as interleaved little endian float32 and
// returns the number of bytes written.
func encodeF32(dst []byte, samples [][2]float64) int {
	offset := 0
	for _, s := range samples {
		if offset+8 > len(dst) {
			break
		}
		binary.LittleEndian.PutUint32(dst[offset:], math.Float32bits(float32(s[0])))
		binary.LittleEndian.PutUint32(dst[offset+4:], math.Float32bits(float32(s[1])))
		offset += 8
	}
	return offset
}
