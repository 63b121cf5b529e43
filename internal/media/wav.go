package media

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

const (
	CanonicalSampleRate = 16000
	CanonicalChannels   = 1
	canonicalBitDepth   = 16
	wavFormatPCM        = 1
)

// VerifyCanonicalWAV checks that path is a 16-bit PCM mono 16 kHz WAV file.
func VerifyCanonicalWAV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return fmt.Errorf("%s: not a wav file", path)
	}
	switch {
	case d.WavAudioFormat != wavFormatPCM:
		return fmt.Errorf("%s: audio format %d, want PCM", path, d.WavAudioFormat)
	case d.NumChans != CanonicalChannels:
		return fmt.Errorf("%s: %d channels, want %d", path, d.NumChans, CanonicalChannels)
	case d.SampleRate != CanonicalSampleRate:
		return fmt.Errorf("%s: %d Hz, want %d", path, d.SampleRate, CanonicalSampleRate)
	case d.BitDepth != canonicalBitDepth:
		return fmt.Errorf("%s: %d bit, want %d", path, d.BitDepth, canonicalBitDepth)
	}
	return nil
}
