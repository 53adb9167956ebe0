package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"reelforge/internal/config"
	"reelforge/internal/fileutil"
	"reelforge/internal/media/wav"
)

func newWavCommand() *cobra.Command {
	format := wav.DefaultFormat()

	cmd := &cobra.Command{
		Use:         "wav <pcm-input|-> <output.wav>",
		Short:       "Wrap raw s16le PCM in a WAV container",
		Long:        "Wraps headerless little-endian PCM (for example speech synthesis output) in a\nRIFF/WAVE header. Pass - to read the samples from stdin.",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			pcm, err := readPCM(cmd.InOrStdin(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			target, err := config.ExpandPath(strings.TrimSpace(args[1]))
			if err != nil {
				return fmt.Errorf("resolve output path: %w", err)
			}

			var buf bytes.Buffer
			buf.Grow(wav.HeaderSize + len(pcm))
			if err := wav.Encode(&buf, pcm, format); err != nil {
				return err
			}
			if err := fileutil.WriteFileAtomic(target, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write wav: %w", err)
			}

			seconds := float64(len(pcm)) / float64(format.ByteRate())
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s, %d Hz, %d ch, %d-bit)\n",
				target, formatSeconds(seconds), format.SampleRate, format.Channels, format.BitsPerSample)
			return nil
		},
	}

	cmd.Flags().IntVar(&format.SampleRate, "rate", format.SampleRate, "Sample rate in Hz")
	cmd.Flags().IntVar(&format.Channels, "channels", format.Channels, "Channel count")
	cmd.Flags().IntVar(&format.BitsPerSample, "bits", format.BitsPerSample, "Bits per sample")
	return cmd
}

func readPCM(stdin io.Reader, source string) ([]byte, error) {
	if source == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read pcm from stdin: %w", err)
		}
		return data, nil
	}
	path, err := config.ExpandPath(source)
	if err != nil {
		return nil, fmt.Errorf("resolve input path: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pcm: %w", err)
	}
	return data, nil
}
