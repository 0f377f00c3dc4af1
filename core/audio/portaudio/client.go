package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log"

	"github.com/gordonklaus/portaudio"
	"github.com/voxturn/voxturn-core/core/audio"
)

// maxConsecutiveReadFailures is how many read errors in a row are tolerated
// before the stream is considered dead and capture fails for good.
const maxConsecutiveReadFailures = 3

// Client is a PortAudio-backed capture/playback device for hosts where the
// miniaudio backend is unavailable.
type Client struct {
	bufferSize    int
	stream        *portaudio.Stream
	leftoverAudio []byte

	in  []int16
	out []int16
}

func NewClient(bufferSize int) (*Client, error) {
	err := portaudio.Initialize()
	if err != nil {
		return nil, err
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, bufferSize, in, out)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		out:        out,
	}, nil
}

func (c *Client) Stream(ctx context.Context, onFrame func(frame []byte)) error {
	if err := c.stream.Start(); err != nil {
		return err
	}

	return c.captureLoop(ctx, c.stream.Read, onFrame)
}

// captureLoop reads device-sized frames until ctx is cancelled or the stream
// stops recovering. Transient read failures are retried; once they persist the
// device is gone and the error propagates so the session can end.
func (c *Client) captureLoop(ctx context.Context, read func() error, onFrame func(frame []byte)) error {
	consecutiveFailures := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := read(); err != nil {
			consecutiveFailures++
			if consecutiveFailures >= maxConsecutiveReadFailures {
				return fmt.Errorf("failed to read from PortAudio stream %d times in a row: %w", consecutiveFailures, err)
			}
			log.Printf("Failed to read from PortAudio stream: %v", err)
			continue
		}
		consecutiveFailures = 0

		audioBuffer := bytes.Buffer{}
		binary.Write(&audioBuffer, binary.LittleEndian, c.in)
		onFrame(audioBuffer.Bytes())
	}
}

func (c *Client) StopCapture() error {
	return c.stream.Stop()
}

func (c *Client) Close() {
	c.stream.Close()
	portaudio.Terminate()
}

// Play writes synthesized PCM to the output stream in device-sized chunks,
// holding back any partial trailing chunk until more audio arrives.
func (c *Client) Play(pcm []byte) error {
	bufferSize := c.bufferSize * 2

	pcm = append(c.leftoverAudio, pcm...)
	for i := range len(pcm)/bufferSize + 1 {
		if (i+1)*bufferSize > len(pcm) {
			c.leftoverAudio = make([]byte, len(pcm)-i*bufferSize)
			copy(c.leftoverAudio, pcm[i*bufferSize:])
			break
		}

		binary.Read(bytes.NewBuffer(pcm[i*bufferSize:(i+1)*bufferSize]), binary.LittleEndian, c.out)
		c.stream.Write()
	}

	return nil
}

// Drain pads the held-back tail with silence and writes it out.
func (c *Client) Drain(context.Context) error {
	if len(c.leftoverAudio) == 0 {
		return nil
	}

	tail := make([]byte, c.bufferSize*2)
	copy(tail, c.leftoverAudio)
	c.leftoverAudio = nil

	binary.Read(bytes.NewBuffer(tail), binary.LittleEndian, c.out)
	c.stream.Write()
	return nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}
