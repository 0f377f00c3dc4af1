package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/voxturn/voxturn-core/core/audio"
	"github.com/voxturn/voxturn-core/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// audio is written to the socket in chunks roughly matching 250ms at 16kHz.
const sendChunkSize = 8000

// TranscriptionClient converts one audio segment at a time to text over the
// Deepgram listen websocket. Each segment gets its own connection; the
// segment is sent in full, the stream is closed, and the finals are
// collected until the server hangs up.
type TranscriptionClient struct {
	options speechtotext.TranscriptionOptions
}

func NewTranscriptionClient(opts ...speechtotext.TranscriptionOption) *TranscriptionClient {
	options := speechtotext.TranscriptionOptions{
		Model:    "nova-3",
		Language: "en-US",
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &TranscriptionClient{options: options}
}

func (c *TranscriptionClient) TranscribeSegment(ctx context.Context, pcm []byte, info audio.EncodingInfo) (string, error) {
	ctx, span := tracer.Start(ctx, "transcribe segment")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.model", c.options.Model),
		attribute.Float64("segment.duration_seconds", info.Duration(pcm).Seconds()),
	)

	// Speech models want 16kHz; captured audio may arrive at a higher rate.
	if info.Format == audio.EncodingLinear16 && info.SampleRate > audio.DefaultSampleRate {
		pcm = audio.ResampleBytes(pcm, info.SampleRate, audio.DefaultSampleRate)
		info.SampleRate = audio.DefaultSampleRate
	}

	encoding, err := convertEncoding(info)
	if err != nil {
		return "", fmt.Errorf("invalid encoding: %w", err)
	}

	conn, err := connectWebsocket(connectionOptions{
		sampleRate: encoding.SampleRate,
		encoding:   encoding.Format.Name(),
		model:      c.options.Model,
		language:   c.options.Language,
	})
	if err != nil {
		err = fmt.Errorf("failed to open websocket: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	defer conn.Close()

	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchdogDone:
		}
	}()

	if err := sendSegment(conn, pcm); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	transcript, err := collectTranscript(conn)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(attribute.Int("response.transcript_length", len(transcript)))
	return transcript, nil
}

type connectionOptions struct {
	sampleRate int
	encoding   string
	model      string
	language   string
}

func connectWebsocket(options connectionOptions) (*websocket.Conn, error) {
	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	listenUrl, _ := url.Parse("wss://api.deepgram.com/v1/listen")
	queryParams := listenUrl.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", options.model)
	queryParams.Set("language", options.language)
	queryParams.Set("smart_format", "true")

	listenUrl.RawQuery = queryParams.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(listenUrl.String(),
		http.Header{"Authorization": {"Token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, err
}

func sendSegment(conn *websocket.Conn, pcm []byte) error {
	for start := 0; start < len(pcm); start += sendChunkSize {
		end := min(start+sendChunkSize, len(pcm))
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[start:end]); err != nil {
			return fmt.Errorf("failed to write segment to deepgram: %w", err)
		}
	}

	if err := conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}

	return nil
}

func collectTranscript(conn *websocket.Conn) (string, error) {
	var accumulated strings.Builder

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			// The server closes the socket once the final results for a
			// closed stream have been delivered.
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return strings.TrimSpace(accumulated.String()), nil
			}
			return "", fmt.Errorf("failed to read deepgram message: %w", err)
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		var parsedMsg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &parsedMsg); err != nil {
			logger.Warn("Failed to unmarshal deepgram message", "error", err)
			continue
		}

		switch api.TypeResponse(parsedMsg.Type) {
		case api.TypeMessageResponse:
			var msgResp api.MessageResponse
			if err := json.Unmarshal(msg, &msgResp); err != nil {
				logger.Warn("Failed to unmarshal deepgram transcript", "error", err)
				continue
			}
			if !msgResp.IsFinal || len(msgResp.Channel.Alternatives) == 0 {
				continue
			}
			transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
			if len(transcript) == 0 {
				continue
			}
			if accumulated.Len() > 0 {
				accumulated.WriteString(" ")
			}
			accumulated.WriteString(transcript)

		case api.TypeResponse("Error"):
			return "", fmt.Errorf("deepgram error: %s", strings.TrimSpace(string(msg)))
		}
	}
}
