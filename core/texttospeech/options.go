package texttospeech

import "github.com/voxturn/voxturn-core/core/audio"

type TextToSpeechOptions struct {
	// SpeechAudioCallback is called for each audio chunk the TTS engine
	// produces, in order.
	SpeechAudioCallback func(audio []byte)

	EncodingInfo audio.EncodingInfo
}

type TextToSpeechOption func(*TextToSpeechOptions)

func WithSpeechAudioCallback(callback func([]byte)) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		o.SpeechAudioCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		if encodingInfo.IsZero() {
			return
		}

		o.EncodingInfo = encodingInfo
	}
}
