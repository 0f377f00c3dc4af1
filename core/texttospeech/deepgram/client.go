package deepgram

import (
	"fmt"
	"slices"

	"github.com/voxturn/voxturn-core/core/audio"
	"github.com/voxturn/voxturn-core/core/texttospeech"
)

type deepgramVoice string

const (
	VoiceAsteriaEN   deepgramVoice = "aura-2-asteria-en"
	VoiceThaliaEN    deepgramVoice = "aura-2-thalia-en"
	VoiceOrionEN     deepgramVoice = "aura-2-orion-en"
	VoiceArcasEN     deepgramVoice = "aura-2-arcas-en"
	VoiceAndromedaEN deepgramVoice = "aura-2-andromeda-en"

	defaultVoice = VoiceAsteriaEN
)

func GetAvailableVoices() []deepgramVoice {
	return []deepgramVoice{
		VoiceAsteriaEN,
		VoiceThaliaEN,
		VoiceOrionEN,
		VoiceArcasEN,
		VoiceAndromedaEN,
	}
}

// SynthesizerClient converts response text to speech over the Deepgram speak
// websocket, one utterance per connection.
type SynthesizerClient struct {
	voice   deepgramVoice
	options texttospeech.TextToSpeechOptions
}

func NewSynthesizerClient(voice deepgramVoice, opts ...texttospeech.TextToSpeechOption) (*SynthesizerClient, error) {
	client := &SynthesizerClient{voice: defaultVoice}

	if voice != "" {
		if !slices.Contains(GetAvailableVoices(), voice) {
			return nil, fmt.Errorf("invalid voice")
		}
		client.voice = voice
	}

	client.options = texttospeech.TextToSpeechOptions{
		SpeechAudioCallback: func([]byte) {},
		EncodingInfo:        audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&client.options)
	}

	return client, nil
}

func (c *SynthesizerClient) SetVoice(voice deepgramVoice) {
	c.voice = voice
}
