package speechtotext

type TranscriptionOptions struct {
	// Model names the backing engine's model, e.g. "nova-3".
	Model string
	// Language is a BCP-47 language tag.
	Language string
}

type TranscriptionOption func(*TranscriptionOptions)

func WithModel(model string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Model = model
	}
}

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Language = language
	}
}
