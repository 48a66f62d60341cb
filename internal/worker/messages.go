package worker

import "github.com/book-expert/events"

// Error codes carried in PhonemizeReply.ErrorCode.
const (
	CodeInvalidRequest      = "invalid_request"
	CodeUnsupportedLanguage = "unsupported_language"
	CodeEngineUnavailable   = "engine_unavailable"
	CodePhonemizationFailed = "phonemization_failed"
	CodeShuttingDown        = "shutting_down"
	CodeStoreFailed         = "store_failed"
	CodeInternal            = "internal_error"
)

// PhonemizeRequest asks for the phonemes of one text. The text is given
// inline or as a key in the object store.
type PhonemizeRequest struct {
	Header        events.EventHeader `json:"header"`
	Text          string             `json:"text,omitempty"`
	TextKey       string             `json:"text_key,omitempty"`
	Language      string             `json:"language,omitempty"`
	SkipNormalize bool               `json:"skip_normalize,omitempty"`
	StoreResult   bool               `json:"store_result,omitempty"`
}

// PhonemizeReply carries the phonemes or an error. PhonemeKey is set when
// the request asked for the result to be stored.
type PhonemizeReply struct {
	Header     events.EventHeader `json:"header"`
	Language   string             `json:"language,omitempty"`
	Phonemes   string             `json:"phonemes,omitempty"`
	PhonemeKey string             `json:"phoneme_key,omitempty"`
	Error      string             `json:"error,omitempty"`
	ErrorCode  string             `json:"error_code,omitempty"`
}
