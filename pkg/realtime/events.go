package realtime

// Wire shapes for the realtime protocol. All messages are JSON objects
// carrying a "type" discriminator.

// Inbound event types.
const (
	typeSessionCreated = "session.created"
	typeSessionUpdated = "session.updated"

	typeSpeechStarted  = "input_audio_buffer.speech_started"
	typeSpeechStopped  = "input_audio_buffer.speech_stopped"
	typeAudioCommitted = "input_audio_buffer.committed"

	typeTextDelta            = "response.text.delta"
	typeAudioTranscriptDelta = "response.audio_transcript.delta"

	// The protocol exposes "the transcript is complete" through several
	// shapes; all of them normalize into one finalize transition.
	typeTextDone            = "response.text.done"
	typeAudioTranscriptDone = "response.audio_transcript.done"
	typeContentPartDone     = "response.content_part.done"
	typeOutputItemDone      = "response.output_item.done"
	typeResponseDone        = "response.done"

	typeAudioDelta = "response.audio.delta"
	typeAudioDone  = "response.audio.done"

	typeError = "error"
)

// Outbound message types.
const (
	typeSessionUpdate  = "session.update"
	typeAudioAppend    = "input_audio_buffer.append"
	typeAudioCommit    = "input_audio_buffer.commit"
	typeResponseCreate = "response.create"
)

// serverEvent is the inbound event union. Only the fields relevant to the
// event's type are populated; everything else stays zero.
type serverEvent struct {
	Type string `json:"type"`

	// Delta carries incremental text for transcript deltas, or base64
	// audio for synthesized-audio deltas.
	Delta string `json:"delta,omitempty"`

	// Text carries the final text for response.text.done.
	Text string `json:"text,omitempty"`

	// Transcript carries the final text for response.audio_transcript.done.
	Transcript string `json:"transcript,omitempty"`

	// Part is present on response.content_part.done.
	Part *contentPart `json:"part,omitempty"`

	// Item is present on response.output_item.done.
	Item *outputItem `json:"item,omitempty"`

	// Response is present on response.done.
	Response *responsePayload `json:"response,omitempty"`

	// Error is present on error events.
	Error *errorPayload `json:"error,omitempty"`
}

type contentPart struct {
	Type       string `json:"type,omitempty"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// text returns whichever text field the part carries.
func (p *contentPart) text() string {
	if p == nil {
		return ""
	}
	if p.Text != "" {
		return p.Text
	}
	return p.Transcript
}

type outputItem struct {
	Type    string        `json:"type,omitempty"`
	Content []contentPart `json:"content,omitempty"`
}

// text returns the first non-empty content text of the item.
func (it *outputItem) text() string {
	if it == nil {
		return ""
	}
	for i := range it.Content {
		if t := it.Content[i].text(); t != "" {
			return t
		}
	}
	return ""
}

type responsePayload struct {
	Output []outputItem `json:"output,omitempty"`
}

// text returns the first non-empty output text of the response.
func (r *responsePayload) text() string {
	if r == nil {
		return ""
	}
	for i := range r.Output {
		if t := r.Output[i].text(); t != "" {
			return t
		}
	}
	return ""
}

type errorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// sessionUpdateEvent declares the session configuration after connecting.
type sessionUpdateEvent struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	Modalities        []string `json:"modalities"`
	InputAudioFormat  string   `json:"input_audio_format"`
	OutputAudioFormat string   `json:"output_audio_format"`
	Voice             string   `json:"voice"`

	InputAudioTranscription transcriptionConfig `json:"input_audio_transcription"`

	// TurnDetection is always null: the client starts and stops speech
	// segments explicitly, so the server must not guess boundaries.
	TurnDetection any `json:"turn_detection"`

	Tools []any `json:"tools"`
}

type transcriptionConfig struct {
	Model string `json:"model"`
}

// audioAppendEvent carries one base64-encoded audio payload.
type audioAppendEvent struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type commitEvent struct {
	Type string `json:"type"`
}

// responseCreateEvent requests a text-only transcription response.
type responseCreateEvent struct {
	Type     string         `json:"type"`
	Response responseConfig `json:"response"`
}

type responseConfig struct {
	Modalities   []string `json:"modalities"`
	Instructions string   `json:"instructions"`
}
