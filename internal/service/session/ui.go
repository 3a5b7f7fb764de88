package session

// Texts shown to the client.
const (
	StatusListening   = "Listening..."
	NoticeUnavailable = "Speech recognition is not available on this device."
)

// UIState is everything a client needs to draw the transcription screen.
type UIState struct {
	Listening   bool
	UserStopped bool
	// Unavailable is set once no recognizer could be created. Start stays
	// disabled for the rest of the session.
	Unavailable bool
	TurnID      string
	Status      string
	// Notice is a one-shot message (error text, availability) cleared after
	// it has been rendered once.
	Notice     string
	Transcript string
}

// View is the rendered form of UIState sent to clients.
type View struct {
	SessionID    string `json:"sessionId"`
	TurnID       string `json:"turnId,omitempty"`
	Listening    bool   `json:"listening"`
	StartEnabled bool   `json:"startEnabled"`
	StopEnabled  bool   `json:"stopEnabled"`
	Text         string `json:"text"`
	Notice       string `json:"notice,omitempty"`
}

// Render maps UI state to a view. The transcript wins over the status text
// once there is one.
func Render(s UIState) View {
	text := s.Transcript
	if text == "" {
		text = s.Status
	}
	return View{
		TurnID:       s.TurnID,
		Listening:    s.Listening,
		StartEnabled: !s.Listening && !s.Unavailable,
		StopEnabled:  s.Listening,
		Text:         text,
		Notice:       s.Notice,
	}
}
