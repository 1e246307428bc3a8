package domain

// Lesson is one instruction/response training example. Thought carries an
// optional chain-of-thought; the media fields hold URLs or data URIs.
type Lesson struct {
	ID          string `json:"id"`
	Instruction string `json:"instruction"`
	Response    string `json:"response"`
	Thought     string `json:"thought,omitempty"`
	Image       string `json:"image,omitempty"`
	Video       string `json:"video,omitempty"`
	Audio       string `json:"audio,omitempty"`
}

// PreferencePair is one preference-tuning example
type PreferencePair struct {
	ID       string `json:"id"`
	Prompt   string `json:"prompt"`
	Chosen   string `json:"chosen"`
	Rejected string `json:"rejected"`
	Critique string `json:"critique,omitempty"`
}

// VerificationResult is the provider's verdict on a single lesson
type VerificationResult struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ForgePlan is a provider-designed run: configuration, lessons and a briefing
type ForgePlan struct {
	Config          Configuration `json:"config"`
	Lessons         []Lesson      `json:"lessons"`
	MissionBriefing string        `json:"missionBriefing"`
	Protocol        []string      `json:"protocol"`
}

// PreferenceRanking is the provider's A/B verdict for a preference pair
type PreferenceRanking struct {
	Winner   string `json:"winner"`
	Critique string `json:"critique"`
}

// ChatReply is one test bench answer: the model's reasoning and its final message
type ChatReply struct {
	Thought  string `json:"thought"`
	Response string `json:"response"`
}

// MediaKind is the type of a synthesized training asset
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// Valid reports whether k is a supported media kind
func (k MediaKind) Valid() bool {
	return k == MediaAudio || k == MediaVideo
}
