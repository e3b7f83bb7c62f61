package catalog

// Difficulty is the declared difficulty of a module.
type Difficulty string

const (
	DifficultyBasic        Difficulty = "basic"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// DisplayName returns a human-readable label for the difficulty.
func (d Difficulty) DisplayName() string {
	switch d {
	case DifficultyBasic:
		return "Basic"
	case DifficultyIntermediate:
		return "Intermediate"
	case DifficultyAdvanced:
		return "Advanced"
	default:
		return string(d)
	}
}

// Module is a unit of instructional content plus one graded quiz.
// Modules are read-only once loaded.
type Module struct {
	ID                       string          `yaml:"id" json:"id"`
	Year                     int             `yaml:"year" json:"year"`
	Order                    int             `yaml:"order" json:"order"`
	Title                    string          `yaml:"title" json:"title"`
	Description              string          `yaml:"description" json:"description,omitempty"`
	Icon                     string          `yaml:"icon" json:"icon,omitempty"`
	Difficulty               Difficulty      `yaml:"difficulty" json:"difficulty"`
	EstimatedDurationMinutes int             `yaml:"estimated_duration_minutes" json:"estimated_duration_minutes,omitempty"`
	PassingScore             int             `yaml:"passing_score" json:"passing_score,omitempty"` // 0 means the engine default
	Theory                   []TheorySection `yaml:"theory" json:"theory,omitempty"`
	Questions                []Question      `yaml:"questions" json:"questions"`
	LegacyKeys               []string        `yaml:"legacy_keys" json:"legacy_keys,omitempty"`
}

// TheorySection is one block of reading material shown before the quiz.
type TheorySection struct {
	Title   string `yaml:"title" json:"title"`
	Content string `yaml:"content" json:"content"`
}

// Question is a single-answer quiz question.
type Question struct {
	ID      int      `yaml:"id" json:"id"`
	Text    string   `yaml:"text" json:"text"`
	Options []Option `yaml:"options" json:"options"`
}

// Option is one choice of a question.
type Option struct {
	ID      int    `yaml:"id" json:"id"`
	Text    string `yaml:"text" json:"text"`
	Correct bool   `yaml:"correct" json:"correct,omitempty"`
}

// Option returns the option with the given id.
func (q Question) Option(id int) (Option, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// Question returns the question with the given id.
func (m Module) Question(id int) (Question, bool) {
	for _, q := range m.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// YearInfo describes an academic year (e.g., first year of upper secondary).
type YearInfo struct {
	Year  int    `yaml:"year" json:"year"`
	Title string `yaml:"title" json:"title"`
}
