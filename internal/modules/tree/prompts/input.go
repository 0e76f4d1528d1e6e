package prompts

// Input is the superset of fields any tree prompt can render.
type Input struct {
	Language string

	UserInput  string
	Goal       string
	Content    string
	Categories string

	ExampleSubject     string
	ExampleDescription string

	Count           int
	ChunkText       string
	InsightsJSON    string
	ModelStylesJSON string
	WebStylesJSON   string

	Level             string
	ParentLevel       string
	ParentTitle       string
	ParentDescription string
	StylesJSON        string
}
