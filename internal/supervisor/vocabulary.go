package supervisor

// Vocabulary holds every keyword table the supervisor matches against. It is
// passed in at construction so deployments and tests can substitute words
// without touching the matching code. All entries are lowercase.
type Vocabulary struct {
	// Goal extraction.
	CreateModifyWords      []string `yaml:"create_modify_words" json:"create_modify_words"`
	StatusFilterWords      []string `yaml:"status_filter_words" json:"status_filter_words"`
	AutoDescriptionPhrases []string `yaml:"auto_description_phrases" json:"auto_description_phrases"`

	// Completion checks.
	FilterStateWords []string   `yaml:"filter_state_words" json:"filter_state_words"`
	DescriptionAria  []string   `yaml:"description_aria" json:"description_aria"`
	Months           [][]string `yaml:"months" json:"months"`

	// Element finders.
	SortMarkers         []string `yaml:"sort_markers" json:"sort_markers"`
	StatusAriaExact     []string `yaml:"status_aria_exact" json:"status_aria_exact"`
	StatusOptions       []string `yaml:"status_options" json:"status_options"`
	StatusOpenOptions   []string `yaml:"status_open_options" json:"status_open_options"`
	PriorityAriaExact   []string `yaml:"priority_aria_exact" json:"priority_aria_exact"`
	PriorityOptions     []string `yaml:"priority_options" json:"priority_options"`
	ProjectNameAria     []string `yaml:"project_name_aria" json:"project_name_aria"`
	ProjectNameDefaults []string `yaml:"project_name_defaults" json:"project_name_defaults"`
	SubmitKeywords      []string `yaml:"submit_keywords" json:"submit_keywords"`
	SubmitExclusions    []string `yaml:"submit_exclusions" json:"submit_exclusions"`

	// Arbitration.
	CancelKeywords     []string `yaml:"cancel_keywords" json:"cancel_keywords"`
	DecorationKeywords []string `yaml:"decoration_keywords" json:"decoration_keywords"`
	FilterPassKeywords []string `yaml:"filter_pass_keywords" json:"filter_pass_keywords"`

	// Post-action recording.
	FilterClickKeywords  []string `yaml:"filter_click_keywords" json:"filter_click_keywords"`
	RecordSubmitKeywords []string `yaml:"record_submit_keywords" json:"record_submit_keywords"`

	// Submit hint for the decision client.
	HintSubmitKeywords []string `yaml:"hint_submit_keywords" json:"hint_submit_keywords"`
}

// DefaultVocabulary returns the built-in keyword tables.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		CreateModifyWords: []string{"create", "add", "update", "change", "set", "modify"},
		StatusFilterWords: []string{
			"backlog", "in progress", "in-progress", "todo", "to do",
			"completed", "done", "cancelled", "canceled", "blocked",
		},
		AutoDescriptionPhrases: []string{
			"generate description", "add description", "create description", "with description",
		},

		FilterStateWords: []string{"filter", "filters", "filtered", "showing", "status", "workflow", "state", "project"},
		DescriptionAria:  []string{"description", "details", "summary", "notes"},
		Months: [][]string{
			{"jan", "january"},
			{"feb", "february"},
			{"mar", "march"},
			{"apr", "april"},
			{"may"},
			{"jun", "june"},
			{"jul", "july"},
			{"aug", "august"},
			{"sep", "sept", "september"},
			{"oct", "october"},
			{"nov", "november"},
			{"dec", "december"},
		},

		SortMarkers:         []string{"order by", "sort"},
		StatusAriaExact:     []string{"change project status", "change status"},
		StatusOptions:       []string{"backlog", "todo", "planned", "in progress", "done", "canceled"},
		StatusOpenOptions:   []string{"backlog", "todo", "planned", "in progress"},
		PriorityAriaExact:   []string{"change project priority", "change priority"},
		PriorityOptions:     []string{"no priority", "urgent", "high", "medium", "low"},
		ProjectNameAria:     []string{"project name", "name field", "title"},
		ProjectNameDefaults: []string{"untitled", "new project"},
		SubmitKeywords: []string{
			"create project", "create new project", "create", "submit",
			"save", "finish", "done", "confirm",
		},
		SubmitExclusions: []string{"create new issue", "new view"},

		CancelKeywords:     []string{"cancel", "close", "discard"},
		DecorationKeywords: []string{"icon", "emoji", "avatar", "color", "image"},
		FilterPassKeywords: []string{"status", "workflow", "filter", "add", "condition"},

		FilterClickKeywords:  []string{"filter", "status", "workflow", "showing", "chip", "project"},
		RecordSubmitKeywords: []string{"create project", "create", "submit", "finish", "done"},

		HintSubmitKeywords: []string{"create", "submit", "save", "add", "confirm", "done", "finish", "publish"},
	}
}

// withDefaults fills any table left empty by a partial configuration.
func (v Vocabulary) withDefaults() Vocabulary {
	d := DefaultVocabulary()
	fill := func(dst *[]string, src []string) {
		if len(*dst) == 0 {
			*dst = src
		}
	}
	fill(&v.CreateModifyWords, d.CreateModifyWords)
	fill(&v.StatusFilterWords, d.StatusFilterWords)
	fill(&v.AutoDescriptionPhrases, d.AutoDescriptionPhrases)
	fill(&v.FilterStateWords, d.FilterStateWords)
	fill(&v.DescriptionAria, d.DescriptionAria)
	if len(v.Months) == 0 {
		v.Months = d.Months
	}
	fill(&v.SortMarkers, d.SortMarkers)
	fill(&v.StatusAriaExact, d.StatusAriaExact)
	fill(&v.StatusOptions, d.StatusOptions)
	fill(&v.StatusOpenOptions, d.StatusOpenOptions)
	fill(&v.PriorityAriaExact, d.PriorityAriaExact)
	fill(&v.PriorityOptions, d.PriorityOptions)
	fill(&v.ProjectNameAria, d.ProjectNameAria)
	fill(&v.ProjectNameDefaults, d.ProjectNameDefaults)
	fill(&v.SubmitKeywords, d.SubmitKeywords)
	fill(&v.SubmitExclusions, d.SubmitExclusions)
	fill(&v.CancelKeywords, d.CancelKeywords)
	fill(&v.DecorationKeywords, d.DecorationKeywords)
	fill(&v.FilterPassKeywords, d.FilterPassKeywords)
	fill(&v.FilterClickKeywords, d.FilterClickKeywords)
	fill(&v.RecordSubmitKeywords, d.RecordSubmitKeywords)
	fill(&v.HintSubmitKeywords, d.HintSubmitKeywords)
	return v
}

// monthSynonyms returns the synonym set containing token, if any.
func (v Vocabulary) monthSynonyms(token string) []string {
	for _, set := range v.Months {
		for _, s := range set {
			if s == token {
				return set
			}
		}
	}
	return nil
}
