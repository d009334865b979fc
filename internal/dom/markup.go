package dom

// Markup names the selectors and classes of the form markup contract.
type Markup struct {
	FormSelector       string `json:"form_selector"`
	HoneypotName       string `json:"honeypot_name"`
	FileInputClass     string `json:"file_input_class"`
	FileListClass      string `json:"file_list_class"`
	OutputClass        string `json:"output_class"`
	SubmitSelector     string `json:"submit_selector"`
	FieldSelector      string `json:"field_selector"`
	LockedClass        string `json:"locked_class"`
	AlertClass         string `json:"alert_class"`
	ChipClass          string `json:"chip_class"`
	ChipGoodClass      string `json:"chip_good_class"`
	ChipBadClass       string `json:"chip_bad_class"`
	ChipRemoveClass    string `json:"chip_remove_class"`
	FilesFieldName     string `json:"files_field_name"`
	VisibleDisplay     string `json:"visible_display"`
	HiddenDisplay      string `json:"hidden_display"`
	TransitionProperty string `json:"transition_property"`
}

// DefaultMarkup matches the markup rendered by the contact form block.
func DefaultMarkup() Markup {
	return Markup{
		FormSelector:       "form.contact-form",
		HoneypotName:       "required_field",
		FileInputClass:     "custom-file-upload",
		FileListClass:      "file-list",
		OutputClass:        "popout-output",
		SubmitSelector:     `button[type="submit"], input[type="submit"]`,
		FieldSelector:      `input[type="text"][name], input[type="email"][name], input[type="tel"][name], textarea[name]`,
		LockedClass:        "is-locked",
		AlertClass:         "popout-alert",
		ChipClass:          "file-chip",
		ChipGoodClass:      "file-chip--good",
		ChipBadClass:       "file-chip--bad",
		ChipRemoveClass:    "file-chip__remove",
		FilesFieldName:     "files[]",
		VisibleDisplay:     "block",
		HiddenDisplay:      "none",
		TransitionProperty: "opacity",
	}
}

// WithDefaults fills every empty field from DefaultMarkup.
func (m Markup) WithDefaults() Markup {
	d := DefaultMarkup()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&m.FormSelector, d.FormSelector)
	fill(&m.HoneypotName, d.HoneypotName)
	fill(&m.FileInputClass, d.FileInputClass)
	fill(&m.FileListClass, d.FileListClass)
	fill(&m.OutputClass, d.OutputClass)
	fill(&m.SubmitSelector, d.SubmitSelector)
	fill(&m.FieldSelector, d.FieldSelector)
	fill(&m.LockedClass, d.LockedClass)
	fill(&m.AlertClass, d.AlertClass)
	fill(&m.ChipClass, d.ChipClass)
	fill(&m.ChipGoodClass, d.ChipGoodClass)
	fill(&m.ChipBadClass, d.ChipBadClass)
	fill(&m.ChipRemoveClass, d.ChipRemoveClass)
	fill(&m.FilesFieldName, d.FilesFieldName)
	fill(&m.VisibleDisplay, d.VisibleDisplay)
	fill(&m.HiddenDisplay, d.HiddenDisplay)
	fill(&m.TransitionProperty, d.TransitionProperty)
	return m
}

// HoneypotSelector locates the bot-trap input.
func (m Markup) HoneypotSelector() string {
	return `[name="` + m.HoneypotName + `"]`
}

// FileInputSelector locates the managed file input.
func (m Markup) FileInputSelector() string {
	return `input[type="file"].` + m.FileInputClass
}

// OutputSelector locates the alert container.
func (m Markup) OutputSelector() string {
	return "." + m.OutputClass
}

// FileListSelector locates the rendered chip list.
func (m Markup) FileListSelector() string {
	return "." + m.FileListClass
}
