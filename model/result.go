package model

// StructuredMenuResult is the structured payload a completed extraction job
// carries: a category tree plus the text the provider could not confidently
// place. Read-only to clients; owned by the job's lifetime.
type StructuredMenuResult struct {
	Menu            ResultMenu      `json:"menu"`
	UncertainItems  []UncertainItem `json:"uncertain_items,omitempty"`
	SuperfluousText []string        `json:"superfluous_text,omitempty"`
}

// ResultMenu is the root of the extracted category tree
type ResultMenu struct {
	Categories []ResultCategory `json:"categories"`
}

// ResultCategory is one node of the extracted tree
type ResultCategory struct {
	Name          string           `json:"name"`
	Items         []ExtractedItem  `json:"items,omitempty"`
	Subcategories []ResultCategory `json:"subcategories,omitempty"`
	Confidence    float64          `json:"confidence"`
}

// ExtractedItem is a leaf item inside a result category
type ExtractedItem struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// UncertainItem is extracted text the provider could not confidently
// classify as a priced menu item; the user resolves it manually.
type UncertainItem struct {
	RawText           string  `json:"raw_text"`
	Reason            string  `json:"reason"`
	Confidence        float64 `json:"confidence"`
	SuggestedCategory string  `json:"suggested_category,omitempty"`
	SuggestedPrice    float64 `json:"suggested_price,omitempty"`
}
