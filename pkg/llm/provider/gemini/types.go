// Package gemini
package gemini

// generateRequest represents the Gemini generateContent request format.
type generateRequest struct {
	SystemInstruction *generateContent `json:"systemInstruction,omitempty"`
	Contents          []generateTurn   `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateTurn struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generateContent struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// generateResponse represents both the full generateContent response and a
// single streamGenerateContent chunk; the stream sends the same shape with
// partial candidate text.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason,omitempty"`
	} `json:"candidates"`
}

func (r *generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}

	var out string
	for _, p := range r.Candidates[0].Content.Parts {
		out += p.Text
	}
	return out
}
