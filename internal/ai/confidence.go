package ai

import "strings"

// uncertaintyPhrases mark a draft that hedges or defers to the host. Matched
// against the draft text.
var uncertaintyPhrases = []string{
	"let me check",
	"i'm not sure",
	"i don't know",
	"not certain",
	"need to verify",
	"check with the host",
	"contact the host",
}

// documentedTopics are subjects the property record reliably covers. Matched
// against the guest's question.
var documentedTopics = []string{
	"wifi password",
	"check-in time",
	"check-out time",
	"trash day",
	"parking",
	"nearby restaurant",
	"address",
	"amenities",
}

// Verdict is the confidence classification of a drafted reply.
type Verdict struct {
	Confidence float64
	ShouldSend bool
	Reasoning  string
}

// ClassifyDraft scores a drafted reply against the guest's question. Hedging
// language in the draft always wins over topic matches in the question, so
// the checks run in that order.
func ClassifyDraft(draft, question string) Verdict {
	draftLower := strings.ToLower(draft)
	questionLower := strings.ToLower(question)

	for _, phrase := range uncertaintyPhrases {
		if strings.Contains(draftLower, phrase) {
			return Verdict{
				Confidence: 0.3,
				ShouldSend: false,
				Reasoning:  "Response contains uncertainty indicators",
			}
		}
	}

	for _, topic := range documentedTopics {
		if strings.Contains(questionLower, topic) {
			return Verdict{
				Confidence: 0.98,
				ShouldSend: true,
				Reasoning:  "Question about well-documented property information",
			}
		}
	}

	if len(draft) > 20 && len(draft) < 300 {
		return Verdict{
			Confidence: 0.85,
			ShouldSend: false,
			Reasoning:  "General response, requires manual review",
		}
	}

	return Verdict{
		Confidence: 0.5,
		ShouldSend: false,
		Reasoning:  "Response length suggests uncertainty",
	}
}
