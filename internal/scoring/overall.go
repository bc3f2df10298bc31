package scoring

// Recommendation is the publishing verdict attached to a finished draft.
type Recommendation string

const (
	RecommendPublish            Recommendation = "PUBLISH"
	RecommendPublishWithCaution Recommendation = "PUBLISH_WITH_CAUTION"
	RecommendReview             Recommendation = "REVIEW"
	RecommendBlock              Recommendation = "BLOCK"
)

// Outcome is what the recommendation matrix looks at.
type Outcome struct {
	Score     int
	Reviewed  bool
	SpeechLaw Result
	FactGuard Result
	Overall   Result
}

// Recommend maps a run outcome onto a publishing verdict. A remaining
// speech-law violation always blocks; an unsupported number or a low critic
// score needs a human; anything unreviewed or with soft findings publishes with
// caution.
func Recommend(o Outcome) Recommendation {
	switch {
	case !o.SpeechLaw.Passed:
		return RecommendBlock
	case !o.FactGuard.Passed || (o.Reviewed && o.Score < 60):
		return RecommendReview
	case !o.Reviewed || !o.Overall.Passed || len(o.Overall.Issues) > 0 || o.Score < 80:
		return RecommendPublishWithCaution
	default:
		return RecommendPublish
	}
}
