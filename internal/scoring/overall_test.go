package scoring

import "testing"

func TestRecommend(t *testing.T) {
	failed := Pass()
	failed.Fail("commitment", "We will build a park.")
	warned := Pass()
	warned.Warn("vague_term", "update")

	tests := []struct {
		name     string
		outcome  Outcome
		expected Recommendation
	}{
		{"speech law block", Outcome{Score: 95, Reviewed: true, SpeechLaw: failed, FactGuard: Pass(), Overall: failed}, RecommendBlock},
		{"unsupported number", Outcome{Score: 95, Reviewed: true, SpeechLaw: Pass(), FactGuard: failed, Overall: failed}, RecommendReview},
		{"low score", Outcome{Score: 55, Reviewed: true, SpeechLaw: Pass(), FactGuard: Pass(), Overall: Pass()}, RecommendReview},
		{"unreviewed", Outcome{SpeechLaw: Pass(), FactGuard: Pass(), Overall: Pass()}, RecommendPublishWithCaution},
		{"soft findings", Outcome{Score: 90, Reviewed: true, SpeechLaw: Pass(), FactGuard: Pass(), Overall: warned}, RecommendPublishWithCaution},
		{"publish", Outcome{Score: 90, Reviewed: true, SpeechLaw: Pass(), FactGuard: Pass(), Overall: Pass()}, RecommendPublish},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Recommend(tc.outcome); got != tc.expected {
				t.Fatalf("expected %s got %s", tc.expected, got)
			}
		})
	}
}
