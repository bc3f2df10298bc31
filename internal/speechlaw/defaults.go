package speechlaw

import "campaign-compliance/internal/rules"

const (
	CategoryCommitment   = "commitment"
	CategoryFutureIntent = "future_intent"
	CategoryBenefitOffer = "benefit_offer"
	CategoryUnverified   = "unverified_claim"

	SeverityHard     = "HARD"
	SeveritySoft     = "SOFT"
	SeverityAdvisory = "ADVISORY"
)

const (
	enFuture = `(?i)\b(?:will|shall|going to|plans? to|intends? to)\b|\w'll\b`
	koFuture = `겠|할 것|될 것|예정|계획입니다`
)

// DefaultRules is the built-in Korean and English rule table. Tier order is
// irrelevant here; the classifier evaluates tiers in its own order.
func DefaultRules() rules.Table {
	return rules.Table{
		// Explicit commitments.
		rules.MustRule(rules.TierBlacklist, "en_promise", `(?i)\b(?:I|we)\s+(?:promise|pledge|vow|guarantee|commit)\b`, "", CategoryCommitment, SeverityHard, ""),
		rules.MustRule(rules.TierBlacklist, "en_elected", `(?i)\b(?:once|if|when|after)\s+(?:I'm\s+|I am\s+|we are\s+|we're\s+)?elected\b`, "", CategoryCommitment, SeverityHard, ""),
		rules.MustRule(rules.TierBlacklist, "en_my_pledge", `(?i)\bmy\s+(?:campaign\s+)?(?:pledge|promise)\s+(?:is|to)\b`, "", CategoryCommitment, SeverityHard, ""),
		rules.MustRule(rules.TierBlacklist, "ko_promise", `약속(?:드립니다|합니다|하겠습니다|드리겠습니다)`, "", CategoryCommitment, SeverityHard, ""),
		rules.MustRule(rules.TierBlacklist, "ko_elected", `당선(?:되면|된다면|이 되면|시에?는?\s)`, "", CategoryCommitment, SeverityHard, ""),
		rules.MustRule(rules.TierBlacklist, "ko_pledge", `공약(?:합니다|하겠습니다|드립니다|으로 (?:내걸|제시))`, "", CategoryCommitment, SeverityHard, ""),
		rules.MustRule(rules.TierBlacklist, "ko_firm_commitment", `(?:반드시|꼭)\s*\S*(?:하겠습니다|만들겠습니다|드리겠습니다)`, "", CategoryCommitment, SeverityHard, ""),

		// Statements that are safe regardless of tense markers elsewhere.
		rules.MustRule(rules.TierWhitelist, "en_question", `\?["'”’)]*$`, "", "", "", ""),
		rules.MustRule(rules.TierWhitelist, "en_quotation", `^["“]|(?i)\b(?:said|says|according to)\b`, "", "", "", ""),
		rules.MustRule(rules.TierWhitelist, "en_past", `(?i)\b(?:was|were|did|had|has been|have been)\b`, enFuture, "", "", ""),
		rules.MustRule(rules.TierWhitelist, "en_necessity", `(?i)\b(?:needs?|must|should|ought to|is necessary|is required)\b`, `(?i)\b(?:I|we)\s+(?:will|shall)\b`, "", "", ""),
		rules.MustRule(rules.TierWhitelist, "en_opinion", `(?i)\b(?:I think|I believe|in my view|in my opinion|it seems)\b`, enFuture, "", "", ""),
		rules.MustRule(rules.TierWhitelist, "ko_question", `(?:까요|니까|는가|나요)\??$`, "", "", "", ""),
		rules.MustRule(rules.TierWhitelist, "ko_quotation", `(?:라고|다고)\s*(?:말했|밝혔|전했|강조했)`, "", "", "", ""),
		rules.MustRule(rules.TierWhitelist, "ko_past", `(?:었|았|였|했)(?:습니다|다|어요)`, koFuture, "", "", ""),
		rules.MustRule(rules.TierWhitelist, "ko_necessity", `필요합니다|필요가 있습니다|해야 합니다|중요합니다`, `겠`, "", "", ""),
		rules.MustRule(rules.TierWhitelist, "ko_opinion", `생각합니다|봅니다|믿습니다|판단합니다`, `겠`, "", "", ""),
		rules.MustRule(rules.TierWhitelist, "ko_copula", `(?:니다|이다|인다|한다|된다)[.!]?$`, `겠|것입니다|것이다|예정|계획`, "", "", ""),

		// Tense markers that need a semantic judgement.
		rules.MustRule(rules.TierFuture, "en_future", enFuture, "", CategoryFutureIntent, SeverityHard, ""),
		rules.MustRule(rules.TierFuture, "ko_future", koFuture, "", CategoryFutureIntent, SeverityHard, ""),

		// Static detectors.
		rules.MustRule(rules.TierBenefit, "en_benefit", `(?i)\b(?:free|cash|gifts?|rewards?|vouchers?|gift cards?)\b.*\b(?:to|for)\s+(?:every|all)\s+(?:voters?|residents|citizens|households)\b`, "", CategoryBenefitOffer, SeverityHard, ""),
		rules.MustRule(rules.TierBenefit, "en_payment", `(?i)\b(?:I|we)(?:'ll|\s+will)\s+(?:give|pay|hand out)\s+(?:you|every|each)\b`, "", CategoryBenefitOffer, SeverityHard, ""),
		rules.MustRule(rules.TierBenefit, "ko_benefit", `(?:현금|상품권|선물|금품|기념품).*(?:드리|지급|제공|나눠)`, "", CategoryBenefitOffer, SeverityHard, ""),
		rules.MustRule(rules.TierClaim, "en_superlative", `(?i)\b(?:the best|number one|no\.\s?1|first ever|only one who|everyone knows|100% guaranteed)\b`, "", CategoryUnverified, SeveritySoft, ""),
		rules.MustRule(rules.TierClaim, "ko_superlative", `최초로|유일하게|유일한|최고의|1위|모두가 알`, "", CategoryUnverified, SeveritySoft, ""),
	}
}
