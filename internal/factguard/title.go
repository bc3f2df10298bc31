package factguard

// MissingFrom returns the raw numeric tokens of title whose value and unit do
// not occur in body. It satisfies scoring.NumberMatcher.
func MissingFrom(title, body string) []string {
	titleTokens := ExtractNumericTokens(title)
	if len(titleTokens) == 0 {
		return nil
	}
	present := make(map[string]struct{})
	for _, tok := range ExtractNumericTokens(body) {
		present[tok.Normalized()] = struct{}{}
	}
	var missing []string
	for _, tok := range titleTokens {
		if _, ok := present[tok.Normalized()]; !ok {
			missing = append(missing, tok.Raw)
		}
	}
	return missing
}
