package engine

// DetectLinkedAccounts evaluates the transfer-rule set against a batch and
// returns transactionID -> linkedAccountID for every record identified as a
// movement between owned accounts. Records matching no rule are absent from
// the map and are not transfers.
//
// Membership is OR across rules: any one fully-matching rule is sufficient.
// Priority only decides which linked account wins when several rules could
// apply. Once a record is claimed it is withdrawn from the remaining,
// lower-priority rules.
func DetectLinkedAccounts(recs []Record, rules *RuleSet) map[int64]int64 {
	linked := make(map[int64]int64)
	remaining := len(recs)

	for _, rule := range rules.Rules() {
		if remaining == 0 {
			break
		}
		for i := range recs {
			if _, claimed := linked[recs[i].ID]; claimed {
				continue
			}
			if rule.Matches(recs[i]) {
				linked[recs[i].ID] = rule.LinkedAccountID
				remaining--
			}
		}
	}
	return linked
}
