package peer

// Ban scores for misbehaving nodes
const (
	BanScoreMalformedMessage = 10

	BanScoreNonVersionFirstMessage = 1
	BanScoreDuplicateVersion       = 1
	BanScoreDuplicateVerack        = 1
	BanScoreDuplicateProtoconf     = 1

	BanScoreInvalidProtoconf = 100

	BanScoreInvalidFeeFilter = 100

	BanScoreStallTimeout = 1
)
