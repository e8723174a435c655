package slack

// Export internal functions for testing
var (
	TruncateStatus  = truncateStatus
	BuildHomeBlocks = buildHomeBlocks
)
