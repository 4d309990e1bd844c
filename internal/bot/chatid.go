package bot

// DisplayChatID converts a bot-facing Telegram chat ID to the user-facing
// form used in t.me/c/ links. Supergroup and channel IDs are negative with
// their decimal digits prefixed by 100; the link form drops both. IDs that
// cannot carry that prefix (anything > -100) and IDs whose top three digits
// are not 100 come back unchanged.
func DisplayChatID(chatID int64) int64 {
	if chatID > -100 {
		return chatID
	}

	// Unsigned abs; -chatID wraps to exactly 1<<63 for MinInt64.
	abs := uint64(-chatID)

	// divisor = 10^(digits-3), isolating the top three decimal digits.
	divisor := uint64(1)
	for v := abs / 1000; v > 0; v /= 10 {
		divisor *= 10
	}

	if abs/divisor == 100 {
		return int64(abs % divisor)
	}
	return chatID
}
