package logger

// RedactSecret masks a token or API key for safe logging, keeping a short
// prefix so operators can tell keys apart.
// "sk-live-abcdef123456" → "sk-l***"
// Short secrets (≤4 chars) are fully masked.
func RedactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) > 4 {
		return secret[:4] + "***"
	}
	return "***"
}
