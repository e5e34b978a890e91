package util

// MaskAPIKey renders an upstream API key safe for client display: first 7
// characters, an ellipsis, and the last 4. Keys of 8 characters or fewer
// mask entirely.
func MaskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:7] + "..." + apiKey[len(apiKey)-4:]
}
