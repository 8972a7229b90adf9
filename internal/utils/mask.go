package utils

// MaskAddress shortens a wallet address for logs and audit rows so that
// full addresses never land in operational storage.  Short inputs are
// returned unchanged; anything longer keeps the first eight characters.
func MaskAddress(addr string) string {
	if len(addr) <= 8 {
		return addr
	}
	return addr[:8] + "..."
}
