package serve

import (
	"fmt"
	"os"
)

// ResolveSocketPath returns the daemon socket path.
// Priority: $TERMSUGGEST_SOCKET > $XDG_RUNTIME_DIR/termsuggest.sock > /tmp/termsuggest-<uid>.sock.
func ResolveSocketPath() string {
	if path := os.Getenv("TERMSUGGEST_SOCKET"); path != "" {
		return path
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/termsuggest.sock"
	}
	return fmt.Sprintf("/tmp/termsuggest-%d.sock", os.Getuid())
}
