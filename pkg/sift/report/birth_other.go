//go:build !darwin && !linux

package report

import (
	"os"
	"time"
)

// birthTime falls back to the modification time on platforms without a
// portable creation time.
func birthTime(_ string, info os.FileInfo) time.Time {
	return info.ModTime()
}
