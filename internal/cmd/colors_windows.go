//go:build windows

package cmd

// getTermWidthIoctl returns 0 on Windows, so terminalWidth falls back to $COLUMNS.
func getTermWidthIoctl() int {
	return 0
}
