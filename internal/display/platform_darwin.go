//go:build darwin

package display

// -W keeps open in the foreground until the viewer exits, so the temp
// file outlives the viewer, not the other way around.
func defaultViewer() []string {
	return []string{"open", "-W"}
}
