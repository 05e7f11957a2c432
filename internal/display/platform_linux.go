//go:build linux

package display

func defaultViewer() []string {
	return []string{"xdg-open"}
}
