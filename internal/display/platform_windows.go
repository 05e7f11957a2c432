//go:build windows

package display

func defaultViewer() []string {
	return []string{"cmd", "/c", "start", "/wait", ""}
}
