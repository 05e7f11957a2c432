//go:build !linux && !darwin && !windows

package display

func defaultViewer() []string {
	return nil
}
