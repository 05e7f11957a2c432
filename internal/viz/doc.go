// Package viz renders decoded plot bitmaps into the terminal.
//
// Two renderers are provided:
//
//   - [RenderHalfBlocks]: color rendering, two vertical pixels per cell
//     using the upper-half-block glyph with lipgloss foreground/background
//   - [Canvas]: Braille-based monochrome canvas for terminals without
//     good color support (2x4 dots per cell)
//
// Both downscale the source image with box sampling to fit the requested
// terminal width before drawing.
package viz
