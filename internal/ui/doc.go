// Package ui renders fleetrun's terminal output: status symbols, spinners,
// per-host progress lines, simple tables and the interactive host picker.
//
// Styling goes through Lip Gloss. Colors are plain ANSI codes so they follow
// the terminal's theme; DisableColors switches everything to plain text for
// --no-color and for output that isn't a terminal.
//
//	s := ui.NewSpinner("Syncing to gpu-01", os.Stderr)
//	s.Start()
//	// ... do work ...
//	s.Success() // or s.Fail() or s.Skip()
package ui
