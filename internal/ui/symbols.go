package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Host finished cleanly
	SymbolFail     = "✗" // Host failed
	SymbolPending  = "○" // Not started yet
	SymbolProgress = "◐" // In progress
	SymbolComplete = "●" // Phase done
	SymbolSkipped  = "⊘" // Skipped
	SymbolSyncing  = "⇅" // Transferring files
	SymbolWarning  = "⚠"
)
