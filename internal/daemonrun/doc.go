// Package daemonrun hosts the grilad process lifecycle: logging setup, pid
// file, result store, daemon start and signal-driven shutdown. Both the grilad
// binary and `grila serve` call Run.
package daemonrun
