// Package host adapts the local operating system (ZFS, systemd, nftables,
// block devices and the kernel) to the failover service's collaborator
// interfaces.
package host

// Logger is a minimal structured logger interface, compatible with slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
