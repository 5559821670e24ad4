// Package ulog wires program logging in one call. Setup builds the
// requested log sinks (console stream, rotated file, syslog, and cloud
// logging when linked in), attaches them to a shared root, and sets the
// severity threshold they all obey. Each sink renders the same line
// format family, with platform-appropriate defaults.
//
//	err := ulog.Setup("my_program", "INFO", []ulog.HandlerKind{
//		ulog.KindStream,
//		ulog.KindSyslog,
//	})
//
// After a package-level Setup the configured logger is also installed
// as the slog default. Repeated Setup calls accumulate handlers on the
// same root; a kind requested twice is attached twice and every record
// then reaches both copies. Use a Root value instead of the package
// functions to keep setup state away from process-wide defaults.
package ulog
