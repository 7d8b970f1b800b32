// Package logger sets up the process logger: console output plus info.log and
// error.log files that rotate at local midnight and keep a week of backups.
//
// Log level can be configured via LOG_LEVEL environment variable (debug, info, warn, error, trace).
package logger
