// Package preflight provides readiness checks for the filesystem paths and
// external tools the camrec daemon depends on.
//
// The daemon runs RunAll once at startup and logs failures as warnings; a
// failed check never stops the daemon. The CLI "camrec status" command reuses
// the individual checks to display local readiness when the daemon is down.
package preflight
