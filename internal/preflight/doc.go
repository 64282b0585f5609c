// Package preflight provides readiness checks for the filesystem paths,
// storage headroom, and API configuration the daemon depends on.
//
// These checks run in two contexts:
//   - The daemon runtime runs RunAll at startup and logs every failure so
//     a misconfigured field unit is visible in the log before the first
//     upload attempt fails.
//   - The CLI "furrow config validate" command prints the results so an
//     operator can verify a box before deploying it.
//
// Checks report; they do not block. A field unit with a full disk should
// still start, hold its queue, and recover once space is freed.
package preflight
