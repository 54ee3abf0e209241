// Package queue persists the trial work queue in SQLite. Trials move
// pending -> processing -> completed or failed; failures carry the two-part
// error payload (a message for the participant-facing app and a diagnostic
// message for operators).
package queue
