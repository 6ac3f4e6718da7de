// Package runstate carries the small amount of state the restore phase hands
// to the save phase of the same job: the primary key that was requested and
// the key that was actually matched. The default driver uses the runner's
// GITHUB_STATE file command; file and redis drivers exist for runners that
// invoke both phases as unrelated processes.
package runstate
