// Package runner adapts the CI runner process contract: it parses the runner
// environment (event, ref, server URL, command files), writes file commands
// (GITHUB_STATE, GITHUB_OUTPUT) with collision-free heredoc delimiters, and
// publishes step outputs. Orchestrators never read os.Getenv directly; they
// receive an Environment value so tests can describe any runner they need.
package runner
