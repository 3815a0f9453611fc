// Package hostinfo gathers the one-time host facts a first check run reports:
// hostname, operating system, architecture, CPU count and the agent build.
package hostinfo
