// Package checks implements the work done by a check process.
//
// A Runner executes every configured check once, bundles the results into a
// single Report and posts it to the forwarder's loopback intake. The first
// run after a forwarder start also carries host facts.
//
// Supported check types:
//
//	prometheus - scrape a text exposition endpoint and report family totals
//	tls        - dial an HTTPS endpoint and report leaf certificate expiry
//
// A failing check is reported in its Result; only a failed post makes Run
// return an error, which the check process turns into a non-zero exit.
package checks
