// Package emitter delivers queued transactions to the remote collector.
//
// Client.Send POSTs one transaction to <endpoint>/intake/ and reports any
// transport error, timeout, or non-2xx answer as a failure. The body comes
// from a Formatter; the default JSONFormatter deflates JSON with
// klauspost/compress and sets Content-Encoding accordingly.
//
// In apikey mode an authRoundTripper adds the configured header to every
// request, with the key read from the environment at send time.
package emitter
