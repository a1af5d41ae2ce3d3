// Package httpclient issues the HTTP operations a flywheel drives.
//
// A [RequestBuilder] turns the configured method, target, headers and body
// into a fresh *http.Request per attempt, optionally carrying W3C trace
// context. A [Requester] sends it with a pooled client, maps status codes
// of 400 and above to *runner.HTTPError and applies any response [Check]s:
//
//	checks, err := httpclient.ParseChecks([]string{"status=ok", "items.#"})
//	req := &httpclient.Requester{Client: httpclient.NewClient(timeout), Builder: builder, Checks: checks}
//	r := runner.New(runner.Options{Requester: req})
//
// Checks use gjson paths. A bare path requires the value to exist; path=value
// requires its string form to match.
package httpclient
