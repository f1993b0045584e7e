// Package endpoint is the typed HTTP client every poller component uses to
// talk to the upstream services.
//
// New(services, timeout) builds one *http.Client per configured service so
// that auth (API key, bearer token, basic) and TLS options stay per service.
// Requests are addressed by ServiceKey plus a relative path; the base URL
// comes from the service descriptor.
//
// Every failure is normalized into *Error with one of three kinds:
// KindTransport (no response), KindHTTP (non-2xx status, StatusCode set) and
// KindDecode (body is not the expected JSON). Failures are logged with the
// service and path before being returned. There are no retries.
package endpoint
