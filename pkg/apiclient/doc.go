/*
Package apiclient provides the authenticated HTTP client used by the patient portal to talk to
the portal backend.

# Overview

A Client wraps an *http.Client with a base address, attaches the default bearer credential to
every request and recovers from exactly one class of failure, an expired access token:

	store := apiclient.NewMemoryStore()
	client := apiclient.New("http://127.0.0.1:8000/api", store)

	var appointments []domain.Appointment
	err := client.Get(ctx, "/appointments/", &appointments)

Callers only ever see a final success value or a final error. Retry and refresh mechanics stay
inside the client.

# Token Refresh

When a response comes back with 401 Unauthorized the client:

 1. Fails immediately if this request was already replayed once after a refresh.
 2. Reads the stored TokenPair. Without a refresh credential the default credential is cleared
    and the caller gets an *AuthExpiredError.
 3. Joins the refresh cycle already in flight, or starts one by posting the refresh credential
    to /auth/token/refresh/.
 4. On success stores the new pair, attaches the new access credential and replays the request.
    On failure deletes the stored pair, clears the credential and fails every waiting request
    with the same *AuthExpiredError.

Exactly one refresh call is in flight per Client at any time. Requests that fail while it is
outstanding wait for it and then replay independently.

Requests built with WithoutAuth (login, registration and the refresh call itself) never carry
the bearer credential and never enter the refresh protocol.

# Interceptors

Interceptors observe and decorate traffic at two hook points: BeforeSend runs after the bearer
credential is attached and before the request leaves, AfterReceive runs once the transport has
returned. See RequestIDInterceptor and LoggingInterceptor.

# Error Handling

  - *NetworkError: no response was received. Never retried.
  - *HTTPError: non-2xx response. errors.Is(err, ErrRetryExhausted) reports a 401 that survived
    a refresh.
  - *AuthExpiredError: the session cannot be recovered; the caller should log in again.

# Thread Safety

A Client is safe for concurrent use by multiple goroutines.
*/
package apiclient
