// Package result builds the HTTP responses written by the gramforge build
// service's handlers. A Result carries both the JSON (or plain-text) body
// sent to the client and an internal message used for request logging, so a
// handler can return one value that covers both without formatting a log
// line by hand at every call site.
package result

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorResponse is the JSON body sent for any non-2xx Result produced by
// Err, Conflict, BadRequest, NotFound, Unauthorized, MethodNotAllowed,
// or InternalServerError.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// OK builds a Result for an HTTP-200 response carrying respObj as its JSON
// body. internalMsg is an optional log-message format string (defaulting to
// "OK") followed by its Sprintf args; it is never shown to the client.
func OK(respObj interface{}, internalMsg ...interface{}) Result {
	internalMsgFmt := "OK"
	var msgArgs []interface{}
	if len(internalMsg) >= 1 {
		internalMsgFmt = internalMsg[0].(string)
		msgArgs = internalMsg[1:]
	}

	return Response(http.StatusOK, respObj, internalMsgFmt, msgArgs...)
}

// Created builds a Result for an HTTP-201 response, e.g. the newly queued
// build job returned by the job-submission endpoint.
func Created(respObj interface{}, internalMsg ...interface{}) Result {
	internalMsgFmt := "created"
	var msgArgs []interface{}
	if len(internalMsg) >= 1 {
		internalMsgFmt = internalMsg[0].(string)
		msgArgs = internalMsg[1:]
	}

	return Response(http.StatusCreated, respObj, internalMsgFmt, msgArgs...)
}

// Conflict builds a Result for an HTTP-409 response, e.g. an artifact
// request made against a build job that is still queued or has failed.
// userMsg is shown to the client; internalMsg is an optional log-message
// format string (defaulting to "conflict") followed by its Sprintf args.
func Conflict(userMsg string, internalMsg ...interface{}) Result {
	internalMsgFmt := "conflict"
	var msgArgs []interface{}
	if len(internalMsg) >= 1 {
		internalMsgFmt = internalMsg[0].(string)
		msgArgs = internalMsg[1:]
	}

	return Err(http.StatusConflict, userMsg, internalMsgFmt, msgArgs...)
}

// BadRequest builds a Result for an HTTP-400 response. userMsg is shown to
// the client; internalMsg is an optional log-message format string
// (defaulting to "bad request") followed by its Sprintf args.
func BadRequest(userMsg string, internalMsg ...interface{}) Result {
	internalMsgFmt := "bad request"
	var msgArgs []interface{}
	if len(internalMsg) >= 1 {
		internalMsgFmt = internalMsg[0].(string)
		msgArgs = internalMsg[1:]
	}

	return Err(http.StatusBadRequest, userMsg, internalMsgFmt, msgArgs...)
}

// MethodNotAllowed builds a Result for an HTTP-405 response describing the
// rejected method and path from req.
func MethodNotAllowed(req *http.Request, internalMsg ...interface{}) Result {
	internalMsgFmt := "method not allowed"
	var msgArgs []interface{}
	if len(internalMsg) >= 1 {
		internalMsgFmt = internalMsg[0].(string)
		msgArgs = internalMsg[1:]
	}

	userMsg := fmt.Sprintf("method %s is not allowed for %s", req.Method, req.URL.Path)

	return Err(http.StatusMethodNotAllowed, userMsg, internalMsgFmt, msgArgs...)
}

// NotFound builds a Result for an HTTP-404 response, e.g. a job ID that
// doesn't exist. internalMsg is an optional log-message format string
// (defaulting to "not found") followed by its Sprintf args.
func NotFound(internalMsg ...interface{}) Result {
	internalMsgFmt := "not found"
	var msgArgs []interface{}
	if len(internalMsg) >= 1 {
		internalMsgFmt = internalMsg[0].(string)
		msgArgs = internalMsg[1:]
	}

	return Err(http.StatusNotFound, "the requested resource was not found", internalMsgFmt, msgArgs...)
}

// Unauthorized builds a Result for an HTTP-401 response and stamps it with
// the WWW-Authenticate header the bearer-token middleware expects callers
// to honor. userMsg is shown to the client, defaulting to a generic message
// when empty so a rejected or missing token never leaks why it failed.
func Unauthorized(userMsg string, internalMsg ...interface{}) Result {
	internalMsgFmt := "unauthorized"
	var msgArgs []interface{}
	if len(internalMsg) >= 1 {
		internalMsgFmt = internalMsg[0].(string)
		msgArgs = internalMsg[1:]
	}

	if userMsg == "" {
		userMsg = "you are not authorized to do that"
	}

	return Err(http.StatusUnauthorized, userMsg, internalMsgFmt, msgArgs...).
		WithHeader("WWW-Authenticate", `Bearer realm="gramforge-serve", charset="utf-8"`)
}

// InternalServerError builds a Result for an HTTP-500 response. The client
// always gets the same generic message; internalMsg is an optional
// log-message format string followed by its Sprintf args, used to record
// what actually went wrong.
func InternalServerError(internalMsg ...interface{}) Result {
	internalMsgFmt := "internal server error"
	var msgArgs []interface{}
	if len(internalMsg) >= 1 {
		internalMsgFmt = internalMsg[0].(string)
		msgArgs = internalMsg[1:]
	}

	return Err(http.StatusInternalServerError, "an internal server error occurred", internalMsgFmt, msgArgs...)
}

// Response builds a Result whose body is respObj, marshaled to JSON when
// written. respObj must not be nil. Any v are given to internalMsg as
// Sprintf args.
func Response(status int, respObj interface{}, internalMsg string, v ...interface{}) Result {
	msg := fmt.Sprintf(internalMsg, v...)
	return Result{
		IsJSON:      true,
		IsErr:       false,
		Status:      status,
		InternalMsg: msg,
		resp:        respObj,
	}
}

// Err builds a Result whose body is an ErrorResponse wrapping userMsg. Any v
// are given to internalMsg as Sprintf args.
func Err(status int, userMsg, internalMsg string, v ...interface{}) Result {
	msg := fmt.Sprintf(internalMsg, v...)
	return Result{
		IsJSON:      true,
		IsErr:       true,
		Status:      status,
		InternalMsg: msg,
		resp: ErrorResponse{
			Error:  userMsg,
			Status: status,
		},
	}
}

// TextErr builds a Result like Err, but the body is written as plain text
// instead of being JSON-encoded. It backs the panic-recovery middleware,
// which writes a response after the normal JSON-handler machinery has
// already unwound. Any v are given to internalMsg as Sprintf args.
func TextErr(status int, userMsg, internalMsg string, v ...interface{}) Result {
	msg := fmt.Sprintf(internalMsg, v...)
	return Result{
		IsJSON:      false,
		IsErr:       true,
		Status:      status,
		InternalMsg: msg,
		resp:        userMsg,
	}
}

// Result is a prepared HTTP response together with the message that should
// be logged for it. Handlers build one with OK, Created, BadRequest, and
// the rest of the constructors above, then hand it to WriteResponse.
type Result struct {
	Status      int
	IsErr       bool
	IsJSON      bool
	InternalMsg string

	resp interface{}
	hdrs [][2]string

	// set by PrepareMarshaledResponse
	respJSONBytes []byte
}

// WithHeader returns a copy of r with name: val added to the headers
// written alongside the response.
func (r Result) WithHeader(name, val string) Result {
	withHdr := Result{
		IsErr:       r.IsErr,
		IsJSON:      r.IsJSON,
		Status:      r.Status,
		InternalMsg: r.InternalMsg,
		resp:        r.resp,
		hdrs:        r.hdrs,
	}

	withHdr.hdrs = append(withHdr.hdrs, [2]string{name, val})
	return withHdr
}

// PrepareMarshaledResponse marshals r's body to JSON and caches the result,
// if r is a JSON result with a body. It is idempotent: once respJSONBytes
// has been set, later calls are no-ops that return nil.
func (r *Result) PrepareMarshaledResponse() error {
	if r.respJSONBytes != nil {
		return nil
	}

	if r.IsJSON {
		var err error
		r.respJSONBytes, err = json.Marshal(r.resp)
		if err != nil {
			return err
		}
	}

	return nil
}

// WriteResponse writes r's status, headers, and body to w. It panics if r
// is the zero Result (a handler forgot to return one of the constructors
// above) or if the body fails to marshal.
func (r Result) WriteResponse(w http.ResponseWriter) {
	if r.Status == 0 {
		panic("result not populated")
	}

	err := r.PrepareMarshaledResponse()
	if err != nil {
		panic(fmt.Sprintf("could not marshal response: %s", err.Error()))
	}

	var respBytes []byte

	if r.IsJSON {
		w.Header().Set("Content-Type", "application/json")
		respBytes = r.respJSONBytes
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		respBytes = []byte(fmt.Sprintf("%v", r.resp))
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")

	for i := range r.hdrs {
		w.Header().Set(r.hdrs[i][0], r.hdrs[i][1])
	}

	w.WriteHeader(r.Status)
	w.Write(respBytes)
}
