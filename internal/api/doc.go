// Package api serves analyses over HTTP.
//
// JSON endpoints live under /api/v1 and answer with the envelope
//
//	{"status":"ok","data":...,"request_id":"..."}
//	{"status":"error","error":{"code":"E001","message":"..."},"request_id":"..."}
//
// /health and /metrics sit outside the envelope. Every response carries
// an X-Request-ID header.
package api
