// Package handler implements the kvmesh HTTP API.
//
// Routes:
//
//	GET  /health, /ready
//	GET  /kv/{key...}        value of key (?raw=1 for the bare bytes)
//	PUT  /kv/{key...}        body is the value
//	POST /kv/{key...}        same as PUT
//	POST /kv                 JSON {"key","value","encoding"}
//	GET  /kv                 list pairs (?limit=N)
//	GET  /stats              store statistics
//	GET  /admin/v1/status    process and build information
//	POST /admin/v1/snapshot  save the dataset now
//
// JSON responses share the Response envelope. Values that are not valid
// UTF-8 are returned base64-encoded with "encoding":"base64".
package handler
