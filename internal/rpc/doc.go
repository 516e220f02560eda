/*
Package rpc implements the namespaced method dispatcher and its three
transports.

# Dispatcher

A Dispatcher maps a dot-path method name ("task.create", "vault.list") to a
Handler. Every transport below shares one Dispatcher instance, so a method
registered once is reachable in-process, over local HTTP, and over MCP.

# Transports

HTTPServer exposes POST /rpc (JSON body {namespace, method, args, id}) and
an always-anonymous GET /health. When configured with an API key, every
other route requires it via "Authorization: Bearer <key>" or
"X-API-Key: <key>"; a missing or wrong key yields 401 before the request
reaches the dispatcher.

MCPServer exposes a bounded MCP surface — tools/list and tools/call for a
configured ToolSpec set — over streamable HTTP or stdio. An AllowTools list
restricts which registered tools are visible; an empty list exposes all of
them. This surface registers no prompts or resources, so prompts/resources
operations fall back to the SDK's empty-list defaults.

In-process callers use the Dispatcher directly via Call; there is no
separate in-process transport type.

# Errors

Every error surfaced at a transport boundary is converted to
apperr.Envelope{code, message, data?} via apperr.ToEnvelope. HTTP maps the
code to a status (401 unauthorized, 404 not_found, 400 invalid_argument,
409 for conflict-shaped codes, 423 vault_locked, 504 deadline_exceeded,
500 otherwise).
*/
package rpc
