/*
Package workspace resolves the on-disk layout every other component reads
and writes into:

	workspace/
	  hands/            agent definitions and output
	  storage/          session records, messages, databases
	  log/              runtime logs (incl. observability/)
	  tool-output/      tool execution stdout/stderr
	  knowledge/        causal graph, credentials, auth
	  tracking/         task/permission audit
	  cache/
	  mcp-auth.json     MCP transport credentials (file, 0600)

The root is the first match of: the CODECODER_WORKSPACE environment
variable, a configured path, or ~/.codecoder/workspace. Resolve never
touches the filesystem; EnsureDirs creates the tree with mode 0700 on
process start.
*/
package workspace
