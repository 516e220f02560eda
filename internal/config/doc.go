/*
Package config loads, merges, and hot-reloads CodeCoder's configuration
(C11).

# Loading

Load reads config.json from a workspace root plus whichever overlay files
are present — secrets.json, channels.json, providers.json, trading.json —
and merges them into a single types.Config. Overlay files are opaque JSON
objects merged key-by-key into the corresponding Config field (Secrets,
Channels, Providers, Trading) so overlay schemas can evolve independently
of the core type. All files may use JSONC (comments stripped via
tidwall/jsonc) even though they carry a .json extension.

Environment variables apply last and win over any file: CODECODER_GATEWAY_PORT,
CODECODER_GATEWAY_API_KEY, and CODECODER_LOG_LEVEL.

# Hot reload

Watcher wraps Load with an fsnotify watch on the workspace root. On any
write or create event it reloads the merged config; subscribers registered
via Subscribe are called with (new, old). A reload that fails to parse
keeps the previously loaded config in place and publishes a
config.reload_error event instead of a config.reloaded event.

# File permissions

secrets.json must be written with mode 0600; SaveWithMode accepts an
explicit mode for this and similar sensitive overlays.
*/
package config
