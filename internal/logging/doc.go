// Package logging writes structured JSON logs for termdex to a rotating file,
// ~/.termdex/logs/termdex.log by default. With --debug the same records are
// mirrored to stderr and the level drops to debug.
package logging
