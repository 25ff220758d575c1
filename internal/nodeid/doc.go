/*
Package nodeid parses the two kinds of names used to address channels.

A channel name is `<subsystem>.<node-path>`: the first '.' separates the
subsystem from the node path, and everything after it is handed to the node
tree unchanged.

A node path is a dot-separated sequence of segments, one per tree level,
e.g. `main.sub.current`.
*/
package nodeid
