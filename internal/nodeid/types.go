package nodeid

// MaxSubsystemLen is the longest subsystem name, in bytes, kept by
// SplitChannelName and TruncateSubsystem. Longer names are truncated.
const MaxSubsystemLen = 199

// ChannelName is a channel name split into its subsystem and node path.
type ChannelName struct {
	Subsystem string
	Node      string
}

// Path is a parsed node path: one name per tree level.
type Path struct {
	Segments []string
}
