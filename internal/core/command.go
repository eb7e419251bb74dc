package core

// CommandKind identifies what a session asks the hub to do.
type CommandKind int

const (
	// CmdIdentify binds the session to a username and subscribes it to the room.
	CmdIdentify CommandKind = iota
	// CmdSend broadcasts a chat message from an identified session.
	CmdSend
	// CmdLeave detaches the session from its username but keeps the socket open.
	CmdLeave
)

// Command is a single request from a session, processed by the hub loop.
type Command struct {
	Kind CommandKind

	// Username is set for CmdIdentify.
	Username string

	// Text, Avatar and Color are set for CmdSend. Avatar and Color are
	// optional overrides; the stored profile is used when empty.
	Text   string
	Avatar string
	Color  string
}
