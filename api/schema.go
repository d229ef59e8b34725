package api

import (
	"github.com/rakugaki/rakugaki/brush"
	"github.com/rakugaki/rakugaki/wall"
)

// ---------------------------------------------------------------------------
// Wire schema
// ---------------------------------------------------------------------------

// Version identifies the wall protocol. The server announces it as its very
// first frame; clients speaking another version should disconnect.
const Version uint32 = 1

// Hello is the server's first frame on a wall socket.
type Hello struct {
	Version uint32 `json:"version"`
}

// LoginRequest is the client's first frame: credentials, which wall to join
// (nil creates a new one), and the session's initial state.
type LoginRequest struct {
	User   string  `json:"user"`
	Secret string  `json:"secret"`
	Wall   *string `json:"wall"`
	Init   Init    `json:"init"`
}

// Init is the state a session starts with.
type Init struct {
	Brush string `json:"brush"`
}

// WallInfo describes the joined wall to a fresh session.
type WallInfo struct {
	ChunkSize  int                  `json:"chunkSize"`
	PaintArea  int                  `json:"paintArea"`
	HakuLimits brush.Limits         `json:"hakuLimits"`
	Online     []wall.OnlineSession `json:"online"`
}

// LoggedIn is the successful login response.
type LoggedIn struct {
	Response  string   `json:"response"`
	Wall      string   `json:"wall"`
	WallInfo  WallInfo `json:"wallInfo"`
	SessionID uint32   `json:"sessionId"`
}

// Error kinds for ErrorResponse.
const (
	ErrorLoginFailed      = "loginFailed"
	ErrorUserDoesNotExist = "userDoesNotExist"
	ErrorTooManySessions  = "tooManySessions"
	ErrorProtocol         = "protocol"
)

// ErrorResponse reports a failure; for most kinds the server closes the
// connection right after sending it.
type ErrorResponse struct {
	Response string `json:"response"`
	Kind     string `json:"kind"`
	Message  string `json:"message,omitempty"`
}

func protocolError(message string) ErrorResponse {
	return ErrorResponse{Response: "error", Kind: ErrorProtocol, Message: message}
}

// Request kinds.
const (
	RequestWall       = "wall"
	RequestViewport   = "viewport"
	RequestMoreChunks = "moreChunks"
	RequestPing       = "ping"
)

// Request is anything the client sends after logging in. Viewport corners
// are in chunk units, not pixels.
type Request struct {
	Request     string              `json:"request"`
	WallEvent   *wall.Event         `json:"wallEvent,omitempty"`
	TopLeft     *wall.ChunkPosition `json:"topLeft,omitempty"`
	BottomRight *wall.ChunkPosition `json:"bottomRight,omitempty"`
}

// NotifyWall relays another session's wall event.
type NotifyWall struct {
	Notify    string     `json:"notify"`
	SessionID uint32     `json:"sessionId"`
	WallEvent wall.Event `json:"wallEvent"`
}

// ChunkRecord locates one chunk's image within the binary frame that
// follows a chunks notification.
type ChunkRecord struct {
	Position wall.ChunkPosition `json:"position"`
	Offset   int                `json:"offset"`
	Length   int                `json:"length"`
}

// NotifyChunks announces a page of chunk downloads. The chunk images arrive
// concatenated in a single binary frame sent immediately after.
type NotifyChunks struct {
	Notify  string        `json:"notify"`
	Chunks  []ChunkRecord `json:"chunks"`
	HasMore bool          `json:"hasMore"`
}

// NotifyPong answers a ping request.
type NotifyPong struct {
	Notify string `json:"notify"`
}
