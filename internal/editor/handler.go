// Package editor implements the request verbs of the authoring bridge on
// top of the naming core and the scene registry. One Session per client
// connection tracks the level requests apply to.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/scenesync/internal/bridge"
	"github.com/cory-johannsen/scenesync/internal/naming"
	"github.com/cory-johannsen/scenesync/internal/protocol"
	"github.com/cory-johannsen/scenesync/internal/scene"
)

// ErrUnknownCommand is returned for a verb no command answers to.
var ErrUnknownCommand = errors.New("unknown command")

// ErrUsage is returned when a command is given the wrong arguments.
var ErrUsage = errors.New("usage")

// ErrNoSuchObject is returned when a named object is not in the session's level.
var ErrNoSuchObject = errors.New("no such object")

// quitReply is sent before a session ends on request.
const quitReply = "bye"

// Session is the per-connection request state.
type Session struct {
	// Level is the scope every request of the session applies to.
	Level naming.Scope
}

// Handler executes request lines against a scene.
type Handler struct {
	scene       *scene.Manager
	sync        *naming.Synchronizer
	registry    *Registry
	level       naming.Scope
	maxAttempts int
	logger      *zap.Logger
}

// NewHandler creates a Handler.
//
// Precondition: mgr, sync and logger must be non-nil; defaultLevel must be
// non-empty; maxAttempts >= 1.
// Postcondition: Returns a Handler using the built-in command set.
func NewHandler(mgr *scene.Manager, sync *naming.Synchronizer, defaultLevel naming.Scope, maxAttempts int, logger *zap.Logger) *Handler {
	if mgr == nil || sync == nil || logger == nil {
		panic("editor.NewHandler: mgr, sync and logger must not be nil")
	}
	if defaultLevel == "" {
		panic("editor.NewHandler: defaultLevel must not be empty")
	}
	if maxAttempts < 1 {
		maxAttempts = naming.DefaultMaxAttempts
	}
	return &Handler{
		scene:       mgr,
		sync:        sync,
		registry:    DefaultRegistry(),
		level:       defaultLevel,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// NewSession returns a session positioned in the default level.
func (h *Handler) NewSession() *Session {
	return &Session{Level: h.level}
}

// Execute runs one request line and returns the reply line. Failures are
// rendered as "error: <msg>". quit is true when the client asked to end the
// session. A blank line yields an empty reply.
func (h *Handler) Execute(ctx context.Context, s *Session, line string) (reply string, quit bool) {
	cmd := protocol.ParseCommand(line)
	if cmd.Verb == "" {
		return "", false
	}

	def, ok := h.registry.Resolve(cmd.Verb)
	if !ok {
		return errorReply(fmt.Errorf("%w %q", ErrUnknownCommand, cmd.Verb)), false
	}
	if def.Name == "quit" {
		return quitReply, true
	}
	if len(cmd.Args) < def.MinArgs {
		return errorReply(usageError(def)), false
	}

	out, err := def.run(ctx, h, s, cmd.Args)
	if err != nil {
		h.logger.Debug("command failed",
			zap.String("verb", def.Name),
			zap.String("level", string(s.Level)),
			zap.Error(err),
		)
		return errorReply(err), false
	}
	return out, false
}

// HandleSession runs the request loop for one bridge connection until the
// client quits, disconnects or ctx is cancelled.
//
// Postcondition: Returns nil when the client quit or closed the connection.
func (h *Handler) HandleSession(ctx context.Context, conn *bridge.Conn) error {
	s := h.NewSession()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := conn.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading request: %w", err)
		}

		reply, quit := h.Execute(ctx, s, line)
		if reply == "" {
			continue
		}
		if err := conn.WriteLine(reply); err != nil {
			return fmt.Errorf("writing reply: %w", err)
		}
		if quit {
			return nil
		}
	}
}

// object finds the object named id in the session's level.
func (h *Handler) object(s *Session, id string) (*scene.Object, error) {
	obj, ok := h.scene.FindByName(s.Level, naming.Identifier(id))
	if !ok {
		return nil, fmt.Errorf("%w %q in level %q", ErrNoSuchObject, id, s.Level)
	}
	return obj, nil
}

// usageError reports a command invoked with too few arguments, quoting its
// usage line.
func usageError(c *Command) error {
	return fmt.Errorf("%w: %s %s", ErrUsage, c.Name, c.Usage)
}

func errorReply(err error) string {
	// Replies are single lines.
	msg := strings.NewReplacer("\r", " ", "\n", " ").Replace(err.Error())
	return "error: " + msg
}
