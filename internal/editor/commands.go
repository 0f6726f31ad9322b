package editor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cory-johannsen/scenesync/internal/naming"
	"github.com/cory-johannsen/scenesync/internal/protocol"
	"github.com/cory-johannsen/scenesync/internal/scene"
)

// BuiltinCommands returns every request verb the editor answers to.
func BuiltinCommands() []Command {
	return []Command{
		{Name: "level", Usage: "[name]", Help: "Show or switch the current level", run: cmdLevel},
		{Name: "rename", Aliases: []string{"mv"}, Usage: "<id> <requested>", Help: "Rename an object; replies with its resulting identifier", MinArgs: 2, run: cmdRename},
		{Name: "renamelist", Usage: "[ids] [names]", Help: "Rename several objects; replies with the resulting identifiers", MinArgs: 2, run: cmdRenameList},
		{Name: "renamefree", Usage: "<id> [base]", Help: "Rename an object to the first free identifier derived from base", MinArgs: 1, run: cmdRenameFree},
		{Name: "freename", Usage: "[base]", Help: "Show the first free identifier derived from base", run: cmdFreeName},
		{Name: "spawn", Usage: "<asset> [name] [T=(x y z)] [R=(p y r)] [S=(x y z)]", Help: "Place a new object", MinArgs: 1, run: cmdSpawn},
		{Name: "transform", Usage: "<id> [T=(x y z)] [R=(p y r)] [S=(x y z)]", Help: "Update an object's transform", MinArgs: 2, run: cmdTransform},
		{Name: "delete", Aliases: []string{"rm"}, Usage: "<id>", Help: "Remove an object", MinArgs: 1, run: cmdDelete},
		{Name: "lookup", Aliases: []string{"get"}, Usage: "<id>", Help: "Describe an object", MinArgs: 1, run: cmdLookup},
		{Name: "list", Aliases: []string{"ls"}, Help: "List the identifiers in the current level", run: cmdList},
		{Name: "help", Usage: "[verb]", Help: "List verbs or describe one", run: cmdHelp},
		// Handled by Execute before dispatch.
		{Name: "quit", Aliases: []string{"exit"}, Help: "End the session", run: cmdQuit},
	}
}

func cmdLevel(_ context.Context, _ *Handler, s *Session, args []string) (string, error) {
	if len(args) > 0 {
		s.Level = naming.Scope(args[0])
	}
	return string(s.Level), nil
}

func cmdRename(ctx context.Context, h *Handler, s *Session, args []string) (string, error) {
	obj, err := h.object(s, args[0])
	if err != nil {
		return "", err
	}
	res, err := h.sync.Rename(ctx, obj, strings.Join(args[1:], " "), s.Level)
	if err != nil {
		return "", err
	}
	return res.ID.String(), nil
}

func cmdRenameFree(ctx context.Context, h *Handler, s *Session, args []string) (string, error) {
	obj, err := h.object(s, args[0])
	if err != nil {
		return "", err
	}
	res, err := h.sync.RenameToFree(ctx, obj, strings.Join(args[1:], " "), s.Level)
	if err != nil {
		return "", err
	}
	return res.ID.String(), nil
}

func cmdRenameList(ctx context.Context, h *Handler, s *Session, args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("%w: renamelist expects exactly two lists", ErrUsage)
	}
	ids := protocol.ParseList(args[0])
	names := protocol.ParseList(args[1])
	if len(ids) != len(names) {
		return "", fmt.Errorf("%w: %d identifiers but %d names", ErrUsage, len(ids), len(names))
	}

	objs := make([]namedObject, len(ids))
	for i, id := range ids {
		obj, err := h.object(s, id)
		if err != nil {
			return "", err
		}
		objs[i] = namedObject{obj: obj, requested: names[i]}
	}

	out := make([]string, len(objs))
	for i, o := range objs {
		res, err := h.sync.Rename(ctx, o.obj, o.requested, s.Level)
		if err != nil {
			return "", err
		}
		out[i] = res.ID.String()
	}
	return protocol.FormatList(out), nil
}

func cmdFreeName(ctx context.Context, h *Handler, s *Session, args []string) (string, error) {
	id, err := h.sync.ReserveFreeIdentifier(ctx, strings.Join(args, " "), s.Level)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func cmdSpawn(ctx context.Context, h *Handler, s *Session, args []string) (string, error) {
	asset := args[0]
	var name string
	var parts []string
	for _, a := range args[1:] {
		if isTransformPart(a) {
			parts = append(parts, a)
			continue
		}
		if name != "" {
			return "", fmt.Errorf("%w: spawn takes a single name, got %q and %q", ErrUsage, name, a)
		}
		name = a
	}
	t, err := protocol.ParseTransform(strings.Join(parts, " "))
	if err != nil {
		return "", err
	}

	obj, err := scene.Spawn(ctx, h.scene, h.sync, scene.ObjectSpec{
		Level:     s.Level,
		AssetPath: asset,
		Transform: t,
	}, name, h.maxAttempts)
	if err != nil {
		return "", err
	}
	return obj.ID().String(), nil
}

func cmdTransform(_ context.Context, h *Handler, s *Session, args []string) (string, error) {
	obj, err := h.object(s, args[0])
	if err != nil {
		return "", err
	}
	t, err := protocol.ParseTransform(strings.Join(args[1:], " "))
	if err != nil {
		return "", err
	}
	if t.IsZero() {
		return "", fmt.Errorf("%w: transform needs at least one of T=, R=, S=", ErrUsage)
	}
	if err := h.scene.SetTransform(obj.Handle, t); err != nil {
		return "", err
	}
	return obj.Transform().String(), nil
}

func cmdDelete(ctx context.Context, h *Handler, s *Session, args []string) (string, error) {
	if err := h.scene.Remove(ctx, s.Level, naming.Identifier(args[0])); err != nil {
		return "", err
	}
	return args[0], nil
}

func cmdLookup(_ context.Context, h *Handler, s *Session, args []string) (string, error) {
	obj, err := h.object(s, args[0])
	if err != nil {
		return "", err
	}
	ident := obj.Identity()
	var b strings.Builder
	fmt.Fprintf(&b, "%s label=%s", ident.ID, strconv.Quote(ident.Label))
	if obj.AssetPath != "" {
		fmt.Fprintf(&b, " asset=%s", obj.AssetPath)
	}
	if t := obj.Transform(); !t.IsZero() {
		b.WriteString(" ")
		b.WriteString(t.String())
	}
	return b.String(), nil
}

func cmdList(_ context.Context, h *Handler, s *Session, _ []string) (string, error) {
	objs := h.scene.Objects(s.Level)
	ids := make([]string, len(objs))
	for i, o := range objs {
		ids[i] = o.ID().String()
	}
	return protocol.FormatList(ids), nil
}

func cmdHelp(_ context.Context, h *Handler, _ *Session, args []string) (string, error) {
	if len(args) > 0 {
		c, ok := h.registry.Resolve(strings.ToLower(args[0]))
		if !ok {
			return "", fmt.Errorf("%w %q", ErrUnknownCommand, args[0])
		}
		return strings.TrimSpace(c.Name+" "+c.Usage) + ": " + c.Help, nil
	}
	cmds := h.registry.Commands()
	names := make([]string, len(cmds))
	for i, c := range cmds {
		names[i] = c.Name
	}
	return "commands: " + strings.Join(names, ", "), nil
}

func cmdQuit(context.Context, *Handler, *Session, []string) (string, error) {
	return quitReply, nil
}

type namedObject struct {
	obj       naming.Object
	requested string
}

func isTransformPart(tok string) bool {
	return len(tok) > 2 && strings.ContainsRune("TRS", rune(tok[0])) && tok[1] == '=' && tok[2] == '('
}
