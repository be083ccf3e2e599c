// Package dispatcher routes inbound chat events to the picture pipeline.
// Command inputs are handled via fuzzy search; plain text is matched against
// the configured trigger keyword.
package dispatcher

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/agnivade/levenshtein"
	"github.com/dghubble/trie"
	"go.uber.org/zap"

	"booru-bot/internal/booru"
	"booru-bot/internal/compose"
	"booru-bot/internal/config"
	"booru-bot/internal/picture"
)

// Event is one inbound chat message, stripped down to what routing needs.
type Event struct {
	Text    string
	UserID  string
	GroupID int64
	IsGroup bool
}

// Reply is the outbound side: either plain text or a composed picture
// response. A zero Reply means "say nothing".
type Reply struct {
	Text    string
	Picture *compose.Response
}

// Empty reports whether there is nothing to send.
func (r Reply) Empty() bool { return r.Text == "" && r.Picture == nil }

// Deps is a carrier of dependencies for EventDispatcher.
type Deps struct {
	Pictures *picture.Service
	Log      *zap.Logger
}

// Opts is a carrier of options for EventDispatcher.
type Opts struct {
	Commands config.CommandsConfig
	Messages config.MessagesConfig
}

// EventDispatcher dispatches commands according to command prefixes and the
// keyword trigger, and applies the group response mode before anything else.
type EventDispatcher struct {
	pictures *picture.Service
	opts     Opts
	log      *zap.Logger

	commandTrie atomic.Pointer[trie.RuneTrie]
}

// NewEventDispatcher creates an EventDispatcher with a built command trie.
func NewEventDispatcher(deps Deps, opts Opts) (*EventDispatcher, error) {
	ed := &EventDispatcher{
		pictures: deps.Pictures,
		opts:     opts,
		log:      deps.Log,
	}
	if err := ed.buildTrie(); err != nil {
		return nil, err
	}

	return ed, nil
}

func (ed *EventDispatcher) buildTrie() error {
	commandTrie := trie.NewRuneTrie()
	for _, command := range commands {
		commandTrie.Put(string(command), command)
	}

	ed.commandTrie.Store(commandTrie)
	return nil
}

// DispatchMessage routes one event. Group gating happens first; a filtered
// group gets no reply at all.
func (ed *EventDispatcher) DispatchMessage(ctx context.Context, ev Event) Reply {
	if ev.IsGroup && !ed.groupAllowed(ev.GroupID) {
		ed.log.Debug("group filtered by response mode", zap.Int64("group", ev.GroupID))
		return Reply{}
	}

	if strings.HasPrefix(ev.Text, "/") {
		return ed.handleCommand(ctx, ev)
	}

	return ed.handleKeyword(ctx, ev)
}

func (ed *EventDispatcher) groupAllowed(groupID int64) bool {
	switch ed.opts.Commands.GroupResponseMode {
	case config.GroupModeWhite:
		return slices.Contains(ed.opts.Commands.WhiteListGroups, groupID)
	case config.GroupModeBlack:
		return !slices.Contains(ed.opts.Commands.BlackListGroups, groupID)
	default:
		return true
	}
}

func (ed *EventDispatcher) handleKeyword(ctx context.Context, ev Event) Reply {
	keyword := ed.opts.Commands.RandomImageKeyword
	_, after, found := strings.Cut(ev.Text, keyword)
	if !found {
		return Reply{}
	}

	tag := strings.TrimSpace(after)
	if tag == "" {
		return Reply{}
	}

	return ed.randomPicture(ctx, ev, tag)
}

func (ed *EventDispatcher) handleCommand(ctx context.Context, ev Event) Reply {
	name, args := splitCommand(ev.Text)

	parsedCommands, exact := ed.getRelevantCommands(name)
	if !exact {
		if len(parsedCommands) == 0 {
			return Reply{Text: unexpectedCommandReply}
		}

		return Reply{Text: clarifyCommandReply(parsedCommands)}
	}

	command := parsedCommands[0]
	if reply, ok := constantReplies[command]; ok {
		return Reply{Text: reply}
	}

	switch command {
	case RandomCommand:
		if args == "" {
			return Reply{Text: randomUsageReply}
		}
		return ed.randomPicture(ctx, ev, args)
	}

	return Reply{}
}

func (ed *EventDispatcher) randomPicture(ctx context.Context, ev Event, tag string) Reply {
	resp, err := ed.pictures.RandomPicture(ctx, ev.UserID, tag)
	if err != nil {
		return Reply{Text: ed.errorReply(err, tag)}
	}

	return Reply{Picture: resp}
}

// errorReply maps a pipeline error onto the configured message template.
func (ed *EventDispatcher) errorReply(err error, tag string) string {
	msgs := ed.opts.Messages

	var limited *picture.RateLimitedError
	switch {
	case errors.As(err, &limited):
		reply := compose.Expand(msgs.RateLimited, tag)
		return strings.ReplaceAll(reply, "{seconds}", strconv.Itoa(limited.Seconds))
	case errors.Is(err, booru.ErrNoCandidates):
		return compose.Expand(msgs.NotFound, tag)
	default:
		ed.log.Error("picture request failed", zap.String("tag", tag), zap.Error(err))
		return compose.Expand(msgs.Error, tag)
	}
}

func (ed *EventDispatcher) getRelevantCommands(command string) ([]Command, bool) {
	ct := ed.commandTrie.Load()
	if x := ct.Get(command); x != nil {
		return []Command{x.(Command)}, true
	}

	const maxDistance = 3
	var closestCommands []Command
	_ = ct.Walk(func(key string, value any) error {
		c := value.(Command)
		distance := levenshtein.ComputeDistance(command, key)
		if distance < maxDistance || strings.HasPrefix(key, command) {
			closestCommands = append(closestCommands, c)
		}
		return nil
	})

	return closestCommands, false
}

// splitCommand takes "/random@somebot forest girl" apart into name and args.
func splitCommand(text string) (name, args string) {
	name, args, _ = strings.Cut(strings.TrimPrefix(text, "/"), " ")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return name, strings.TrimSpace(args)
}
