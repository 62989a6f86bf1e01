package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spigell/skillmatch/internal/profile"
)

// Callback payloads. They are part of the wire contract with keyboards that
// are already rendered in chats, so they must never change.
const (
	payloadTagsConfirm    = "tags_confirm"
	payloadFindConfirm    = "find_confirm"
	payloadConfirmProfile = "confirm_profile"
	payloadEditProfile    = "edit_profile"

	prefixCourse  = "course_"
	prefixTag     = "tag_"
	prefixNav     = "nav_"
	prefixCommand = "command_"

	navPrev = "prev"
	navNext = "next"
)

// Commands understood by the bot.
const (
	CommandStart         = "start"
	CommandHelp          = "help"
	CommandMenu          = "menu"
	CommandProfile       = "profile"
	CommandSearch        = "search"
	CommandFind          = "find"
	CommandDeleteProfile = "delete_profile"
	CommandSkip          = "skip"
)

// menuCommands can be triggered from the command_<name> shortcut buttons.
var menuCommands = map[string]struct{}{
	CommandStart:         {},
	CommandHelp:          {},
	CommandProfile:       {},
	CommandSearch:        {},
	CommandFind:          {},
	CommandDeleteProfile: {},
}

var knownCommands = map[string]struct{}{
	CommandStart:         {},
	CommandHelp:          {},
	CommandMenu:          {},
	CommandProfile:       {},
	CommandSearch:        {},
	CommandFind:          {},
	CommandDeleteProfile: {},
	CommandSkip:          {},
}

// ErrUnknownPayload is returned for callback data no keyboard of this bot produces.
var ErrUnknownPayload = errors.New("unknown callback payload")

// Event is a decoded inbound event.
type Event interface {
	Name() string
}

// Command is a slash command or a menu shortcut.
type Command struct {
	Command string
	Known   bool
}

// Text is free text that is not a command.
type Text struct {
	Content string
}

// Photo is an uploaded image.
type Photo struct {
	Ref string
}

type CourseChosen struct {
	Course profile.Course
}

type TagToggled struct {
	Tag string
}

type TagsConfirmed struct{}

type FindConfirmed struct{}

type ProfileConfirmed struct{}

type ProfileEditRequested struct{}

// NavRequested moves a browse session one step from the index the button
// was rendered at.
type NavRequested struct {
	Step int
	From int
}

// UnknownCallback is a button this bot does not (or no longer) understands.
type UnknownCallback struct {
	Data string
}

func (Command) Name() string              { return "command" }
func (Text) Name() string                 { return "text" }
func (Photo) Name() string                { return "photo" }
func (CourseChosen) Name() string         { return "course_chosen" }
func (TagToggled) Name() string           { return "tag_toggled" }
func (TagsConfirmed) Name() string        { return "tags_confirmed" }
func (FindConfirmed) Name() string        { return "find_confirmed" }
func (ProfileConfirmed) Name() string     { return "profile_confirmed" }
func (ProfileEditRequested) Name() string { return "profile_edit_requested" }
func (NavRequested) Name() string         { return "nav_requested" }
func (UnknownCallback) Name() string      { return "unknown_callback" }

// ParseCommand recognizes "/name", "/name@botname" and "/name args".
func ParseCommand(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Command{}, false
	}

	name := strings.TrimPrefix(text, "/")
	if idx := strings.IndexAny(name, " \t\n"); idx != -1 {
		name = name[:idx]
	}
	if idx := strings.Index(name, "@"); idx != -1 {
		name = name[:idx]
	}
	name = strings.ToLower(name)

	_, known := knownCommands[name]
	return Command{Command: name, Known: known}, true
}

// DecodeCallback turns a callback payload into a typed event.
func DecodeCallback(data string) (Event, error) {
	switch data {
	case payloadTagsConfirm:
		return TagsConfirmed{}, nil
	case payloadFindConfirm:
		return FindConfirmed{}, nil
	case payloadConfirmProfile:
		return ProfileConfirmed{}, nil
	case payloadEditProfile:
		return ProfileEditRequested{}, nil
	}

	switch {
	case strings.HasPrefix(data, prefixCourse):
		course, err := profile.CourseByCode(strings.TrimPrefix(data, prefixCourse))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnknownPayload, err)
		}
		return CourseChosen{Course: course}, nil

	case strings.HasPrefix(data, prefixTag):
		tag := strings.TrimPrefix(data, prefixTag)
		if tag == "" {
			return nil, fmt.Errorf("%w: empty tag", ErrUnknownPayload)
		}
		return TagToggled{Tag: tag}, nil

	case strings.HasPrefix(data, prefixNav):
		return decodeNav(strings.TrimPrefix(data, prefixNav))

	case strings.HasPrefix(data, prefixCommand):
		name := strings.TrimPrefix(data, prefixCommand)
		if _, ok := menuCommands[name]; !ok {
			return nil, fmt.Errorf("%w: command %q", ErrUnknownPayload, name)
		}
		return Command{Command: name, Known: true}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownPayload, data)
}

func decodeNav(rest string) (Event, error) {
	direction, index, ok := strings.Cut(rest, "_")
	if !ok {
		return nil, fmt.Errorf("%w: navigation %q", ErrUnknownPayload, rest)
	}

	from, err := strconv.Atoi(index)
	if err != nil || from < 0 {
		return nil, fmt.Errorf("%w: navigation index %q", ErrUnknownPayload, index)
	}

	switch direction {
	case navPrev:
		return NavRequested{Step: -1, From: from}, nil
	case navNext:
		return NavRequested{Step: 1, From: from}, nil
	default:
		return nil, fmt.Errorf("%w: navigation direction %q", ErrUnknownPayload, direction)
	}
}

func coursePayload(code string) string { return prefixCourse + code }

func tagPayload(tag string) string { return prefixTag + tag }

func commandPayload(name string) string { return prefixCommand + name }

func navPayload(step, from int) string {
	direction := navNext
	if step < 0 {
		direction = navPrev
	}
	return prefixNav + direction + "_" + strconv.Itoa(from)
}

// CommandDescription is a command as listed in the client's command menu.
type CommandDescription struct {
	Command     string
	Description string
}

// Menu returns the commands advertised to chat clients.
func Menu() []CommandDescription {
	return []CommandDescription{
		{Command: CommandStart, Description: "Create or update your profile"},
		{Command: CommandProfile, Description: "Show your profile"},
		{Command: CommandSearch, Description: "Browse profiles ranked by shared skills"},
		{Command: CommandFind, Description: "Find people with specific skills"},
		{Command: CommandDeleteProfile, Description: "Delete your profile"},
		{Command: CommandMenu, Description: "Show the menu"},
		{Command: CommandHelp, Description: "How this bot works"},
	}
}
