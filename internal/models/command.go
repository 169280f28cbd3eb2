package models

import "strings"

// CommandKind is the closed set of top-level commands. Dispatch is an
// exhaustive switch over this enum, so adding a command is a compile-time
// visible change.
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandHelp
	CommandAddSubject
	CommandListSubjects
	CommandEditSubject
	CommandDeleteSubject
	CommandClearAll
	CommandReport
	CommandTimezone
	CommandAlertsOn
	CommandAlertsOff
	CommandDeleteAccount
	CommandCancel
)

type commandAlias struct {
	alias string
	kind  CommandKind
}

// Longer aliases come first so "add subject x" binds its argument to the
// two-word form, not to "add".
var commandAliases = []commandAlias{
	{"delete account", CommandDeleteAccount},
	{"add subject", CommandAddSubject},
	{"clear all", CommandClearAll},
	{"alerts on", CommandAlertsOn},
	{"alerts off", CommandAlertsOff},
	{"help", CommandHelp},
	{"menu", CommandHelp},
	{"add", CommandAddSubject},
	{"list", CommandListSubjects},
	{"subjects", CommandListSubjects},
	{"edit", CommandEditSubject},
	{"delete", CommandDeleteSubject},
	{"remove", CommandDeleteSubject},
	{"clear", CommandClearAll},
	{"report", CommandReport},
	{"status", CommandReport},
	{"timezone", CommandTimezone},
	{"cancel", CommandCancel},
	{"stop", CommandCancel},
}

// ParseCommand splits a message into a command kind and its trailing
// argument. "edit physics" yields (CommandEditSubject, "physics").
func ParseCommand(text string) (CommandKind, string) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return CommandUnknown, ""
	}

	for _, entry := range commandAliases {
		if normalized == entry.alias {
			return entry.kind, ""
		}
		if strings.HasPrefix(normalized, entry.alias+" ") {
			return entry.kind, strings.TrimSpace(normalized[len(entry.alias):])
		}
	}
	return CommandUnknown, ""
}
