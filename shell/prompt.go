package shell

import "regexp"

// promptPattern recognises the interactive shell prompt: an optional
// numeric prefix, a host token, a colon, the current
// directory, and a trailing "$" (unprivileged) or "#" (root) token
// anchored to the end of the buffer.
var promptPattern = regexp.MustCompile(`(?P<num>[1-9]*)\W*\b(?P<host>\w+):(?P<directory>.*)\s(?P<user>\$|#) $`)

// Prompt is the last recognised shell prompt.
type Prompt struct {
	Host      string
	Directory string
	User      string
	Message   string
	Valid     bool
}

// matchPrompt scans buf for the prompt pattern, returning the matched
// Prompt and true on success. Message is anchored to the start of the
// "host" group, not the start of the overall match: the leading \W*
// in promptPattern is free to swallow a preceding newline (or other
// non-word output) on its way to the \b boundary, and that swallowed
// text is real command output, not part of the prompt.
func matchPrompt(buf string) (Prompt, bool) {
	loc := promptPattern.FindStringSubmatchIndex(buf)
	if loc == nil {
		return Prompt{}, false
	}

	names := promptPattern.SubexpNames()
	groups := map[string]string{}
	hostStart := loc[0]
	for i, name := range names {
		if name == "" || loc[2*i] < 0 {
			continue
		}
		groups[name] = buf[loc[2*i]:loc[2*i+1]]
		if name == "host" {
			hostStart = loc[2*i]
		}
	}

	return Prompt{
		Host:      groups["host"],
		Directory: groups["directory"],
		User:      groups["user"],
		Message:   buf[hostStart:loc[1]],
		Valid:     true,
	}, true
}

// IsRoot reports whether the prompt's user token is "#" (root access).
func (p Prompt) IsRoot() bool {
	return p.User == "#"
}
