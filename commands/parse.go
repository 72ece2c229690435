package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

var (
	ErrMissingArgument = errors.New("missing argument")
	ErrInvalidArgument = errors.New("invalid argument")
)

const (
	CreateProcess = "np"
	FreeMap       = "pfm"
	PageTable     = "ppt"
	KillProcess   = "kp"
	StoreByte     = "sb"
	LoadByte      = "lb"
)

// argument names of the commands, in the order they are expected in the stream
var arguments = map[string][]string{
	CreateProcess: {"proc_id", "page_count"},
	FreeMap:       nil,
	PageTable:     {"proc_id"},
	KillProcess:   {"proc_id"},
	StoreByte:     {"proc_id", "virtual_address", "value"},
	LoadByte:      {"proc_id", "virtual_address"},
}

// UnknownCommandError is returned by strict parser for token which is not a command name.
type UnknownCommandError struct {
	Token    string
	Position int
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q at position %d", e.Token, e.Position)
}

// Command is a parsed command with its integer arguments.
type Command struct {
	Name string
	Args []int
}

func (c Command) String() string {
	var sb strings.Builder
	sb.WriteString(c.Name)
	for _, a := range c.Args {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Itoa(a))
	}
	return sb.String()
}

/*
Parse converts the token stream into list of commands. The whole stream is
parsed before anything is executed so malformed input doesn't leave the
machine half way through the command list.

Arguments are parsed as integers, sign and range are not validated. Tokens
which are not command names cause UnknownCommandError when "strict" is set,
otherwise they are logged and skipped.
*/
func Parse(log *slog.Logger, tokens []string, strict bool) ([]Command, error) {
	var cmds []Command
	for i := 0; i < len(tokens); i++ {
		name := tokens[i]
		argNames, ok := arguments[name]
		if !ok {
			if strict {
				return nil, &UnknownCommandError{Token: name, Position: i}
			}
			log.Warn(fmt.Sprintf("ignoring unknown command %q at position %d", name, i))
			continue
		}

		cmd := Command{Name: name, Args: make([]int, len(argNames))}
		for n, argName := range argNames {
			i++
			if i >= len(tokens) {
				return nil, fmt.Errorf("%s: %w %s", name, ErrMissingArgument, argName)
			}
			v, err := strconv.Atoi(tokens[i])
			if err != nil {
				return nil, fmt.Errorf("%s: %w %s %q at position %d", name, ErrInvalidArgument, argName, tokens[i], i)
			}
			cmd.Args[n] = v
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}
