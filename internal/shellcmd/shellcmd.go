// Package shellcmd parses shell command lines into structured commands so
// permission patterns can be derived and checked per command, not per line.
// A single line like "git add . && git commit -m x" yields two commands.
package shellcmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Command is one parsed command with its arguments.
type Command struct {
	Name       string   // command name (e.g. "rm", "git")
	Args       []string // arguments after the name
	Subcommand string   // first non-flag argument (e.g. "commit" in "git commit")
}

// String reconstructs a display form of the command.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Parse parses a shell command line into the commands it would run,
// including commands inside pipelines, chains, and substitutions.
func Parse(commandLine string) ([]Command, error) {
	parser := syntax.NewParser(
		syntax.Variant(syntax.LangBash),
		syntax.KeepComments(false),
	)

	file, err := parser.Parse(strings.NewReader(commandLine), "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}

	var commands []Command
	syntax.Walk(file, func(node syntax.Node) bool {
		if call, ok := node.(*syntax.CallExpr); ok {
			if cmd := extract(call); cmd != nil {
				commands = append(commands, *cmd)
			}
		}
		return true
	})

	return commands, nil
}

func extract(call *syntax.CallExpr) *Command {
	if len(call.Args) == 0 {
		return nil
	}

	cmd := &Command{}
	cmd.Name = wordToString(call.Args[0])
	if cmd.Name == "" {
		return nil
	}

	for _, arg := range call.Args[1:] {
		argStr := wordToString(arg)
		cmd.Args = append(cmd.Args, argStr)

		if cmd.Subcommand == "" && !strings.HasPrefix(argStr, "-") {
			cmd.Subcommand = argStr
		}
	}

	return cmd
}

// wordToString flattens a syntax.Word. Dynamic parts (variables, command
// substitutions) become placeholders so patterns derived from the result
// never silently widen.
func wordToString(word *syntax.Word) string {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, qp := range p.Parts {
				if lit, ok := qp.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
		case *syntax.ParamExp:
			sb.WriteString("$" + p.Param.Value)
		case *syntax.CmdSubst:
			sb.WriteString("$()")
		}
	}
	return sb.String()
}

// BuildPattern returns the grant pattern for a command: "git commit *" for
// "git commit -m msg", "ls *" for "ls -la".
func BuildPattern(cmd Command) string {
	if cmd.Subcommand != "" {
		return cmd.Name + " " + cmd.Subcommand + " *"
	}
	return cmd.Name + " *"
}

// BuildPatterns returns deduplicated grant patterns for a command list.
// "cd" is skipped; directory changes are validated separately.
func BuildPatterns(commands []Command) []string {
	seen := make(map[string]bool)
	var patterns []string

	for _, cmd := range commands {
		if cmd.Name == "cd" {
			continue
		}
		pattern := BuildPattern(cmd)
		if !seen[pattern] {
			seen[pattern] = true
			patterns = append(patterns, pattern)
		}
	}

	return patterns
}

// dangerous lists commands that modify the filesystem and need path
// validation against the working directory.
var dangerous = map[string]bool{
	"cd":    true,
	"rm":    true,
	"cp":    true,
	"mv":    true,
	"mkdir": true,
	"touch": true,
	"chmod": true,
	"chown": true,
	"rmdir": true,
	"dd":    true,
}

// IsDangerous reports whether a command is in the dangerous list.
func IsDangerous(name string) bool {
	return dangerous[name]
}

// ExtractPaths returns the likely file path arguments of a command,
// skipping flags and chmod mode strings.
func ExtractPaths(cmd Command) []string {
	var paths []string
	for _, arg := range cmd.Args {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		if cmd.Name == "chmod" && isChmodMode(arg) {
			continue
		}
		paths = append(paths, arg)
	}
	return paths
}

func isChmodMode(arg string) bool {
	if arg == "" {
		return false
	}
	switch {
	case arg[0] >= '0' && arg[0] <= '9':
		return true
	case arg[0] == 'u', arg[0] == 'g', arg[0] == 'o', arg[0] == 'a', arg[0] == '+', arg[0] == '=':
		return true
	}
	return false
}

// ResolvePath resolves a possibly-relative path against a working directory.
// Paths starting with "~" are returned unchanged; the engine cannot safely
// expand them without knowing the user.
func ResolvePath(path, workDir string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if strings.HasPrefix(path, "~") {
		return path
	}
	return filepath.Clean(filepath.Join(workDir, path))
}

// IsWithinDir reports whether path is inside or equal to dir.
func IsWithinDir(path, dir string) bool {
	path = filepath.Clean(path)
	dir = filepath.Clean(dir)

	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
